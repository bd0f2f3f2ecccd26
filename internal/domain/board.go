package domain

import (
	"fmt"

	nchess "github.com/corentings/chess/v2"
)

// BoardSize is the number of files and ranks on the board.
const BoardSize = 8

// Color identifies a chess side.
type Color int

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// Class is the kind of a piece.
type Class int

const (
	Queen Class = iota
	King
	Rook
	Bishop
	Knight
	Pawn
)

var classLetters = [...]byte{Queen: 'q', King: 'k', Rook: 'r', Bishop: 'b', Knight: 'n', Pawn: 'p'}

func (c Class) String() string {
	switch c {
	case Queen:
		return "queen"
	case King:
		return "king"
	case Rook:
		return "rook"
	case Bishop:
		return "bishop"
	case Knight:
		return "knight"
	case Pawn:
		return "pawn"
	default:
		return "unknown"
	}
}

// Piece is an immutable value once placed on a square.
type Piece struct {
	Color Color `json:"color"`
	Class Class `json:"class"`
}

// Letter returns the serialization letter: uppercase for white, lowercase for black.
func (p Piece) Letter() byte {
	if int(p.Class) < 0 || int(p.Class) >= len(classLetters) {
		return '?'
	}
	l := classLetters[p.Class]
	if p.Color == White {
		return l - 'a' + 'A'
	}
	return l
}

// Square is one cell of the board. ContainsPiece must always agree with Piece != nil.
type Square struct {
	File          int    `json:"file"`
	Rank          int    `json:"rank"`
	Piece         *Piece `json:"piece,omitempty"`
	ContainsPiece bool   `json:"containsPiece"`
}

// InBounds reports whether the coordinates address a board square.
func (s Square) InBounds() bool {
	return s.File >= 0 && s.File < BoardSize && s.Rank >= 0 && s.Rank < BoardSize
}

// Algebraic names the square in algebraic notation. Rank index 0 is the
// first serialized rank, i.e. the eighth rank.
func (s Square) Algebraic() string {
	if !s.InBounds() {
		return fmt.Sprintf("(%d,%d)", s.File, s.Rank)
	}
	return nchessSquare(s.File, s.Rank).String()
}

// ParseSquare is the inverse of Algebraic for names like "e4".
func ParseSquare(name string) (Square, error) {
	if len(name) != 2 {
		return Square{}, fmt.Errorf("bad square %q", name)
	}
	f, r := name[0]|0x20, name[1]
	if f < 'a' || f > 'h' || r < '1' || r > '8' {
		return Square{}, fmt.Errorf("bad square %q", name)
	}
	return Square{File: int(f - 'a'), Rank: int('8' - r)}, nil
}

func nchessSquare(file, rank int) nchess.Square {
	return nchess.Square((BoardSize-1-rank)*BoardSize + file)
}

// Board is indexed [file][rank], file outer.
type Board [BoardSize][BoardSize]Square

// NewBoard returns an empty board with coordinates filled in.
func NewBoard() Board {
	var b Board
	for f := 0; f < BoardSize; f++ {
		for r := 0; r < BoardSize; r++ {
			b[f][r] = Square{File: f, Rank: r}
		}
	}
	return b
}

// Clone deep-copies the board so piece pointers are never shared.
func (b *Board) Clone() Board {
	out := *b
	for f := 0; f < BoardSize; f++ {
		for r := 0; r < BoardSize; r++ {
			if p := b[f][r].Piece; p != nil {
				cp := *p
				out[f][r].Piece = &cp
			}
		}
	}
	return out
}

// Occupied counts squares holding a piece.
func (b *Board) Occupied() int {
	n := 0
	for f := 0; f < BoardSize; f++ {
		for r := 0; r < BoardSize; r++ {
			if b[f][r].Piece != nil {
				n++
			}
		}
	}
	return n
}

// Consistent reports whether every square's ContainsPiece flag agrees with
// piece presence and every square carries its own coordinates.
func (b *Board) Consistent() bool {
	for f := 0; f < BoardSize; f++ {
		for r := 0; r < BoardSize; r++ {
			sq := b[f][r]
			if sq.ContainsPiece != (sq.Piece != nil) {
				return false
			}
			if sq.File != f || sq.Rank != r {
				return false
			}
		}
	}
	return true
}

// Equal compares two boards by value.
func (b *Board) Equal(o *Board) bool {
	for f := 0; f < BoardSize; f++ {
		for r := 0; r < BoardSize; r++ {
			x, y := b[f][r], o[f][r]
			if x.File != y.File || x.Rank != y.Rank || x.ContainsPiece != y.ContainsPiece {
				return false
			}
			if (x.Piece == nil) != (y.Piece == nil) {
				return false
			}
			if x.Piece != nil && *x.Piece != *y.Piece {
				return false
			}
		}
	}
	return true
}
