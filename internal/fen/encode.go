package fen

import (
	"strconv"
	"strings"

	"github.com/park285/scuffed-chess-client/internal/domain"
)

// Empty is the serialization of a board with no pieces.
const Empty = "8/8/8/8/8/8/8/8 w - - 0 1"

// Start is the standard starting position.
const Start = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Encode serializes a snapshot. The en passant field is always "-".
func Encode(s *domain.Snapshot) string {
	if s == nil {
		return ""
	}
	var b strings.Builder
	for rank := 0; rank < domain.BoardSize; rank++ {
		if rank > 0 {
			b.WriteByte('/')
		}
		empty := 0
		for file := 0; file < domain.BoardSize; file++ {
			p := s.Board[file][rank].Piece
			if p == nil {
				empty++
				continue
			}
			if empty > 0 {
				b.WriteByte(byte('0' + empty))
				empty = 0
			}
			b.WriteByte(p.Letter())
		}
		if empty > 0 {
			b.WriteByte(byte('0' + empty))
		}
	}

	if s.Turn == domain.Black {
		b.WriteString(" b ")
	} else {
		b.WriteString(" w ")
	}
	b.WriteString(encodeCastling(s.Castling))
	b.WriteString(" - ")
	b.WriteString(strconv.FormatUint(uint64(s.HalfmoveClock), 10))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(uint64(s.FullmoveNumber), 10))
	return b.String()
}

func encodeCastling(c domain.CastlingRights) string {
	out := ""
	if c.White.Kingside {
		out += "K"
	}
	if c.White.Queenside {
		out += "Q"
	}
	if c.Black.Kingside {
		out += "k"
	}
	if c.Black.Queenside {
		out += "q"
	}
	if out == "" {
		return "-"
	}
	return out
}
