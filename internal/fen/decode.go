// Package fen converts between the server's board serialization and domain snapshots.
package fen

import (
	"strconv"
	"strings"

	"github.com/park285/scuffed-chess-client/internal/domain"
)

// Decode parses a board serialization string into a fresh snapshot.
//
// The board section holds exactly eight '/'-separated ranks; the remaining
// fields are active color, castling rights, en passant target (ignored),
// halfmove clock and fullmove number, all required. End state is never
// derived here.
func Decode(serialized string) (*domain.Snapshot, error) {
	fields := strings.Fields(serialized)
	if len(fields) != 6 {
		return nil, fail(serialized, "fields", "expected board plus 5 fields, got %d", len(fields))
	}

	board, err := decodeBoard(serialized, fields[0])
	if err != nil {
		return nil, err
	}

	snap := &domain.Snapshot{Board: board, Turn: decodeTurn(fields[1])}

	if snap.Castling, err = decodeCastling(serialized, fields[2]); err != nil {
		return nil, err
	}
	// fields[3] is the en passant target; the client does not track it.
	if snap.HalfmoveClock, err = decodeCounter(serialized, "halfmove-clock", fields[4]); err != nil {
		return nil, err
	}
	if snap.FullmoveNumber, err = decodeCounter(serialized, "fullmove-number", fields[5]); err != nil {
		return nil, err
	}
	return snap, nil
}

func decodeBoard(input, section string) (domain.Board, error) {
	board := domain.NewBoard()
	ranks := strings.Split(section, "/")
	if len(ranks) != domain.BoardSize {
		return board, fail(input, "board", "expected %d ranks, got %d", domain.BoardSize, len(ranks))
	}
	for rank, tokens := range ranks {
		file := 0
		for _, ch := range tokens {
			if ch >= '1' && ch <= '8' {
				file += int(ch - '0')
				if file > domain.BoardSize {
					return board, fail(input, "board", "rank %d spans more than %d files", rank+1, domain.BoardSize)
				}
				continue
			}
			piece, ok := pieceFor(ch)
			if !ok {
				return board, fail(input, "board", "invalid piece letter %q in rank %d", ch, rank+1)
			}
			if file >= domain.BoardSize {
				return board, fail(input, "board", "rank %d spans more than %d files", rank+1, domain.BoardSize)
			}
			board[file][rank].Piece = &piece
			board[file][rank].ContainsPiece = true
			file++
		}
		if file != domain.BoardSize {
			return board, fail(input, "board", "rank %d spans %d files, want %d", rank+1, file, domain.BoardSize)
		}
	}
	return board, nil
}

func pieceFor(ch rune) (domain.Piece, bool) {
	color := domain.White
	upper := ch
	if ch >= 'a' && ch <= 'z' {
		color = domain.Black
		upper = ch - 'a' + 'A'
	}
	var class domain.Class
	switch upper {
	case 'Q':
		class = domain.Queen
	case 'K':
		class = domain.King
	case 'R':
		class = domain.Rook
	case 'B':
		class = domain.Bishop
	case 'N':
		class = domain.Knight
	case 'P':
		class = domain.Pawn
	default:
		return domain.Piece{}, false
	}
	return domain.Piece{Color: color, Class: class}, true
}

// decodeTurn treats anything other than "b" as white, matching the server.
func decodeTurn(field string) domain.Color {
	if field == "b" {
		return domain.Black
	}
	return domain.White
}

func decodeCastling(input, field string) (domain.CastlingRights, error) {
	var rights domain.CastlingRights
	if field == "-" {
		return rights, nil
	}
	for _, ch := range field {
		switch ch {
		case 'K':
			rights.White.Kingside = true
		case 'Q':
			rights.White.Queenside = true
		case 'k':
			rights.Black.Kingside = true
		case 'q':
			rights.Black.Queenside = true
		default:
			return rights, fail(input, "castling-rights", "unexpected %q", ch)
		}
	}
	return rights, nil
}

func decodeCounter(input, name, field string) (uint, error) {
	n, err := strconv.ParseUint(field, 10, 32)
	if err != nil {
		return 0, fail(input, name, "%q is not a non-negative integer", field)
	}
	return uint(n), nil
}
