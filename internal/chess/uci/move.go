package uci

import (
	"errors"
	"fmt"
)

// ErrMalformedToken is returned for any move token that is not plain
// coordinate notation (e2e4, e7e8q).
var ErrMalformedToken = errors.New("malformed move token")

type PieceKind uint8

const (
	NoPiece PieceKind = iota
	Queen
	Rook
	Bishop
	Knight
)

func (k PieceKind) letter() byte {
	switch k {
	case Queen:
		return 'q'
	case Rook:
		return 'r'
	case Bishop:
		return 'b'
	case Knight:
		return 'n'
	default:
		return 0
	}
}

func promotionFromLetter(c byte) (PieceKind, bool) {
	switch c {
	case 'q':
		return Queen, true
	case 'r':
		return Rook, true
	case 'b':
		return Bishop, true
	case 'n':
		return Knight, true
	default:
		return NoPiece, false
	}
}

// Coordinate is a board square; File 0 is the a-file, Rank 0 is the first rank.
type Coordinate struct {
	File int8
	Rank int8
}

func (c Coordinate) Valid() bool {
	return c.File >= 0 && c.File <= 7 && c.Rank >= 0 && c.Rank <= 7
}

func (c Coordinate) String() string {
	if !c.Valid() {
		return "??"
	}
	return string([]byte{'a' + byte(c.File), '1' + byte(c.Rank)})
}

// ParseCoordinate decodes a two character square such as "e4".
func ParseCoordinate(s string) (Coordinate, error) {
	if len(s) != 2 {
		return Coordinate{}, fmt.Errorf("%w: square %q", ErrMalformedToken, s)
	}
	c, ok := coordinateFrom(s[0], s[1])
	if !ok {
		return Coordinate{}, fmt.Errorf("%w: square %q", ErrMalformedToken, s)
	}
	return c, nil
}

func coordinateFrom(file, rank byte) (Coordinate, bool) {
	if file < 'a' || file > 'h' || rank < '1' || rank > '8' {
		return Coordinate{}, false
	}
	return Coordinate{File: int8(file - 'a'), Rank: int8(rank - '1')}, true
}

// Move is an origin/destination pair with an optional promotion piece.
type Move struct {
	From      Coordinate
	To        Coordinate
	Promotion PieceKind
}

// String encodes the move in engine notation. DecodeMove(m.String()) == m
// for every move with valid coordinates.
func (m Move) String() string {
	s := m.From.String() + m.To.String()
	if l := m.Promotion.letter(); l != 0 {
		s += string(l)
	}
	return s
}

// DecodeMove parses a 4 or 5 character engine move token.
func DecodeMove(token string) (Move, error) {
	if len(token) != 4 && len(token) != 5 {
		return Move{}, fmt.Errorf("%w: %q has length %d", ErrMalformedToken, token, len(token))
	}
	from, ok := coordinateFrom(token[0], token[1])
	if !ok {
		return Move{}, fmt.Errorf("%w: %q bad origin", ErrMalformedToken, token)
	}
	to, ok := coordinateFrom(token[2], token[3])
	if !ok {
		return Move{}, fmt.Errorf("%w: %q bad destination", ErrMalformedToken, token)
	}
	mv := Move{From: from, To: to}
	if len(token) == 5 {
		promo, ok := promotionFromLetter(token[4])
		if !ok {
			return Move{}, fmt.Errorf("%w: %q bad promotion", ErrMalformedToken, token)
		}
		mv.Promotion = promo
	}
	return mv, nil
}

// FormatMoves joins moves with single spaces.
func FormatMoves(moves []Move) string {
	b := make([]byte, 0, len(moves)*5)
	for i, mv := range moves {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, mv.String()...)
	}
	return string(b)
}
