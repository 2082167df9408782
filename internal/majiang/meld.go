package majiang

import "fmt"

// Relational marks name the player a meld's called tile came from, seen from
// the caller.
const (
	MarkShimocha byte = '+' // next in turn
	MarkToimen   byte = '=' // across
	MarkKamicha  byte = '-' // previous in turn
)

// Meld is a parsed meld string such as "m1-23", "s505=" or "z666=6".
type Meld struct {
	Suit   byte
	Digits []byte
	// Called is the index in Digits of the tile followed by the mark, or -1.
	Called int
	Mark   byte
}

// ParseMeld splits a meld string into suit, rank digits and relational mark.
func ParseMeld(s string) (Meld, error) {
	if len(s) < 2 {
		return Meld{}, fmt.Errorf("%w: meld %q too short", ErrMalformed, s)
	}
	m := Meld{Suit: s[0], Called: -1}
	switch m.Suit {
	case 'm', 'p', 's', 'z':
	default:
		return Meld{}, fmt.Errorf("%w: meld %q has no suit", ErrMalformed, s)
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			m.Digits = append(m.Digits, c)
		case c == MarkShimocha || c == MarkToimen || c == MarkKamicha:
			if m.Mark != 0 || len(m.Digits) == 0 {
				return Meld{}, fmt.Errorf("%w: meld %q has a misplaced mark", ErrMalformed, s)
			}
			m.Mark = c
			m.Called = len(m.Digits) - 1
		default:
			return Meld{}, fmt.Errorf("%w: unexpected %q in meld %q", ErrMalformed, c, s)
		}
	}
	return m, nil
}

// Tiles returns the meld's tiles in server notation, in string order.
func (m Meld) Tiles() []string {
	out := make([]string, len(m.Digits))
	for i, d := range m.Digits {
		out[i] = string([]byte{m.Suit, d})
	}
	return out
}

// TargetOffset is the seat distance from the caller to the discarder:
// 1 for shimocha, 2 for toimen, 3 for kamicha and 0 when unmarked.
func (m Meld) TargetOffset() int {
	return MarkOffset(m.Mark)
}

// MarkOffset maps a relational mark to its seat distance.
func MarkOffset(mark byte) int {
	switch mark {
	case MarkShimocha:
		return 1
	case MarkToimen:
		return 2
	case MarkKamicha:
		return 3
	}
	return 0
}

// OffsetMark is the inverse of MarkOffset. It returns 0 for offsets that do
// not name another player.
func OffsetMark(offset int) byte {
	switch ((offset % 4) + 4) % 4 {
	case 1:
		return MarkShimocha
	case 2:
		return MarkToimen
	case 3:
		return MarkKamicha
	}
	return 0
}
