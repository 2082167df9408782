// Package tile converts tiles between the majiang server notation ("m5", "m0",
// "z1") and the mjai notation ("5m", "5mr", "E"), and sorts hands into the
// canonical order both protocols expect.
package tile

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidTile is returned for any string outside either alphabet.
var ErrInvalidTile = errors.New("invalid tile")

// Unknown is the mjai placeholder for a hidden tile.
const Unknown = "?"

// Suits in server notation, in canonical order.
const (
	Manzu = 'm'
	Pinzu = 'p'
	Souzu = 's'
	Jihai = 'z'
)

// honors maps server honor digits 1..7 to mjai letters.
var honors = [...]string{"E", "S", "W", "N", "P", "F", "C"}

// canonical is the total order over mjai tiles. Red fives sit directly
// before their plain counterparts.
var canonical = []string{
	"1m", "2m", "3m", "4m", "5mr", "5m", "6m", "7m", "8m", "9m",
	"1p", "2p", "3p", "4p", "5pr", "5p", "6p", "7p", "8p", "9p",
	"1s", "2s", "3s", "4s", "5sr", "5s", "6s", "7s", "8s", "9s",
	"E", "S", "W", "N", "P", "F", "C",
	Unknown,
}

var order = func() map[string]int {
	m := make(map[string]int, len(canonical))
	for i, t := range canonical {
		m[t] = i
	}
	return m
}()

// All returns every valid mjai tile (37 kinds, excluding the unknown tile) in
// canonical order.
func All() []string {
	return slices.Clone(canonical[:len(canonical)-1])
}

// Valid reports whether t is a known mjai tile, the unknown tile included.
func Valid(t string) bool {
	_, ok := order[t]
	return ok
}

// ToAI converts a two character server tile to mjai notation.
func ToAI(server string) (string, error) {
	if len(server) != 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTile, server)
	}
	suit, digit := server[0], server[1]
	if digit < '0' || digit > '9' {
		return "", fmt.Errorf("%w: %q", ErrInvalidTile, server)
	}
	switch suit {
	case Manzu, Pinzu, Souzu:
		if digit == '0' {
			return "5" + string(suit) + "r", nil
		}
		return string(digit) + string(suit), nil
	case Jihai:
		if digit < '1' || digit > '7' {
			return "", fmt.Errorf("%w: %q", ErrInvalidTile, server)
		}
		return honors[digit-'1'], nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTile, server)
}

// ToServer converts an mjai tile to the two character server notation.
func ToServer(ai string) (string, error) {
	if ai == Unknown || !Valid(ai) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTile, ai)
	}
	if i := slices.Index(honors[:], ai); i >= 0 {
		return fmt.Sprintf("z%d", i+1), nil
	}
	if IsRed(ai) {
		return string(ai[1]) + "0", nil
	}
	return string(ai[1]) + string(ai[0]), nil
}

// MustToAI is ToAI for tables and tests.
func MustToAI(server string) string {
	t, err := ToAI(server)
	if err != nil {
		panic(err)
	}
	return t
}

// IsRed reports whether t is one of the red fives.
func IsRed(t string) bool {
	return len(t) == 3 && t[2] == 'r'
}

// Deaka strips the red marker so that red and plain fives compare equal.
func Deaka(t string) string {
	if IsRed(t) {
		return t[:2]
	}
	return t
}

// Less orders tiles canonically. Unknown strings sort after every valid tile.
func Less(a, b string) bool {
	return rank(a) < rank(b)
}

func rank(t string) int {
	if i, ok := order[t]; ok {
		return i
	}
	return len(canonical)
}

// Sort returns a canonically ordered copy of hand.
func Sort(hand []string) []string {
	out := slices.Clone(hand)
	slices.SortStableFunc(out, func(a, b string) int {
		return rank(a) - rank(b)
	})
	return out
}

// ParseHand expands a server hand string such as "m2479s157789z14" into server
// tiles. Parsing stops at the first meld separator.
func ParseHand(s string) ([]string, error) {
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	var (
		out  []string
		suit byte
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == Manzu || c == Pinzu || c == Souzu || c == Jihai:
			suit = c
		case c >= '0' && c <= '9':
			if suit == 0 {
				return nil, fmt.Errorf("%w: digit before suit in %q", ErrInvalidTile, s)
			}
			out = append(out, string([]byte{suit, c}))
		case c == '*' || c == '_':
			// reach and tsumogiri decorations never affect the concealed tiles
		default:
			return nil, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidTile, c, s)
		}
	}
	return out, nil
}

// Digit returns the server rank character of an mjai tile, with red fives
// reported as '0'.
func Digit(ai string) (byte, error) {
	s, err := ToServer(ai)
	if err != nil {
		return 0, err
	}
	return s[1], nil
}

// SuitOf returns the server suit letter of an mjai tile.
func SuitOf(ai string) (byte, error) {
	s, err := ToServer(ai)
	if err != nil {
		return 0, err
	}
	return s[0], nil
}
