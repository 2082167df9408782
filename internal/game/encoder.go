package game

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/lox/mjaibridge/internal/majiang"
	"github.com/lox/mjaibridge/internal/mjai"
	"github.com/lox/mjaibridge/internal/tile"
)

// ErrUnencodable is returned by Encode for actions the server has no notation
// for. The accompanying reply is still the empty action.
var ErrUnencodable = errors.New("cannot encode action")

// kakanMark is written for every added kan regardless of where the pon came from.
const kakanMark = "-"

// Encode converts an agent action into the server reply for seq. A nil or
// "none" action is the empty reply. On error the returned reply is also the
// empty reply, so the server is always answered.
func Encode(a *mjai.Action, seq int) (majiang.Reply, error) {
	if a.IsNone() {
		return majiang.Empty(seq), nil
	}
	kind, value, err := encodeAction(a)
	if err != nil {
		return majiang.Empty(seq), fmt.Errorf("%w: %s: %v", ErrUnencodable, a.Type, err)
	}
	return majiang.Reply{Kind: kind, Value: value, Seq: seq}, nil
}

func encodeAction(a *mjai.Action) (majiang.ReplyKind, string, error) {
	switch a.Type {
	case mjai.TypeDahai:
		v, err := encodeDahai(a)
		return majiang.ReplyDapai, v, err

	case mjai.TypeReach:
		if a.ReachDahai == nil || a.ReachDahai.Type != mjai.TypeDahai {
			return "", "", errors.New("reach without a discard")
		}
		v, err := encodeDahai(a.ReachDahai)
		return majiang.ReplyDapai, v + "*", err

	case mjai.TypeChi, mjai.TypePon, mjai.TypeDaiminkan:
		v, err := encodeCall(a)
		return majiang.ReplyFulou, v, err

	case mjai.TypeAnkan:
		v, err := encodeAnkan(a.Consumed)
		return majiang.ReplyGang, v, err

	case mjai.TypeKakan:
		v, err := encodeKakan(a)
		return majiang.ReplyGang, v, err

	case mjai.TypeHora:
		return majiang.ReplyHule, "-", nil

	case mjai.TypeRyukyoku:
		return majiang.ReplyDaopai, "-", nil
	}
	return "", "", fmt.Errorf("unexpected action type %q", a.Type)
}

func encodeDahai(a *mjai.Action) (string, error) {
	p, err := tile.ToServer(a.Pai)
	if err != nil {
		return "", err
	}
	if a.Tsumogiri {
		p += "_"
	}
	return p, nil
}

// encodeCall writes chi as the three ranks in order with the mark after the
// called tile ("m1-23"), and pon or open kan as the consumed ranks followed by
// the called rank and the mark ("s505=").
func encodeCall(a *mjai.Action) (string, error) {
	suit, called, err := splitTile(a.Pai)
	if err != nil {
		return "", err
	}
	consumed, err := rankDigits(suit, a.Consumed)
	if err != nil {
		return "", err
	}
	mark := majiang.OffsetMark((a.Target - a.Actor + 4) % 4)
	if mark == 0 {
		return "", fmt.Errorf("target %d is the caller", a.Target)
	}

	var b strings.Builder
	b.WriteByte(suit)
	if a.Type == mjai.TypeChi {
		if len(consumed) != 2 {
			return "", fmt.Errorf("chi consumes %d tiles", len(consumed))
		}
		digits := sortRanks(append(consumed, called))
		i := slices.Index(digits, called)
		b.Write(digits[:i+1])
		b.WriteByte(mark)
		b.Write(digits[i+1:])
		return b.String(), nil
	}

	b.Write(sortRanks(consumed))
	b.WriteByte(called)
	b.WriteByte(mark)
	return b.String(), nil
}

// encodeAnkan writes the four ranks with any red five last ("p5550").
func encodeAnkan(consumed []string) (string, error) {
	if len(consumed) != 4 {
		return "", fmt.Errorf("ankan consumes %d tiles", len(consumed))
	}
	suit, _, err := splitTile(consumed[0])
	if err != nil {
		return "", err
	}
	digits, err := rankDigits(suit, consumed)
	if err != nil {
		return "", err
	}
	return string(suit) + string(sortRanks(digits)), nil
}

func encodeKakan(a *mjai.Action) (string, error) {
	suit, added, err := splitTile(a.Pai)
	if err != nil {
		return "", err
	}
	digits, err := rankDigits(suit, a.Consumed)
	if err != nil {
		return "", err
	}
	return string(suit) + string(sortRanks(digits)) + kakanMark + string(added), nil
}

func splitTile(ai string) (suit, digit byte, err error) {
	s, err := tile.ToServer(ai)
	if err != nil {
		return 0, 0, err
	}
	return s[0], s[1], nil
}

// rankDigits returns the server rank characters of tiles, which must all be
// of the given suit.
func rankDigits(suit byte, tiles []string) ([]byte, error) {
	out := make([]byte, 0, len(tiles))
	for _, t := range tiles {
		s, d, err := splitTile(t)
		if err != nil {
			return nil, err
		}
		if s != suit {
			return nil, fmt.Errorf("%s is not in suit %c", t, suit)
		}
		out = append(out, d)
	}
	return out, nil
}

// sortRanks orders rank characters numerically, placing a red five ('0')
// after the plain fives.
func sortRanks(digits []byte) []byte {
	out := slices.Clone(digits)
	slices.SortStableFunc(out, func(a, b byte) int {
		return rankKey(a) - rankKey(b)
	})
	return out
}

func rankKey(d byte) int {
	if d == '0' {
		return 5*2 + 1
	}
	return int(d-'0') * 2
}
