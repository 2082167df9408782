package game

import (
	"fmt"
	"slices"

	"github.com/lox/mjaibridge/internal/mjai"
	"github.com/lox/mjaibridge/internal/tile"
)

// optional holds at most one value. set refuses to overwrite.
type optional[T any] struct {
	value T
	ok    bool
}

func (o *optional[T]) set(v T) bool {
	if o.ok {
		return false
	}
	o.value, o.ok = v, true
	return true
}

func (o *optional[T]) take() (T, bool) {
	v, ok := o.value, o.ok
	*o = optional[T]{}
	return v, ok
}

func (o *optional[T]) clear() {
	*o = optional[T]{}
}

func (o optional[T]) present() bool {
	return o.ok
}

// Round is the state of one kyoku as seen from our seat. A new Round is built
// for every deal; nothing carries over between rounds.
type Round struct {
	Bakaze  string
	Jikaze  string
	Kyoku   int // 1-based; the dealer sits at Kyoku-1
	Honba   int
	Kyotaku int
	Oya     int

	seat int

	// hand holds every concealed tile, the drawn tile included.
	hand        []string
	drawn       string
	reach       [4]bool
	doraMarkers []string
	firstMove   bool
	ended       bool

	reachAccepted optional[mjai.ReachAccepted]
	heldDraw      optional[mjai.Tsumo]

	// afterAnkan is set between a concealed kan and its dora reveal.
	afterAnkan bool
	noKanDora  bool
}

// Seat is our absolute seat.
func (r *Round) Seat() int { return r.seat }

// Hand returns our concealed tiles in canonical order, the drawn tile included.
func (r *Round) Hand() []string { return slices.Clone(r.hand) }

// Tehai returns the concealed tiles without the drawn tile.
func (r *Round) Tehai() []string {
	if r.drawn == "" {
		return r.Hand()
	}
	out := slices.Clone(r.hand)
	if i := slices.Index(out, r.drawn); i >= 0 {
		out = slices.Delete(out, i, i+1)
	}
	return out
}

// Drawn returns the tile we drew this turn, if we still hold it.
func (r *Round) Drawn() (string, bool) { return r.drawn, r.drawn != "" }

// Reached reports whether seat has declared reach this round.
func (r *Round) Reached(seat int) bool {
	if seat < 0 || seat >= len(r.reach) {
		return false
	}
	return r.reach[seat]
}

// OwnReach reports whether we have declared reach.
func (r *Round) OwnReach() bool { return r.Reached(r.seat) }

// DoraMarkers returns the revealed dora indicators in reveal order.
func (r *Round) DoraMarkers() []string { return slices.Clone(r.doraMarkers) }

// FirstMove is true until the first action message after the deal.
func (r *Round) FirstMove() bool { return r.firstMove }

// Ended reports whether the round finished with a win or a draw.
func (r *Round) Ended() bool { return r.ended }

// actor turns a dealer-relative offset into an absolute seat.
func (r *Round) actor(offset int) int {
	return ResolveSeat(offset, r.Kyoku)
}

func (r *Round) draw(pai string) error {
	if r.drawn != "" {
		return fmt.Errorf("%w: drew %s while still holding %s", ErrIntegrity, pai, r.drawn)
	}
	r.hand = withTiles(r.hand, pai)
	r.drawn = pai
	return nil
}

// discard removes pai from the hand. The drawn tile, if any, has joined the
// hand by now.
func (r *Round) discard(pai string) error {
	hand, err := withoutTiles(r.hand, pai)
	if err != nil {
		return err
	}
	r.hand, r.drawn = hand, ""
	return nil
}

func (r *Round) meld(consumed []string) error {
	hand, err := withoutTiles(r.hand, consumed...)
	if err != nil {
		return err
	}
	r.hand, r.drawn = hand, ""
	return nil
}

func (r *Round) stageReachAccepted(actor int) error {
	if !r.reachAccepted.set(mjai.ReachAccepted{Actor: actor}) {
		return fmt.Errorf("%w: reach of seat %d staged while seat %d is still pending",
			ErrIntegrity, actor, r.reachAccepted.value.Actor)
	}
	return nil
}

// withTiles returns a new sorted hand with add included.
func withTiles(hand []string, add ...string) []string {
	return tile.Sort(slices.Concat(hand, add))
}

// withoutTiles returns a new sorted hand with one copy of each tile in remove
// taken out. A missing tile means our view of the hand has drifted.
func withoutTiles(hand []string, remove ...string) ([]string, error) {
	out := slices.Clone(hand)
	for _, t := range remove {
		i := slices.Index(out, t)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s not in hand %v", ErrIntegrity, t, hand)
		}
		out = slices.Delete(out, i, i+1)
	}
	return tile.Sort(out), nil
}

// ResolveSeat converts the server's dealer-relative offset into an absolute
// seat. kyoku is the 1-based round number. Three player tables use the same
// four seat arithmetic with one seat left empty.
func ResolveSeat(offset, kyoku int) int {
	return ((offset+kyoku-1)%4 + 4) % 4
}
