package game

import (
	"fmt"
	"slices"
	"strings"

	"github.com/lox/mjaibridge/internal/majiang"
	"github.com/lox/mjaibridge/internal/mjai"
	"github.com/lox/mjaibridge/internal/tile"
)

// StartRound builds the Round for a deal and the start_kyoku event announcing
// it. scores is the scoreboard padded to four seats.
func StartRound(seat int, q majiang.Qipai, scores []int) (*Round, mjai.StartKyoku, error) {
	if q.Zhuangfeng < 0 || q.Zhuangfeng >= len(mjai.Winds) {
		return nil, mjai.StartKyoku{}, fmt.Errorf("%w: round wind %d", ErrDecode, q.Zhuangfeng)
	}
	oya := q.Jushu
	rel := ((seat-oya)%4 + 4) % 4
	if len(q.Shoupai) == 0 {
		return nil, mjai.StartKyoku{}, fmt.Errorf("%w: no hands dealt", ErrDecode)
	}
	// hands are listed from the dealer and wrap at the table size
	n := len(q.Shoupai)
	own, err := toAITiles(q.Shoupai[((seat-oya)%n+n)%n])
	if err != nil {
		return nil, mjai.StartKyoku{}, fmt.Errorf("%w: own hand: %v", ErrDecode, err)
	}
	if len(own) != 13 {
		return nil, mjai.StartKyoku{}, fmt.Errorf("%w: dealt %d tiles", ErrIntegrity, len(own))
	}
	marker, err := tile.ToAI(q.Baopai)
	if err != nil {
		return nil, mjai.StartKyoku{}, fmt.Errorf("%w: dora marker: %v", ErrDecode, err)
	}

	r := &Round{
		Bakaze:      mjai.Winds[q.Zhuangfeng],
		Jikaze:      mjai.Winds[rel],
		Kyoku:       oya + 1,
		Honba:       q.Changbang,
		Kyotaku:     q.Lizhibang,
		Oya:         oya,
		seat:        seat,
		hand:        tile.Sort(own),
		doraMarkers: []string{marker},
		firstMove:   true,
	}

	tehais := make([][]string, 4)
	for i := range tehais {
		if i == seat {
			tehais[i] = r.Hand()
			continue
		}
		tehais[i] = slices.Repeat([]string{tile.Unknown}, 13)
	}

	ev := mjai.StartKyoku{
		Bakaze:     r.Bakaze,
		Jikaze:     r.Jikaze,
		DoraMarker: marker,
		Honba:      r.Honba,
		Kyoku:      r.Kyoku,
		Kyotaku:    r.Kyotaku,
		Oya:        oya,
		Scores:     slices.Clone(scores),
		Tehais:     tehais,
	}
	return r, ev, nil
}

// Apply translates one in-round action message into mjai events, updating the
// round as it goes. Events staged by earlier messages (a reach acceptance, a
// draw held back for its dora) come first.
func (r *Round) Apply(msg majiang.Message) ([]mjai.Event, error) {
	var handle func([]mjai.Event) ([]mjai.Event, error)
	switch m := msg.(type) {
	case majiang.Zimo:
		handle = func(b []mjai.Event) ([]mjai.Event, error) { return r.applyZimo(b, m) }
	case majiang.Dapai:
		handle = func(b []mjai.Event) ([]mjai.Event, error) { return r.applyDapai(b, m) }
	case majiang.Fulou:
		handle = func(b []mjai.Event) ([]mjai.Event, error) { return r.applyFulou(b, m) }
	case majiang.Gang:
		handle = func(b []mjai.Event) ([]mjai.Event, error) { return r.applyGang(b, m) }
	case majiang.Kaigang:
		handle = func(b []mjai.Event) ([]mjai.Event, error) { return r.applyKaigang(b, m) }
	case majiang.Hule, majiang.Pingju:
		handle = r.end
	default:
		return nil, fmt.Errorf("%w: %s is not a round action", ErrDecode, msg.Tag())
	}

	r.firstMove = false

	var batch []mjai.Event
	if _, win := msg.(majiang.Hule); win {
		// a reach that wins straight away is never accepted
		r.reachAccepted.clear()
	} else if ev, ok := r.reachAccepted.take(); ok {
		batch = append(batch, ev)
	}

	if held, ok := r.heldDraw.take(); ok {
		if kg, ok := msg.(majiang.Kaigang); ok {
			batch, err := r.applyKaigang(batch, kg)
			if err != nil {
				return nil, err
			}
			return append(batch, held), nil
		}
		batch = append(batch, held)
	}

	return handle(batch)
}

// Holding reports whether a rinshan draw is waiting for its dora reveal.
func (r *Round) Holding() bool {
	return r.heldDraw.present()
}

func (r *Round) applyZimo(batch []mjai.Event, z majiang.Zimo) ([]mjai.Event, error) {
	actor := r.actor(z.L)
	pai := tile.Unknown
	if actor == r.seat {
		if z.P == "" {
			return nil, fmt.Errorf("%w: own draw without a tile", ErrIntegrity)
		}
		t, err := tile.ToAI(z.P)
		if err != nil {
			return nil, fmt.Errorf("%w: draw: %v", ErrDecode, err)
		}
		if err := r.draw(t); err != nil {
			return nil, err
		}
		pai = t
	}

	ev := mjai.Tsumo{Actor: actor, Pai: pai}
	afterAnkan := r.afterAnkan
	r.afterAnkan = false
	if z.Rinshan && afterAnkan && len(batch) == 0 {
		r.heldDraw.set(ev)
		return nil, nil
	}
	return append(batch, ev), nil
}

func (r *Round) applyDapai(batch []mjai.Event, d majiang.Dapai) ([]mjai.Event, error) {
	if len(d.P) < 2 {
		return nil, fmt.Errorf("%w: discard %q", ErrDecode, d.P)
	}
	actor := r.actor(d.L)
	pai, err := tile.ToAI(d.P[:2])
	if err != nil {
		return nil, fmt.Errorf("%w: discard: %v", ErrDecode, err)
	}
	flags := d.P[2:]
	tsumogiri := strings.Contains(flags, "_")

	if actor == r.seat {
		if err := r.discard(pai); err != nil {
			return nil, err
		}
	}

	if strings.Contains(flags, "*") {
		r.reach[actor] = true
		if err := r.stageReachAccepted(actor); err != nil {
			return nil, err
		}
		batch = append(batch, mjai.Reach{Actor: actor})
	}
	return append(batch, mjai.Dahai{Actor: actor, Pai: pai, Tsumogiri: tsumogiri}), nil
}

func (r *Round) applyFulou(batch []mjai.Event, f majiang.Fulou) ([]mjai.Event, error) {
	meld, err := majiang.ParseMeld(f.M)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if meld.Mark == 0 {
		return nil, fmt.Errorf("%w: call %q has no source mark", ErrDecode, f.M)
	}
	tiles, err := meldTiles(meld)
	if err != nil {
		return nil, err
	}

	actor := r.actor(f.L)
	pai := tiles[meld.Called]
	consumed := slices.Delete(slices.Clone(tiles), meld.Called, meld.Called+1)
	call := mjai.Meld{
		Actor:    actor,
		Target:   (actor + meld.TargetOffset()) % 4,
		Pai:      pai,
		Consumed: consumed,
	}

	var ev mjai.Event
	switch {
	case len(consumed) == 3:
		ev = mjai.Daiminkan(call)
	case len(consumed) == 2 && tile.Deaka(consumed[0]) == tile.Deaka(consumed[1]):
		ev = mjai.Pon(call)
	case len(consumed) == 2:
		ev = mjai.Chi(call)
	default:
		return nil, fmt.Errorf("%w: call %q consumes %d tiles", ErrDecode, f.M, len(consumed))
	}

	if actor == r.seat {
		if err := r.meld(consumed); err != nil {
			return nil, err
		}
	}
	return append(batch, ev), nil
}

func (r *Round) applyGang(batch []mjai.Event, g majiang.Gang) ([]mjai.Event, error) {
	meld, err := majiang.ParseMeld(g.M)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(meld.Digits) != 4 {
		return nil, fmt.Errorf("%w: kan %q has %d tiles", ErrDecode, g.M, len(meld.Digits))
	}
	tiles, err := meldTiles(meld)
	if err != nil {
		return nil, err
	}
	actor := r.actor(g.L)

	if meld.Mark == 0 {
		if actor == r.seat {
			if err := r.meld(tiles); err != nil {
				return nil, err
			}
		}
		r.afterAnkan = !r.noKanDora
		return append(batch, mjai.Ankan{Actor: actor, Consumed: tiles}), nil
	}

	// added kan: the pon's three tiles and its mark, then the added tile
	pai := tiles[3]
	if actor == r.seat {
		if err := r.meld([]string{pai}); err != nil {
			return nil, err
		}
	}
	return append(batch, mjai.Kakan{Actor: actor, Pai: pai, Consumed: tiles[:3]}), nil
}

func (r *Round) applyKaigang(batch []mjai.Event, k majiang.Kaigang) ([]mjai.Event, error) {
	marker, err := tile.ToAI(k.Baopai)
	if err != nil {
		return nil, fmt.Errorf("%w: dora marker: %v", ErrDecode, err)
	}
	r.doraMarkers = append(r.doraMarkers, marker)
	// a reveal ahead of the replacement draw leaves nothing to wait for
	r.afterAnkan = false
	return append(batch, mjai.Dora{DoraMarker: marker}), nil
}

func (r *Round) end(batch []mjai.Event) ([]mjai.Event, error) {
	r.ended = true
	return append(batch, mjai.EndKyoku{}), nil
}

func meldTiles(m majiang.Meld) ([]string, error) {
	out := make([]string, 0, len(m.Digits))
	for _, t := range m.Tiles() {
		ai, err := tile.ToAI(t)
		if err != nil {
			return nil, fmt.Errorf("%w: meld: %v", ErrDecode, err)
		}
		out = append(out, ai)
	}
	return out, nil
}

func toAITiles(hand string) ([]string, error) {
	server, err := tile.ParseHand(hand)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(server))
	for _, t := range server {
		ai, err := tile.ToAI(t)
		if err != nil {
			return nil, err
		}
		out = append(out, ai)
	}
	return out, nil
}
