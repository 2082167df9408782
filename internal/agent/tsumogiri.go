package agent

import (
	"context"

	"github.com/lox/mjaibridge/internal/game"
	"github.com/lox/mjaibridge/internal/mjai"
)

// Tsumogiri discards every tile it draws and never calls. It is the fallback
// bot and the one used for smoke tests against a server.
type Tsumogiri struct {
	seat int
}

// NewTsumogiri returns a tsumogiri bot.
func NewTsumogiri() *Tsumogiri { return &Tsumogiri{} }

func (t *Tsumogiri) Init(seat int, _ game.Mode) error {
	t.seat = seat
	return nil
}

func (t *Tsumogiri) React(ctx context.Context, ev mjai.Event) (*mjai.Action, error) {
	return t.ReactBatch(ctx, []mjai.Event{ev})
}

// ReactBatch only looks at the last event; anything before it has already
// been seen by the server.
func (t *Tsumogiri) ReactBatch(_ context.Context, evs []mjai.Event) (*mjai.Action, error) {
	if len(evs) == 0 {
		return mjai.None(), nil
	}
	draw, ok := evs[len(evs)-1].(mjai.Tsumo)
	if !ok || draw.Actor != t.seat {
		return mjai.None(), nil
	}
	return &mjai.Action{Type: mjai.TypeDahai, Actor: t.seat, Pai: draw.Pai, Tsumogiri: true}, nil
}
