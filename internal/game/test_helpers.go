package game

import (
	"context"
	"slices"

	"github.com/lox/mjaibridge/internal/mjai"
)

// ScriptedAgent records everything it is shown and answers with Respond, or
// with no action when Respond is nil. It is meant for tests and replays.
type ScriptedAgent struct {
	Seat  int
	Mode  Mode
	Inits int

	// Calls holds each delivery in order; single events are stored as
	// one-element batches.
	Calls   [][]mjai.Event
	Singles int
	Respond func(evs []mjai.Event) (*mjai.Action, error)
}

func (a *ScriptedAgent) Init(seat int, mode Mode) error {
	a.Seat, a.Mode = seat, mode
	a.Inits++
	return nil
}

func (a *ScriptedAgent) React(ctx context.Context, ev mjai.Event) (*mjai.Action, error) {
	a.Singles++
	return a.reply([]mjai.Event{ev})
}

func (a *ScriptedAgent) ReactBatch(ctx context.Context, evs []mjai.Event) (*mjai.Action, error) {
	return a.reply(slices.Clone(evs))
}

func (a *ScriptedAgent) reply(evs []mjai.Event) (*mjai.Action, error) {
	a.Calls = append(a.Calls, evs)
	if a.Respond == nil {
		return nil, nil
	}
	return a.Respond(evs)
}

// Last returns the most recent delivery.
func (a *ScriptedAgent) Last() []mjai.Event {
	if len(a.Calls) == 0 {
		return nil
	}
	return a.Calls[len(a.Calls)-1]
}

// Events returns every event delivered so far, flattened.
func (a *ScriptedAgent) Events() []mjai.Event {
	var out []mjai.Event
	for _, c := range a.Calls {
		out = append(out, c...)
	}
	return out
}

// Types lists the event types of a batch.
func Types(evs []mjai.Event) []mjai.Type {
	out := make([]mjai.Type, len(evs))
	for i, ev := range evs {
		out[i] = ev.EventType()
	}
	return out
}
