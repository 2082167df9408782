package mjai

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedAction is returned when agent output cannot be decoded.
var ErrMalformedAction = errors.New("malformed mjai action")

// Action is an agent's reaction to a batch of events.
type Action struct {
	Type       Type            `json:"type"`
	Actor      int             `json:"actor"`
	Target     int             `json:"target,omitempty"`
	Pai        string          `json:"pai,omitempty"`
	Consumed   []string        `json:"consumed,omitempty"`
	Tsumogiri  bool            `json:"tsumogiri,omitempty"`
	ReachDahai *Action         `json:"reach_dahai,omitempty"`
	Meta       json.RawMessage `json:"meta,omitempty"`
}

// None is the explicit "pass" action.
func None() *Action {
	return &Action{Type: TypeNone}
}

// IsNone reports whether a carries no move, a nil action included.
func (a *Action) IsNone() bool {
	return a == nil || a.Type == TypeNone || a.Type == ""
}

func (a *Action) String() string {
	if a == nil {
		return "<nil>"
	}
	b, err := json.Marshal(a)
	if err != nil {
		return string(a.Type)
	}
	return string(b)
}

// DecodeAction parses a single action object. Empty input and JSON null decode
// to a nil action.
func DecodeAction(data []byte) (*Action, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAction, err)
	}
	if a.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedAction)
	}
	if a.Type == TypeReach && a.ReachDahai != nil && a.ReachDahai.Type != TypeDahai {
		return nil, fmt.Errorf("%w: reach_dahai has type %q", ErrMalformedAction, a.ReachDahai.Type)
	}
	return &a, nil
}

// MarshalBatch encodes events as one JSON array, the line format mjai agents read.
func MarshalBatch(events []Event) ([]byte, error) {
	out := make([]json.RawMessage, 0, len(events))
	for _, ev := range events {
		b, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", ev.EventType(), err)
		}
		out = append(out, b)
	}
	return json.Marshal(out)
}
