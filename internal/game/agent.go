package game

import (
	"context"
	"fmt"

	"github.com/lox/mjaibridge/internal/mjai"
)

// Mode is the number of players at the table.
type Mode int

const (
	Mode3P Mode = 3
	Mode4P Mode = 4
)

func (m Mode) String() string {
	switch m {
	case Mode3P:
		return "3p"
	case Mode4P:
		return "4p"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Agent is an mjai decision maker. React receives a single event and
// ReactBatch an ordered batch; both may return a nil action to pass. An agent
// lives for the whole game and is initialised once with our seat.
type Agent interface {
	Init(seat int, mode Mode) error
	React(ctx context.Context, ev mjai.Event) (*mjai.Action, error)
	ReactBatch(ctx context.Context, evs []mjai.Event) (*mjai.Action, error)
}
