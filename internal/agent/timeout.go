package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"

	"github.com/lox/mjaibridge/internal/game"
	"github.com/lox/mjaibridge/internal/mjai"
)

// ErrTimeout is returned when the wrapped agent does not answer in time.
var ErrTimeout = errors.New("agent timed out")

type timeoutAgent struct {
	agent   game.Agent
	timeout time.Duration
	clock   quartz.Clock
}

// WithTimeout bounds every reaction of agent to d. A timed out reaction is
// reported as ErrTimeout and the agent's context is cancelled.
func WithTimeout(agent game.Agent, d time.Duration, clock quartz.Clock) game.Agent {
	if d <= 0 {
		return agent
	}
	return &timeoutAgent{agent: agent, timeout: d, clock: clock}
}

func (t *timeoutAgent) Init(seat int, mode game.Mode) error {
	return t.agent.Init(seat, mode)
}

func (t *timeoutAgent) React(ctx context.Context, ev mjai.Event) (*mjai.Action, error) {
	return t.run(ctx, func(ctx context.Context) (*mjai.Action, error) {
		return t.agent.React(ctx, ev)
	})
}

func (t *timeoutAgent) ReactBatch(ctx context.Context, evs []mjai.Event) (*mjai.Action, error) {
	return t.run(ctx, func(ctx context.Context) (*mjai.Action, error) {
		return t.agent.ReactBatch(ctx, evs)
	})
}

type result struct {
	action *mjai.Action
	err    error
}

func (t *timeoutAgent) run(ctx context.Context, react func(context.Context) (*mjai.Action, error)) (*mjai.Action, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	expired := make(chan struct{})
	timer := t.clock.AfterFunc(t.timeout, func() { close(expired) }, "agent", "react")
	defer timer.Stop()

	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("agent panic: %v", r)}
			}
		}()
		action, err := react(ctx)
		done <- result{action: action, err: err}
	}()

	select {
	case r := <-done:
		return r.action, r.err
	case <-expired:
		return nil, fmt.Errorf("%w after %s", ErrTimeout, t.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
