package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/lox/mjaibridge/cmd/mjaibot/shared"
	"github.com/lox/mjaibridge/internal/config"
	"github.com/lox/mjaibridge/internal/game"
	"github.com/lox/mjaibridge/internal/majiang"
	"github.com/lox/mjaibridge/internal/mjai"
	"github.com/lox/mjaibridge/internal/record"
)

type ReplayCmd struct {
	File     string   `arg:"" help:"Transcript (.jsonl.zst) to replay" type:"existingfile"`
	Agent    string   `default:"tsumogiri" help:"Agent kind (tsumogiri|process)"`
	Command  string   `help:"mjai bot command, implies --agent=process"`
	Args     []string `help:"Arguments for the bot command"`
	LogLevel string   `default:"warn" help:"Log level (debug|info|warn|error)"`

	out io.Writer
}

func (c *ReplayCmd) Run() error {
	logger, err := shared.SetupLogger(c.LogLevel, false)
	if err != nil {
		return err
	}
	out := c.out
	if out == nil {
		out = os.Stdout
	}

	entries, err := record.ReadAll(c.File)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}

	kind := c.Agent
	if c.Command != "" {
		kind = config.AgentProcess
	}
	a, stop, err := newAgent(kind, c.Command, c.Args, 0, logger)
	if err != nil {
		return err
	}
	defer stop()

	session := game.NewSession(&teeAgent{agent: a, out: out}, logger.WithPrefix("session"))
	ctx := context.Background()

	for _, e := range entries {
		fmt.Fprintf(out, "server> %s\n", e.Message)
		env, err := majiang.Decode(e.Message)
		if err != nil {
			fmt.Fprintf(out, "error>  %v\n", err)
			continue
		}
		reply, err := session.Handle(ctx, env)
		if err != nil {
			fmt.Fprintf(out, "error>  %v\n", err)
			continue
		}
		if reply == nil {
			continue
		}
		b, err := json.Marshal(reply)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "reply<  %s\n", b)
	}

	if result, ok := session.Result(); ok {
		b, err := json.Marshal(result)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "result  %s\n", b)
	}
	return nil
}

// teeAgent prints the mjai traffic of the agent it wraps.
type teeAgent struct {
	agent game.Agent
	out   io.Writer
}

func (t *teeAgent) Init(seat int, mode game.Mode) error {
	return t.agent.Init(seat, mode)
}

func (t *teeAgent) React(ctx context.Context, ev mjai.Event) (*mjai.Action, error) {
	t.events([]mjai.Event{ev})
	a, err := t.agent.React(ctx, ev)
	t.action(a, err)
	return a, err
}

func (t *teeAgent) ReactBatch(ctx context.Context, evs []mjai.Event) (*mjai.Action, error) {
	t.events(evs)
	a, err := t.agent.ReactBatch(ctx, evs)
	t.action(a, err)
	return a, err
}

func (t *teeAgent) events(evs []mjai.Event) {
	b, err := mjai.MarshalBatch(evs)
	if err != nil {
		fmt.Fprintf(t.out, "error>  %v\n", err)
		return
	}
	fmt.Fprintf(t.out, "mjai>   %s\n", b)
}

func (t *teeAgent) action(a *mjai.Action, err error) {
	if err != nil {
		fmt.Fprintf(t.out, "error>  %v\n", err)
		return
	}
	fmt.Fprintf(t.out, "bot<    %s\n", a)
}
