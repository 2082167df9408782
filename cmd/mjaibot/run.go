package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lox/mjaibridge/cmd/mjaibot/shared"
	"github.com/lox/mjaibridge/internal/botname"
	"github.com/lox/mjaibridge/internal/config"
	"github.com/lox/mjaibridge/internal/fileutil"
	"github.com/lox/mjaibridge/internal/game"
	"github.com/lox/mjaibridge/internal/record"
	"github.com/lox/mjaibridge/internal/transport"
)

type RunCmd struct {
	Config    string   `short:"c" default:"mjaibot.hcl" help:"HCL config file" type:"path"`
	EnvFile   string   `default:".env" help:"Environment file with MJAIBOT_* overrides" type:"path"`
	Server    string   `short:"s" help:"Server address (e.g. https://kobalab.net/)"`
	AppPath   string   `short:"a" help:"App path on the server (e.g. majiang/)"`
	Room      string   `short:"r" help:"Room name to join"`
	Count     int      `short:"n" help:"Number of bots (1-3)"`
	Agent     string   `help:"Agent kind (tsumogiri|process)"`
	Command   string   `help:"mjai bot command, implies --agent=process"`
	Args      []string `help:"Arguments for the bot command"`
	RecordDir string   `help:"Directory for transcripts and results"`
	LogLevel  string   `help:"Log level (debug|info|warn|error)"`
	LogJSON   bool     `help:"Output JSON logs instead of console format"`
}

func (c *RunCmd) Run() error {
	if err := config.LoadEnvFile(c.EnvFile); err != nil {
		return err
	}
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	c.override(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := shared.SetupLogger(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return err
	}
	ctx, cancel := shared.SetupSignalHandler(logger)
	defer cancel()

	endpoints, err := transport.ResolveEndpoints(cfg.Server.URL, cfg.Server.AppPath)
	if err != nil {
		return err
	}

	names := botname.NewGenerator(cfg.Bot.NamePrefix, nil)
	logger.Info("Starting bots", "count", cfg.Bot.Count, "server", cfg.Server.URL, "room", cfg.Server.Room, "agent", cfg.Bot.Agent)

	g, gctx := errgroup.WithContext(ctx)
	for range cfg.Bot.Count {
		name := names.Generate()
		g.Go(func() error {
			if err := runBot(gctx, cfg, endpoints, name, logger.With("bot", name)); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *RunCmd) override(cfg *config.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Server.URL, c.Server)
	set(&cfg.Server.AppPath, c.AppPath)
	set(&cfg.Server.Room, c.Room)
	set(&cfg.Bot.Agent, c.Agent)
	set(&cfg.Record.Dir, c.RecordDir)
	set(&cfg.Log.Level, c.LogLevel)
	if c.Command != "" {
		cfg.Bot.Command = c.Command
		cfg.Bot.Agent = config.AgentProcess
	}
	if len(c.Args) > 0 {
		cfg.Bot.Args = c.Args
	}
	if c.Count != 0 {
		cfg.Bot.Count = c.Count
	}
	cfg.Log.JSON = cfg.Log.JSON || c.LogJSON
}

// runBot plays one seat until the server ends the game.
func runBot(ctx context.Context, cfg *config.Config, endpoints transport.Endpoints, name string, logger *log.Logger) error {
	a, stop, err := newAgent(cfg.Bot.Agent, cfg.Bot.Command, cfg.Bot.Args, cfg.Timeout(), logger)
	if err != nil {
		return err
	}
	defer stop()

	session := game.NewSession(a, logger.WithPrefix("session"))
	opts := transport.Options{Name: name, Room: cfg.Server.Room}

	if cfg.Record.Dir != "" {
		rec, err := record.Create(cfg.Record.Dir, name, quartz.NewReal())
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Warn("Failed to close transcript", "error", err)
			}
		}()
		opts.Recorder = rec
		logger.Info("Recording transcript", "path", rec.Path())
	}

	client := transport.NewClient(endpoints, session, logger, opts)
	runErr := client.Run(ctx)

	if result, ok := session.Result(); ok {
		logger.Info("Final result", "seat", result.Seat, "scores", result.Scores, "rank", result.Rank, "points", result.Points)
		if cfg.Record.Dir != "" {
			path := filepath.Join(cfg.Record.Dir, fmt.Sprintf("%s-%s.result.json", name, uuid.NewString()[:8]))
			if err := fileutil.WriteJSONAtomic(path, result); err != nil {
				logger.Warn("Failed to write result", "error", err)
			}
		}
	}
	return runErr
}
