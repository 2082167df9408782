// Package config loads mjaibot settings from an HCL file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"
)

// Agent kinds.
const (
	AgentProcess   = "process"
	AgentTsumogiri = "tsumogiri"
)

// Environment variables that override the file.
const (
	EnvServer       = "MJAIBOT_SERVER"
	EnvAppPath      = "MJAIBOT_APP_PATH"
	EnvRoom         = "MJAIBOT_ROOM"
	EnvAgentCommand = "MJAIBOT_AGENT_COMMAND"
	EnvBotCount     = "MJAIBOT_BOT_COUNT"
	EnvLogLevel     = "MJAIBOT_LOG_LEVEL"
)

// Config is the complete bot configuration.
type Config struct {
	Server Server
	Bot    Bot
	Log    Log
	Record Record
}

// Server locates the majiang server.
type Server struct {
	URL     string `hcl:"url,optional"`
	AppPath string `hcl:"app_path,optional"`
	Room    string `hcl:"room,optional"`
}

// Bot describes the bots to run and the agent behind them.
type Bot struct {
	Count          int      `hcl:"count,optional"`
	NamePrefix     string   `hcl:"name_prefix,optional"`
	Agent          string   `hcl:"agent,optional"`
	Command        string   `hcl:"command,optional"`
	Args           []string `hcl:"args,optional"`
	TimeoutSeconds int      `hcl:"timeout_seconds,optional"`
}

// Log configures logging.
type Log struct {
	Level string `hcl:"level,optional"`
	JSON  bool   `hcl:"json,optional"`
}

// Record configures transcripts and result files. An empty Dir disables both.
type Record struct {
	Dir string `hcl:"dir,optional"`
}

// file mirrors Config with optional blocks.
type file struct {
	Server *Server `hcl:"server,block"`
	Bot    *Bot    `hcl:"bot,block"`
	Log    *Log    `hcl:"log,block"`
	Record *Record `hcl:"record,block"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			URL:     "https://kobalab.net/",
			AppPath: "majiang/",
		},
		Bot: Bot{
			Count:          1,
			NamePrefix:     "Mortal",
			Agent:          AgentTsumogiri,
			TimeoutSeconds: 10,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads filename over the defaults. A missing file yields the defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename == "" {
		return cfg, nil
	}
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var parsed file
	if diags := gohcl.DecodeBody(f.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	cfg.merge(parsed)
	return cfg, nil
}

func (c *Config) merge(f file) {
	if s := f.Server; s != nil {
		setString(&c.Server.URL, s.URL)
		setString(&c.Server.AppPath, s.AppPath)
		setString(&c.Server.Room, s.Room)
	}
	if b := f.Bot; b != nil {
		setInt(&c.Bot.Count, b.Count)
		setString(&c.Bot.NamePrefix, b.NamePrefix)
		setString(&c.Bot.Agent, b.Agent)
		setString(&c.Bot.Command, b.Command)
		if len(b.Args) > 0 {
			c.Bot.Args = b.Args
		}
		setInt(&c.Bot.TimeoutSeconds, b.TimeoutSeconds)
	}
	if l := f.Log; l != nil {
		setString(&c.Log.Level, l.Level)
		c.Log.JSON = c.Log.JSON || l.JSON
	}
	if r := f.Record; r != nil {
		setString(&c.Record.Dir, r.Dir)
	}
}

// LoadEnvFile loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides settings from MJAIBOT_* variables.
func (c *Config) ApplyEnv() error {
	setString(&c.Server.URL, os.Getenv(EnvServer))
	setString(&c.Server.AppPath, os.Getenv(EnvAppPath))
	setString(&c.Server.Room, os.Getenv(EnvRoom))
	setString(&c.Log.Level, os.Getenv(EnvLogLevel))
	if cmd := os.Getenv(EnvAgentCommand); cmd != "" {
		c.Bot.Command = cmd
		c.Bot.Agent = AgentProcess
	}
	if v := os.Getenv(EnvBotCount); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBotCount, err)
		}
		c.Bot.Count = n
	}
	return nil
}

// Validate checks the configuration for values the bot cannot run with.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server URL is required")
	}
	if c.Bot.Count < 1 || c.Bot.Count > 3 {
		return fmt.Errorf("bot count must be between 1 and 3, got %d", c.Bot.Count)
	}
	switch c.Bot.Agent {
	case AgentTsumogiri:
	case AgentProcess:
		if c.Bot.Command == "" {
			return fmt.Errorf("agent %q needs a command", AgentProcess)
		}
	default:
		return fmt.Errorf("invalid agent: %s", c.Bot.Agent)
	}
	if c.Bot.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	return nil
}

// Timeout is the per-reaction agent timeout; zero disables it.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Bot.TimeoutSeconds) * time.Second
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
