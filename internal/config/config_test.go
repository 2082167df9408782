package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.hcl"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMergesFile(t *testing.T) {
	path := writeFile(t, "mjaibot.hcl", `
server {
  url  = "http://localhost:4615/"
  room = "A123"
}

bot {
  count           = 3
  agent           = "process"
  command         = "python"
  args            = ["mortal.py", "--model", "model.pth"]
  timeout_seconds = 5
}

log {
  level = "debug"
  json  = true
}

record {
  dir = "games"
}
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:4615/", cfg.Server.URL)
	assert.Equal(t, "majiang/", cfg.Server.AppPath)
	assert.Equal(t, "A123", cfg.Server.Room)
	assert.Equal(t, 3, cfg.Bot.Count)
	assert.Equal(t, "Mortal", cfg.Bot.NamePrefix)
	assert.Equal(t, AgentProcess, cfg.Bot.Agent)
	assert.Equal(t, []string{"mortal.py", "--model", "model.pth"}, cfg.Bot.Args)
	assert.Equal(t, 5*time.Second, cfg.Timeout())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, "games", cfg.Record.Dir)
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsBadHCL(t *testing.T) {
	_, err := Load(writeFile(t, "bad.hcl", `server {`))
	assert.ErrorContains(t, err, "failed to parse HCL file")

	_, err = Load(writeFile(t, "unknown.hcl", `table "main" {}`))
	assert.ErrorContains(t, err, "failed to decode HCL")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvServer, "http://example.test/")
	t.Setenv(EnvRoom, "R9")
	t.Setenv(EnvAgentCommand, "./mortal")
	t.Setenv(EnvBotCount, "2")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "http://example.test/", cfg.Server.URL)
	assert.Equal(t, "R9", cfg.Server.Room)
	assert.Equal(t, AgentProcess, cfg.Bot.Agent)
	assert.Equal(t, "./mortal", cfg.Bot.Command)
	assert.Equal(t, 2, cfg.Bot.Count)

	t.Setenv(EnvBotCount, "many")
	assert.Error(t, cfg.ApplyEnv())
}

func TestLoadEnvFile(t *testing.T) {
	path := writeFile(t, ".env", "MJAIBOT_ROOM=from-file\nMJAIBOT_SERVER=http://dotenv.test/\n")
	t.Setenv(EnvServer, "http://already.set/")
	t.Setenv(EnvRoom, "")
	require.NoError(t, os.Unsetenv(EnvRoom))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv(EnvRoom))
	assert.Equal(t, "http://already.set/", os.Getenv(EnvServer))

	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	assert.NoError(t, LoadEnvFile(""))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"no server", func(c *Config) { c.Server.URL = "" }, "server URL is required"},
		{"too many bots", func(c *Config) { c.Bot.Count = 4 }, "bot count"},
		{"no bots", func(c *Config) { c.Bot.Count = 0 }, "bot count"},
		{"process without command", func(c *Config) { c.Bot.Agent = AgentProcess }, "needs a command"},
		{"unknown agent", func(c *Config) { c.Bot.Agent = "mortal" }, "invalid agent"},
		{"negative timeout", func(c *Config) { c.Bot.TimeoutSeconds = -1 }, "timeout"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "invalid log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
