package shared

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// SetupLogger builds the process logger. JSON output is meant for log
// shippers; the console format colours levels and keys.
func SetupLogger(level string, json bool) (*log.Logger, error) {
	return newLogger(os.Stderr, level, json)
}

func newLogger(w io.Writer, level string, json bool) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	opts := log.Options{
		Level:           lvl,
		ReportTimestamp: true,
	}
	if json {
		opts.Formatter = log.JSONFormatter
	}
	logger := log.NewWithOptions(w, opts)
	if !json {
		logger.SetStyles(consoleStyles())
	}
	return logger, nil
}

func consoleStyles() *log.Styles {
	styles := log.DefaultStyles()
	styles.Prefix = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	styles.Key = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	styles.Keys["error"] = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styles.Values["error"] = lipgloss.NewStyle().Bold(true)
	styles.Keys["bot"] = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	return styles
}
