package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/mjaibridge/internal/agent"
	"github.com/lox/mjaibridge/internal/config"
	"github.com/lox/mjaibridge/internal/game"
)

// newAgent builds the configured agent. The returned stop function releases
// the bot process, if any.
func newAgent(kind, command string, args []string, timeout time.Duration, logger *log.Logger) (game.Agent, func(), error) {
	switch kind {
	case config.AgentTsumogiri:
		return agent.NewTsumogiri(), func() {}, nil
	case config.AgentProcess:
		p, err := agent.NewProcess(command, args, nil, logger.WithPrefix("agent"))
		if err != nil {
			return nil, nil, err
		}
		stop := func() {
			if err := p.Stop(); err != nil {
				logger.Warn("Failed to stop agent process", "error", err)
			}
		}
		return agent.WithTimeout(p, timeout, quartz.NewReal()), stop, nil
	}
	return nil, nil, fmt.Errorf("unknown agent: %s", kind)
}
