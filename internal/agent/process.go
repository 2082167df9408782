package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/lox/mjaibridge/internal/game"
	"github.com/lox/mjaibridge/internal/mjai"
)

// ErrExited is returned when the agent process goes away mid-game.
var ErrExited = errors.New("agent process exited")

const (
	stopGrace = time.Second
	lineQueue = 16
)

// Process runs an mjai bot as a child process speaking JSON lines on
// stdin/stdout. The process is (re)started by Init at the beginning of every
// game and receives MJAI_SEAT and MJAI_MODE in its environment.
type Process struct {
	ID      string
	Command string
	Args    []string
	Env     map[string]string

	logger    *log.Logger
	clock     quartz.Clock
	validator *Validator

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stream *mjai.Stream
	lines  chan []byte
	done   chan struct{}
	seat   int
	stale  int
}

// NewProcess creates a process agent. Nothing is started until Init.
func NewProcess(command string, args []string, env map[string]string, logger *log.Logger) (*Process, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()[:8]
	return &Process{
		ID:        id,
		Command:   command,
		Args:      args,
		Env:       env,
		logger:    logger.With("process_id", id),
		clock:     quartz.NewReal(),
		validator: validator,
	}, nil
}

// Init starts a fresh bot process for a new game, stopping any previous one.
func (p *Process) Init(seat int, mode game.Mode) error {
	if err := p.Stop(); err != nil {
		p.logger.Warn("Failed to stop previous process", "error", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cmd := exec.Command(p.Command, p.Args...)
	cmd.Env = os.Environ()
	for k, v := range p.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = append(cmd.Env, "MJAI_SEAT="+strconv.Itoa(seat), "MJAI_MODE="+mode.String())
	cmd.Stderr = &logWriter{logger: p.logger}
	cmd.WaitDelay = stopGrace

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}

	p.cmd = cmd
	p.stdin = stdin
	p.stream = mjai.NewStream(stdout, stdin)
	p.lines = make(chan []byte, lineQueue)
	p.done = make(chan struct{})
	p.seat = seat
	p.stale = 0

	p.logger.Info("Process started", "command", p.Command, "args", p.Args, "seat", seat, "mode", mode)

	go p.readLines(p.stream, p.lines)
	go p.monitor(cmd, p.done)
	return nil
}

func (p *Process) readLines(stream *mjai.Stream, lines chan<- []byte) {
	defer close(lines)
	for {
		line, err := stream.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.logger.Debug("Stopped reading agent output", "error", err)
			}
			return
		}
		lines <- line
	}
}

func (p *Process) monitor(cmd *exec.Cmd, done chan struct{}) {
	defer close(done)
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && !exitErr.Exited() {
			p.logger.Info("Process terminated by signal", "status", exitErr.String())
			return
		}
		p.logger.Warn("Process exited with error", "error", err)
		return
	}
	p.logger.Info("Process exited")
}

// React sends a single event.
func (p *Process) React(ctx context.Context, ev mjai.Event) (*mjai.Action, error) {
	return p.ReactBatch(ctx, []mjai.Event{ev})
}

// ReactBatch writes the batch as one line and reads one action line back. A
// bare reach is completed by echoing the reach to the bot and reading the
// discard that follows it.
func (p *Process) ReactBatch(ctx context.Context, evs []mjai.Event) (*mjai.Action, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil, fmt.Errorf("%w: not started", ErrExited)
	}

	action, err := p.exchange(ctx, evs)
	if err != nil {
		return nil, err
	}
	if action == nil || action.Type != mjai.TypeReach || action.ReachDahai != nil {
		return action, nil
	}

	dahai, err := p.exchange(ctx, []mjai.Event{mjai.Reach{Actor: action.Actor}})
	if err != nil {
		return nil, fmt.Errorf("completing reach: %w", err)
	}
	if dahai == nil || dahai.Type != mjai.TypeDahai {
		return nil, fmt.Errorf("%w: reach followed by %s", ErrInvalidOutput, dahai)
	}
	action.ReachDahai = dahai
	return action, nil
}

func (p *Process) exchange(ctx context.Context, evs []mjai.Event) (*mjai.Action, error) {
	if err := p.stream.Send(evs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExited, err)
	}
	for {
		select {
		case <-ctx.Done():
			// the answer to this batch will arrive later and must be skipped
			p.stale++
			return nil, ctx.Err()
		case line, ok := <-p.lines:
			if !ok {
				return nil, ErrExited
			}
			if p.stale > 0 {
				p.stale--
				p.logger.Debug("Skipping stale agent output", "line", string(line))
				continue
			}
			if err := p.validator.ValidateAction(line); err != nil {
				return nil, err
			}
			return mjai.DecodeAction(line)
		}
	}
}

// Stop closes stdin, interrupts the process and kills it if it has not exited
// within a second.
func (p *Process) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	defer func() {
		p.cmd = nil
		p.stream = nil
	}()

	select {
	case <-p.done:
		return nil
	default:
	}

	_ = p.stdin.Close()
	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		p.logger.Debug("Interrupt failed", "error", err)
	}

	timer := p.clock.NewTimer(stopGrace, "agent", "stop")
	defer timer.Stop()
	select {
	case <-p.done:
		return nil
	case <-timer.C:
	}

	p.logger.Debug("Force killing process")
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill process: %w", err)
	}
	<-p.done
	return nil
}

// Alive reports whether the bot process is running.
func (p *Process) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil || p.cmd == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// logWriter forwards the bot's stderr to the logger line by line.
type logWriter struct {
	logger *log.Logger
	buf    []byte
}

func (w *logWriter) Write(b []byte) (int, error) {
	w.buf = append(w.buf, b...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		if line := bytes.TrimSpace(w.buf[:i]); len(line) > 0 {
			w.logger.Debug("Agent stderr", "line", string(line))
		}
		w.buf = w.buf[i+1:]
	}
	return len(b), nil
}
