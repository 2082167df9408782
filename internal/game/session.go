package game

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/mjaibridge/internal/majiang"
	"github.com/lox/mjaibridge/internal/mjai"
)

// ErrBusy is returned when Handle is re-entered while the agent is thinking.
var ErrBusy = errors.New("session is waiting on the agent")

type phase int

const (
	phaseUnauthenticated phase = iota
	phaseLobby
	phaseInRound
	phaseEnded
)

func (p phase) String() string {
	switch p {
	case phaseUnauthenticated:
		return "unauthenticated"
	case phaseLobby:
		return "lobby"
	case phaseInRound:
		return "in-round"
	case phaseEnded:
		return "ended"
	}
	return "unknown"
}

// GameResult is the final standing reported by the server.
type GameResult struct {
	Seat   int      `json:"seat"`
	Mode   string   `json:"mode"`
	Scores []int    `json:"scores"`
	Rank   []int    `json:"rank"`
	Points []string `json:"points"`
}

// GameInfo is a snapshot of the round as seen from our seat.
type GameInfo struct {
	Bakaze    string
	Jikaze    string
	Kyoku     int
	Honba     int
	Seat      int
	Hand      []string
	Drawn     string
	OwnReach  bool
	Reach     [4]bool
	FirstMove bool
}

// Reaction is the last non-empty action the agent produced.
type Reaction struct {
	Action  *mjai.Action
	Elapsed time.Duration
}

// Session follows one game from the server's point of view of one player and
// drives an Agent with the translated event stream.
type Session struct {
	agent  Agent
	logger *log.Logger
	clock  quartz.Clock

	phase  phase
	seat   int
	mode   Mode
	scores []int
	round  *Round

	// kanDora is the table rule revealing a dora after each kan.
	kanDora bool

	pending []mjai.Event

	last            Reaction
	reactionPending bool
	lastSeq         int

	calculating    bool
	awaitingResync bool
	result         *GameResult
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock used to time agent reactions.
func WithClock(clock quartz.Clock) Option {
	return func(s *Session) { s.clock = clock }
}

// NewSession creates a session driving agent.
func NewSession(agent Agent, logger *log.Logger, opts ...Option) *Session {
	s := &Session{
		agent:   agent,
		logger:  logger,
		clock:   quartz.NewReal(),
		mode:    Mode4P,
		kanDora: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle processes one inbound message and returns the reply to send. A nil
// reply with a nil error means the message is answered later: a rinshan draw
// held for its dora reveal is answered by the reply to that reveal.
//
// Errors wrapping ErrIntegrity, ErrDecode or ErrModeDetection are fatal to the
// round; after an integrity error the session acknowledges action messages
// without translating them until the next deal.
func (s *Session) Handle(ctx context.Context, env majiang.Envelope) (*majiang.Reply, error) {
	if s.calculating {
		return nil, ErrBusy
	}
	s.lastSeq = env.Seq
	empty := majiang.Empty(env.Seq)

	switch m := env.Message.(type) {
	case majiang.Kaiju:
		return &empty, s.startGame(ctx, m)

	case majiang.Jieju:
		s.endGame(ctx, m)
		return &empty, nil

	case majiang.Unknown:
		s.logger.Warn("Ignoring unknown message", "tag", m.Name, "seq", env.Seq)
		return &empty, nil
	}

	if s.phase == phaseEnded || s.phase == phaseUnauthenticated {
		s.logger.Warn("Action message outside a game", "tag", env.Message.Tag(), "phase", s.phase)
		return &empty, nil
	}

	s.reactionPending = false

	if q, ok := env.Message.(majiang.Qipai); ok {
		return s.startRound(ctx, q)
	}

	if s.awaitingResync || s.round == nil {
		s.logger.Debug("Acknowledging without translation", "tag", env.Message.Tag(), "seq", env.Seq)
		return &empty, nil
	}

	// a second winner on the same discard only settles its points
	if h, ok := env.Message.(majiang.Hule); ok && s.round.Ended() {
		s.applyDeltas(h.Fenpei)
		s.logger.Info("Additional win settled", "scores", s.scores)
		return &empty, nil
	}

	evs, err := s.round.Apply(env.Message)
	if err != nil {
		if errors.Is(err, ErrIntegrity) {
			s.awaitingResync = true
		}
		return nil, fmt.Errorf("%s: %w", env.Message.Tag(), err)
	}

	switch m := env.Message.(type) {
	case majiang.Hule:
		s.applyDeltas(m.Fenpei)
		s.endRound(ctx, evs)
		return &empty, nil
	case majiang.Pingju:
		s.applyDeltas(m.Fenpei)
		s.endRound(ctx, evs)
		return &empty, nil
	}

	if len(evs) == 0 && s.round.Holding() {
		s.logger.Debug("Holding rinshan draw for dora reveal", "seq", env.Seq)
		return nil, nil
	}

	s.pending = append(s.pending, evs...)
	action := s.react(ctx)
	reply, err := Encode(action, s.lastSeq)
	if err != nil {
		s.logger.Warn("Unexpected reaction, answering with no action", "error", err, "action", action)
	}
	return &reply, nil
}

func (s *Session) startGame(ctx context.Context, k majiang.Kaiju) error {
	if len(k.Player) == 0 {
		s.logger.Info("Empty player list, game is over")
		s.phase = phaseEnded
		return nil
	}

	var mode Mode
	switch len(k.Player) {
	case 3:
		mode = Mode3P
	case 4:
		mode = Mode4P
	default:
		s.phase = phaseEnded
		return fmt.Errorf("%w: %d players", ErrModeDetection, len(k.Player))
	}

	*s = Session{
		agent:   s.agent,
		logger:  s.logger,
		clock:   s.clock,
		phase:   phaseLobby,
		seat:    (k.ID - k.Qijia + 4) % 4,
		mode:    mode,
		kanDora: k.KanDora(),
		scores:  make([]int, 4),
		lastSeq: s.lastSeq,
	}
	s.logger.Info("Game started", "seat", s.seat, "mode", mode, "players", k.Player, "title", k.Title)

	if err := s.agent.Init(s.seat, mode); err != nil {
		s.logger.Error("Agent init failed", "error", err)
	}
	s.pending = append(s.pending, mjai.StartGame{ID: s.seat})
	s.react(ctx)
	return nil
}

func (s *Session) startRound(ctx context.Context, q majiang.Qipai) (*majiang.Reply, error) {
	s.setScores(q.Defen)
	r, ev, err := StartRound(s.seat, q, s.scores)
	if err != nil {
		s.awaitingResync = true
		return nil, fmt.Errorf("qipai: %w", err)
	}
	r.noKanDora = !s.kanDora
	s.round = r
	s.pending = s.pending[:0]
	s.awaitingResync = false
	s.phase = phaseInRound
	s.logger.Info("Round started", "bakaze", r.Bakaze, "kyoku", r.Kyoku, "honba", r.Honba, "jikaze", r.Jikaze)

	s.pending = append(s.pending, ev)
	action := s.react(ctx)
	reply, err := Encode(action, s.lastSeq)
	if err != nil {
		s.logger.Warn("Unexpected reaction, answering with no action", "error", err, "action", action)
	}
	return &reply, nil
}

// endRound shows the agent the end of the round and drops its answer.
func (s *Session) endRound(ctx context.Context, evs []mjai.Event) {
	s.pending = append(s.pending[:0], evs...)
	s.react(ctx)
	s.reactionPending = false
	s.phase = phaseLobby
	s.logger.Info("Round ended", "scores", s.scores)
}

func (s *Session) endGame(ctx context.Context, j majiang.Jieju) {
	if s.phase == phaseUnauthenticated {
		s.phase = phaseEnded
		return
	}
	if len(j.Defen) > 0 {
		s.setScores(j.Defen)
	}
	points := make([]string, len(j.Point))
	for i, p := range j.Point {
		points[i] = string(p)
	}
	s.result = &GameResult{
		Seat:   s.seat,
		Mode:   s.mode.String(),
		Scores: slices.Clone(s.scores),
		Rank:   slices.Clone(j.Rank),
		Points: points,
	}
	s.pending = append(s.pending[:0], mjai.EndGame{})
	s.react(ctx)
	s.reactionPending = false
	s.phase = phaseEnded
	s.logger.Info("Game ended", "scores", s.result.Scores, "rank", s.result.Rank, "points", s.result.Points)
}

// react hands the pending events to the agent and empties the queue. Agent
// errors and panics are logged and count as no action.
func (s *Session) react(ctx context.Context) *mjai.Action {
	batch := s.pending
	s.pending = nil
	if len(batch) == 0 {
		return nil
	}

	s.calculating = true
	defer func() { s.calculating = false }()

	for _, ev := range batch {
		s.logger.Debug("Bot in", "event", ev.EventType())
	}
	start := s.clock.Now()
	action, err := s.invoke(ctx, batch)
	elapsed := s.clock.Since(start)
	if err != nil {
		s.logger.Error("Agent failed to react", "error", err, "events", len(batch))
		return nil
	}
	if action.IsNone() {
		return action
	}

	s.logger.Debug("Bot out", "action", action, "elapsed", elapsed)
	s.last = Reaction{Action: action, Elapsed: elapsed}
	s.reactionPending = true
	return action
}

func (s *Session) invoke(ctx context.Context, batch []mjai.Event) (action *mjai.Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			action, err = nil, fmt.Errorf("agent panic: %v", r)
		}
	}()
	if len(batch) == 1 {
		return s.agent.React(ctx, batch[0])
	}
	return s.agent.ReactBatch(ctx, batch)
}

// setScores copies defen into the scoreboard, padding three player games
// with a zero for the empty seat.
func (s *Session) setScores(defen []int) {
	scores := make([]int, 4)
	copy(scores, defen)
	s.scores = scores
}

func (s *Session) applyDeltas(fenpei []int) {
	for i, d := range fenpei {
		if i < len(s.scores) {
			s.scores[i] += d
		}
	}
}

// Seat is our absolute seat for the current game.
func (s *Session) Seat() int { return s.seat }

// Mode is the table size detected at game start.
func (s *Session) Mode() Mode { return s.mode }

// Scores returns the scoreboard, always four entries.
func (s *Session) Scores() []int { return slices.Clone(s.scores) }

// LastSeq is the most recent sequence token seen.
func (s *Session) LastSeq() int { return s.lastSeq }

// Ended reports whether the game is over.
func (s *Session) Ended() bool { return s.phase == phaseEnded }

// RoundStarted reports whether a round is being played.
func (s *Session) RoundStarted() bool { return s.phase == phaseInRound }

// AwaitingResync reports whether an integrity error has suspended translation.
func (s *Session) AwaitingResync() bool { return s.awaitingResync }

// Round returns the live round, nil before the first deal.
func (s *Session) Round() *Round { return s.round }

// Result returns the final standing once the game has ended.
func (s *Session) Result() (GameResult, bool) {
	if s.result == nil {
		return GameResult{}, false
	}
	return *s.result, true
}

// PendingReaction returns the last reaction if no later message has shown it
// was consumed.
func (s *Session) PendingReaction() (Reaction, bool) {
	if s.awaitingResync || !s.reactionPending {
		return Reaction{}, false
	}
	return s.last, true
}

// GameInfo returns a snapshot of the live round, or nil before the first deal.
func (s *Session) GameInfo() *GameInfo {
	r := s.round
	if r == nil {
		return nil
	}
	drawn, _ := r.Drawn()
	return &GameInfo{
		Bakaze:    r.Bakaze,
		Jikaze:    r.Jikaze,
		Kyoku:     r.Kyoku,
		Honba:     r.Honba,
		Seat:      s.seat,
		Hand:      r.Tehai(),
		Drawn:     drawn,
		OwnReach:  r.OwnReach(),
		Reach:     r.reach,
		FirstMove: r.FirstMove(),
	}
}
