package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/lox/mjaibridge/internal/game"
	"github.com/lox/mjaibridge/internal/majiang"
)

var (
	// ErrLoginFailed is returned when the server greets us with an empty HELLO.
	ErrLoginFailed = errors.New("login failed")
	// ErrKicked is returned when the same account logs in elsewhere.
	ErrKicked = errors.New("kicked out by another login")
	// ErrServer wraps an ERROR event from the server.
	ErrServer = errors.New("server error")
	// ErrRefused is returned when the socket.io namespace connect is rejected.
	ErrRefused = errors.New("socket.io connect refused")
)

const (
	writeWait     = 10 * time.Second
	handshakeWait = 10 * time.Second
	sendBuffer    = 64
	gameBuffer    = 256
)

// Handler consumes GAME messages in order and returns the reply to emit.
// A nil reply with a nil error means nothing is sent for that message.
type Handler interface {
	Handle(ctx context.Context, env majiang.Envelope) (*majiang.Reply, error)
}

// Recorder stores every inbound GAME payload.
type Recorder interface {
	Record(raw json.RawMessage) error
}

// Options configures a Client.
type Options struct {
	Name     string
	Room     string
	Recorder Recorder
}

// Client plays one seat: it logs in, joins a room over socket.io and feeds
// GAME messages to its Handler one at a time.
type Client struct {
	endpoints Endpoints
	opts      Options
	handler   Handler
	logger    *log.Logger

	send  chan []byte
	games chan json.RawMessage
	// lastSeq is owned by the dispatch worker.
	lastSeq int

	mu     sync.RWMutex
	uid    string
	inRoom bool
	inGame bool
}

// NewClient creates a client for one bot.
func NewClient(endpoints Endpoints, handler Handler, logger *log.Logger, opts Options) *Client {
	return &Client{
		endpoints: endpoints,
		opts:      opts,
		handler:   handler,
		logger:    logger.WithPrefix("transport").With("bot", opts.Name),
	}
}

// Run authenticates, connects and plays until the server ends the game, the
// connection drops or ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	httpClient, err := Authenticate(ctx, c.endpoints.Auth, c.opts.Name)
	if err != nil {
		return err
	}
	c.logger.Info("Authenticated", "url", c.endpoints.Auth.String())

	conn, err := c.dial(ctx, httpClient.Jar)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	return c.serve(ctx, conn)
}

func (c *Client) dial(ctx context.Context, jar http.CookieJar) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		Jar:              jar,
		HandshakeTimeout: handshakeWait,
	}
	conn, _, err := dialer.DialContext(ctx, c.endpoints.Socket.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	c.logger.Info("Connected to server", "url", c.endpoints.Socket.String())
	return conn, nil
}

// serve runs the Engine.IO open handshake and then the pumps.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeWait))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read open packet: %w", err)
	}
	typ, payload, err := parseEngine(frame)
	if err != nil {
		return err
	}
	if typ != engineOpen {
		return fmt.Errorf("%w: expected open packet, got %q", ErrPacket, typ)
	}
	hs, err := parseHandshake(payload)
	if err != nil {
		return err
	}
	c.logger.Debug("Engine.IO open", "sid", hs.SID, "ping_interval", hs.PingInterval, "ping_timeout", hs.PingTimeout)

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, connectFrame()); err != nil {
		return fmt.Errorf("socket.io connect: %w", err)
	}

	c.send = make(chan []byte, sendBuffer)
	c.games = make(chan json.RawMessage, gameBuffer)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readPump(gctx, conn, hs) })
	g.Go(func() error { return c.writePump(gctx, conn) })
	g.Go(func() error { return c.dispatch(gctx, cancel) })
	g.Go(func() error {
		<-gctx.Done()
		_ = conn.Close()
		return nil
	})
	return g.Wait()
}

// readPump reads frames until the server ends the session. GAME payloads go
// to the dispatch worker; everything else is handled inline.
func (c *Client) readPump(ctx context.Context, conn *websocket.Conn, hs handshake) error {
	defer close(c.games)

	timeout := hs.readTimeout()
	for {
		if timeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(timeout))
		} else {
			_ = conn.SetReadDeadline(time.Time{})
		}
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return fmt.Errorf("connection lost: %w", err)
		}

		typ, payload, err := parseEngine(frame)
		if err != nil {
			c.logger.Warn("Dropping frame", "error", err)
			continue
		}
		switch typ {
		case enginePing:
			if err := c.enqueue(ctx, pongFrame()); err != nil {
				return nil
			}
		case engineClose:
			c.logger.Info("Server closed the session")
			return nil
		case engineMessage:
			pkt, err := parseSocket(payload)
			if err != nil {
				c.logger.Warn("Dropping packet", "error", err)
				continue
			}
			done, err := c.handleSocket(ctx, pkt)
			if err != nil || done {
				return err
			}
		}
	}
}

func (c *Client) handleSocket(ctx context.Context, pkt socketPacket) (bool, error) {
	switch pkt.Type {
	case socketConnect:
		c.logger.Info("Joined socket.io namespace", "room", c.opts.Room)
		if c.opts.Room != "" {
			return false, c.emit(ctx, "ROOM", c.opts.Room)
		}
		return false, c.emit(ctx, "ROOM")
	case socketConnectError:
		return true, fmt.Errorf("%w: %s", ErrRefused, pkt.Data)
	case socketDisconnect:
		c.logger.Info("Disconnected by server")
		return true, nil
	case socketEvent:
		return c.handleEvent(ctx, pkt.Name, firstArg(pkt.Args))
	}
	c.logger.Debug("Ignoring packet", "type", string(pkt.Type))
	return false, nil
}

func (c *Client) handleEvent(ctx context.Context, name string, data json.RawMessage) (bool, error) {
	switch name {
	case "HELLO":
		return c.hello(data)

	case "ROOM":
		c.mu.Lock()
		c.inRoom = true
		c.mu.Unlock()
		c.logger.Info("ROOM received", "data", string(data))

	case "START":
		c.mu.Lock()
		c.inGame = true
		c.mu.Unlock()
		c.logger.Info("START received")

	case "END":
		c.mu.Lock()
		c.inGame, c.inRoom = false, false
		c.mu.Unlock()
		c.logger.Info("END received", "data", string(data))
		return true, nil

	case "ERROR":
		return true, fmt.Errorf("%w: %s", ErrServer, data)

	case "GAME":
		select {
		case c.games <- data:
		case <-ctx.Done():
			return true, nil
		}

	default:
		c.logger.Debug("Ignoring event", "event", name)
	}
	return false, nil
}

func (c *Client) hello(data json.RawMessage) (bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || len(fields) == 0 {
		return true, ErrLoginFailed
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inRoom = false

	if _, offline := fields["offline"]; offline && c.uid != "" {
		return true, ErrKicked
	}
	if raw, ok := fields["uid"]; ok {
		var uid string
		if err := json.Unmarshal(raw, &uid); err != nil {
			uid = string(raw)
		}
		c.uid = uid
	}
	c.logger.Info("HELLO received", "uid", c.uid)
	return false, nil
}

// dispatch is the single worker that feeds GAME messages to the handler, so
// the session never sees two messages at once. When the read pump stops it
// drains what is left and cancels the pumps.
func (c *Client) dispatch(ctx context.Context, stop context.CancelFunc) error {
	for {
		select {
		case raw, ok := <-c.games:
			if !ok {
				stop()
				return nil
			}
			if err := c.handleGame(ctx, raw); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Client) handleGame(ctx context.Context, raw json.RawMessage) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil {
		if _, lobby := fields["players"]; lobby {
			c.logger.Info("GAME lobby update", "data", string(raw))
			return nil
		}
	}

	if c.opts.Recorder != nil {
		if err := c.opts.Recorder.Record(raw); err != nil {
			c.logger.Warn("Failed to record message", "error", err)
		}
	}

	env, err := majiang.Decode(raw)
	if err != nil {
		seq := c.lastSeq
		if s, ok := fields["seq"]; ok {
			_ = json.Unmarshal(s, &seq)
		}
		c.lastSeq = seq
		c.logger.Error("Undecodable GAME message", "error", err, "data", string(raw), "seq", seq)
		return c.emit(ctx, "GAME", majiang.Empty(seq))
	}
	c.lastSeq = env.Seq

	reply, err := c.handler.Handle(ctx, env)
	if err != nil {
		if errors.Is(err, game.ErrModeDetection) {
			return err
		}
		c.logger.Error("Failed to handle message", "error", err, "seq", env.Seq)
		empty := majiang.Empty(env.Seq)
		reply = &empty
	}
	if reply == nil {
		return nil
	}
	c.logger.Debug("Reply", "reply", reply)
	return c.emit(ctx, "GAME", reply)
}

func (c *Client) writePump(ctx context.Context, conn *websocket.Conn) error {
	for {
		select {
		case frame := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("write: %w", err)
			}
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.TextMessage, disconnectFrame())
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		}
	}
}

func (c *Client) emit(ctx context.Context, name string, args ...any) error {
	frame, err := encodeEvent(name, args...)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, frame)
}

func (c *Client) enqueue(ctx context.Context, frame []byte) error {
	select {
	case c.send <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UID is the user id the server assigned at login.
func (c *Client) UID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uid
}

// InRoom reports whether the server has confirmed our room.
func (c *Client) InRoom() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inRoom
}

// InGame reports whether a game is running.
func (c *Client) InGame() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inGame
}

func firstArg(args []json.RawMessage) json.RawMessage {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}
