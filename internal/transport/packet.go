package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrPacket is returned for frames that are not valid Engine.IO/Socket.IO packets.
var ErrPacket = errors.New("malformed socket.io packet")

// Engine.IO v4 packet types.
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
	engineUpgrade = '5'
	engineNoop    = '6'
)

// Socket.IO v5 packet types, carried inside an Engine.IO message.
const (
	socketConnect      = '0'
	socketDisconnect   = '1'
	socketEvent        = '2'
	socketAck          = '3'
	socketConnectError = '4'
)

// handshake is the payload of the Engine.IO open packet.
type handshake struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
	MaxPayload   int    `json:"maxPayload"`
}

// readTimeout is how long the server may stay silent before the connection
// is considered dead.
func (h handshake) readTimeout() time.Duration {
	if h.PingInterval <= 0 {
		return 0
	}
	return time.Duration(h.PingInterval+h.PingTimeout) * time.Millisecond
}

// socketPacket is a decoded Socket.IO packet. For events Name is the event
// name and Args its arguments.
type socketPacket struct {
	Type      byte
	Namespace string
	AckID     int
	Name      string
	Args      []json.RawMessage
	Data      json.RawMessage
}

func parseEngine(frame []byte) (byte, []byte, error) {
	if len(frame) == 0 {
		return 0, nil, fmt.Errorf("%w: empty frame", ErrPacket)
	}
	switch frame[0] {
	case engineOpen, engineClose, enginePing, enginePong, engineMessage, engineUpgrade, engineNoop:
		return frame[0], frame[1:], nil
	}
	return 0, nil, fmt.Errorf("%w: engine type %q", ErrPacket, frame[0])
}

func parseHandshake(payload []byte) (handshake, error) {
	var h handshake
	if err := json.Unmarshal(payload, &h); err != nil {
		return h, fmt.Errorf("%w: open payload: %v", ErrPacket, err)
	}
	return h, nil
}

func parseSocket(payload []byte) (socketPacket, error) {
	var p socketPacket
	if len(payload) == 0 {
		return p, fmt.Errorf("%w: empty message", ErrPacket)
	}
	p.Type = payload[0]
	if p.Type < socketConnect || p.Type > '6' {
		return p, fmt.Errorf("%w: socket type %q", ErrPacket, p.Type)
	}
	rest := payload[1:]

	if p.Type == '5' || p.Type == '6' {
		// binary attachments count
		i := bytes.IndexByte(rest, '-')
		if i < 0 {
			return p, fmt.Errorf("%w: binary packet without attachment count", ErrPacket)
		}
		rest = rest[i+1:]
	}

	if len(rest) > 0 && rest[0] == '/' {
		i := bytes.IndexByte(rest, ',')
		if i < 0 {
			p.Namespace, rest = string(rest), nil
		} else {
			p.Namespace, rest = string(rest[:i]), rest[i+1:]
		}
	}

	p.AckID = -1
	n := 0
	for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
		n++
	}
	if n > 0 {
		id, err := strconv.Atoi(string(rest[:n]))
		if err != nil {
			return p, fmt.Errorf("%w: ack id: %v", ErrPacket, err)
		}
		p.AckID, rest = id, rest[n:]
	}

	if len(rest) > 0 {
		p.Data = json.RawMessage(rest)
	}
	if p.Type != socketEvent {
		return p, nil
	}

	var args []json.RawMessage
	if err := json.Unmarshal(rest, &args); err != nil || len(args) == 0 {
		return p, fmt.Errorf("%w: event payload %q", ErrPacket, rest)
	}
	if err := json.Unmarshal(args[0], &p.Name); err != nil {
		return p, fmt.Errorf("%w: event name: %v", ErrPacket, err)
	}
	p.Args = args[1:]
	return p, nil
}

// encodeEvent builds the frame for emitting name with args on the default
// namespace.
func encodeEvent(name string, args ...any) ([]byte, error) {
	list := make([]any, 0, len(args)+1)
	list = append(list, name)
	list = append(list, args...)
	b, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", name, err)
	}
	return append([]byte{engineMessage, socketEvent}, b...), nil
}

func connectFrame() []byte    { return []byte{engineMessage, socketConnect} }
func disconnectFrame() []byte { return []byte{engineMessage, socketDisconnect} }
func pongFrame() []byte       { return []byte{enginePong} }
