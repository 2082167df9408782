// Package majiang decodes and encodes the game messages of the majiang
// (kobalab) server. Every inbound message is a single-key object whose key
// names the message kind, plus a "seq" token that replies must echo.
package majiang

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned for messages that are not a single tagged object.
var ErrMalformed = errors.New("malformed majiang message")

// Tag names an inbound message kind.
type Tag string

const (
	TagKaiju    Tag = "kaiju"
	TagQipai    Tag = "qipai"
	TagZimo     Tag = "zimo"
	TagGangzimo Tag = "gangzimo"
	TagDapai    Tag = "dapai"
	TagFulou    Tag = "fulou"
	TagGang     Tag = "gang"
	TagKaigang  Tag = "kaigang"
	TagHule     Tag = "hule"
	TagPingju   Tag = "pingju"
	TagJieju    Tag = "jieju"
)

// Message is the sealed set of inbound payloads.
type Message interface {
	Tag() Tag
	isMessage()
}

// Envelope is a decoded inbound message with its sequence token.
type Envelope struct {
	Seq     int
	Message Message
}

// Kaiju starts the game. ID is our player id, Qijia the id of the first dealer.
type Kaiju struct {
	ID     int             `json:"id"`
	Qijia  int             `json:"qijia"`
	Player []string        `json:"player"`
	Title  string          `json:"title,omitempty"`
	Rule   json.RawMessage `json:"rule,omitempty"`
}

// ruleKanDora is the table rule that reveals a new dora indicator after each kan.
const ruleKanDora = "カンドラあり"

// KanDora reports whether a kan is followed by a dora reveal. Tables that
// send no rule use the server default, which reveals.
func (k Kaiju) KanDora() bool {
	if len(k.Rule) == 0 {
		return true
	}
	var rule map[string]json.RawMessage
	if err := json.Unmarshal(k.Rule, &rule); err != nil {
		return true
	}
	v, ok := rule[ruleKanDora]
	if !ok {
		return true
	}
	var on bool
	if err := json.Unmarshal(v, &on); err != nil {
		return true
	}
	return on
}

// Qipai deals a round. Shoupai is indexed relative to the dealer; only our
// own entry is non-empty.
type Qipai struct {
	Zhuangfeng int      `json:"zhuangfeng"`
	Jushu      int      `json:"jushu"`
	Changbang  int      `json:"changbang"`
	Lizhibang  int      `json:"lizhibang"`
	Defen      []int    `json:"defen"`
	Baopai     string   `json:"baopai"`
	Shoupai    []string `json:"shoupai"`
}

// Zimo is a draw. P is empty for other players. Rinshan marks a replacement
// draw after a kan (the "gangzimo" message).
type Zimo struct {
	L       int    `json:"l"`
	P       string `json:"p"`
	Rinshan bool   `json:"-"`
}

// Dapai is a discard. P is a tile optionally followed by "_" (tsumogiri) and
// "*" (reach declaration).
type Dapai struct {
	L int    `json:"l"`
	P string `json:"p"`
}

// Fulou is a call on a discard (chi, pon or open kan).
type Fulou struct {
	L int    `json:"l"`
	M string `json:"m"`
}

// Gang is a concealed or added kan.
type Gang struct {
	L int    `json:"l"`
	M string `json:"m"`
}

// Kaigang reveals a new dora indicator.
type Kaigang struct {
	Baopai string `json:"baopai"`
}

// UnmarshalJSON accepts the legacy "doras" spelling.
func (k *Kaigang) UnmarshalJSON(data []byte) error {
	var raw struct {
		Baopai string `json:"baopai"`
		Doras  string `json:"doras"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	k.Baopai = raw.Baopai
	if k.Baopai == "" {
		k.Baopai = raw.Doras
	}
	return nil
}

// Hule ends a round with a win.
type Hule struct {
	L         int             `json:"l"`
	Shoupai   string          `json:"shoupai"`
	Baojia    *int            `json:"baojia"`
	Fubaopai  []string        `json:"fubaopai,omitempty"`
	Fu        int             `json:"fu"`
	Fanshu    int             `json:"fanshu"`
	Damanguan int             `json:"damanguan,omitempty"`
	Defen     int             `json:"defen"`
	Hupai     json.RawMessage `json:"hupai,omitempty"`
	Fenpei    []int           `json:"fenpei"`
}

// Pingju ends a round without a winner.
type Pingju struct {
	Name    string   `json:"name"`
	Shoupai []string `json:"shoupai"`
	Fenpei  []int    `json:"fenpei"`
}

// Jieju ends the game.
type Jieju struct {
	Defen []int   `json:"defen"`
	Rank  []int   `json:"rank"`
	Point []Point `json:"point"`
}

// Point is a final point total. The server sends it either as a number or as a
// preformatted string such as "+35.0".
type Point string

func (p *Point) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = Point(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = Point(n.String())
	return nil
}

// Unknown is any tag this package does not model.
type Unknown struct {
	Name    string
	Payload json.RawMessage
}

func (Kaiju) Tag() Tag   { return TagKaiju }
func (Qipai) Tag() Tag   { return TagQipai }
func (Dapai) Tag() Tag   { return TagDapai }
func (Fulou) Tag() Tag   { return TagFulou }
func (Gang) Tag() Tag    { return TagGang }
func (Kaigang) Tag() Tag { return TagKaigang }
func (Hule) Tag() Tag    { return TagHule }
func (Pingju) Tag() Tag  { return TagPingju }
func (Jieju) Tag() Tag   { return TagJieju }
func (u Unknown) Tag() Tag {
	return Tag(u.Name)
}
func (z Zimo) Tag() Tag {
	if z.Rinshan {
		return TagGangzimo
	}
	return TagZimo
}

func (Kaiju) isMessage()   {}
func (Qipai) isMessage()   {}
func (Zimo) isMessage()    {}
func (Dapai) isMessage()   {}
func (Fulou) isMessage()   {}
func (Gang) isMessage()    {}
func (Kaigang) isMessage() {}
func (Hule) isMessage()    {}
func (Pingju) isMessage()  {}
func (Jieju) isMessage()   {}
func (Unknown) isMessage() {}

// Decode parses one inbound message.
func Decode(data []byte) (Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return Envelope{}, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	var env Envelope
	if raw, ok := fields["seq"]; ok {
		if err := json.Unmarshal(raw, &env.Seq); err != nil {
			return Envelope{}, fmt.Errorf("%w: seq: %v", ErrMalformed, err)
		}
		delete(fields, "seq")
	}
	if len(fields) != 1 {
		return Envelope{}, fmt.Errorf("%w: expected one tag, got %d", ErrMalformed, len(fields))
	}

	for name, payload := range fields {
		msg, err := decodePayload(Tag(name), payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
		}
		env.Message = msg
	}
	return env, nil
}

func decodePayload(tag Tag, payload json.RawMessage) (Message, error) {
	switch tag {
	case TagKaiju:
		return decodeInto[Kaiju](payload)
	case TagQipai:
		return decodeInto[Qipai](payload)
	case TagZimo:
		return decodeInto[Zimo](payload)
	case TagGangzimo:
		z, err := decodeInto[Zimo](payload)
		z.Rinshan = true
		return z, err
	case TagDapai:
		return decodeInto[Dapai](payload)
	case TagFulou:
		return decodeInto[Fulou](payload)
	case TagGang:
		return decodeInto[Gang](payload)
	case TagKaigang:
		return decodeInto[Kaigang](payload)
	case TagHule:
		return decodeInto[Hule](payload)
	case TagPingju:
		return decodeInto[Pingju](payload)
	case TagJieju:
		return decodeInto[Jieju](payload)
	default:
		return Unknown{Name: string(tag), Payload: payload}, nil
	}
}

func decodeInto[T Message](payload json.RawMessage) (T, error) {
	var v T
	if len(bytes.TrimSpace(payload)) == 0 {
		return v, nil
	}
	err := json.Unmarshal(payload, &v)
	return v, err
}
