package majiang

import "encoding/json"

// ReplyKind names the action carried by an outbound reply.
type ReplyKind string

const (
	ReplyDapai  ReplyKind = "dapai"
	ReplyFulou  ReplyKind = "fulou"
	ReplyGang   ReplyKind = "gang"
	ReplyHule   ReplyKind = "hule"
	ReplyDaopai ReplyKind = "daopai"
)

// Reply is the answer to one inbound message. A reply without a Kind is the
// empty action, which still carries the sequence token.
type Reply struct {
	Kind  ReplyKind
	Value string
	Seq   int
}

// Empty returns the empty-action reply for seq.
func Empty(seq int) Reply {
	return Reply{Seq: seq}
}

// IsEmpty reports whether the reply carries no action.
func (r Reply) IsEmpty() bool {
	return r.Kind == ""
}

func (r Reply) MarshalJSON() ([]byte, error) {
	out := map[string]any{"seq": r.Seq}
	if r.Kind != "" {
		out[string(r.Kind)] = r.Value
	}
	return json.Marshal(out)
}

func (r *Reply) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*r = Reply{}
	for k, v := range fields {
		if k == "seq" {
			if err := json.Unmarshal(v, &r.Seq); err != nil {
				return err
			}
			continue
		}
		r.Kind = ReplyKind(k)
		if err := json.Unmarshal(v, &r.Value); err != nil {
			return err
		}
	}
	return nil
}
