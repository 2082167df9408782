// Package mjai models the mjai event protocol spoken by decision agents.
//
// Events form a closed set: every event type in this package implements the
// sealed Event interface, and consumers switch over the concrete types.
package mjai

import "encoding/json"

// Type discriminates events and actions on the wire.
type Type string

const (
	TypeNone          Type = "none"
	TypeStartGame     Type = "start_game"
	TypeStartKyoku    Type = "start_kyoku"
	TypeDora          Type = "dora"
	TypeTsumo         Type = "tsumo"
	TypeDahai         Type = "dahai"
	TypePon           Type = "pon"
	TypeChi           Type = "chi"
	TypeKakan         Type = "kakan"
	TypeDaiminkan     Type = "daiminkan"
	TypeAnkan         Type = "ankan"
	TypeReach         Type = "reach"
	TypeReachAccepted Type = "reach_accepted"
	TypeHora          Type = "hora"
	TypeRyukyoku      Type = "ryukyoku"
	TypeNukidora      Type = "nukidora"
	TypeEndKyoku      Type = "end_kyoku"
	TypeEndGame       Type = "end_game"
)

// Winds in seat order, East first.
var Winds = [4]string{"E", "S", "W", "N"}

// Event is one message delivered to an agent.
type Event interface {
	EventType() Type
	isEvent()
}

// StartGame announces the agent's seat for the whole game.
type StartGame struct {
	ID int `json:"id"`
}

// StartKyoku opens a round. Tehais holds 13 tiles per seat, "?" for hidden hands.
type StartKyoku struct {
	Bakaze     string     `json:"bakaze"`
	Jikaze     string     `json:"jikaze"`
	DoraMarker string     `json:"dora_marker"`
	Honba      int        `json:"honba"`
	Kyoku      int        `json:"kyoku"`
	Kyotaku    int        `json:"kyotaku"`
	Oya        int        `json:"oya"`
	Scores     []int      `json:"scores"`
	Tehais     [][]string `json:"tehais"`
}

type Tsumo struct {
	Actor int    `json:"actor"`
	Pai   string `json:"pai"`
}

type Dahai struct {
	Actor     int    `json:"actor"`
	Pai       string `json:"pai"`
	Tsumogiri bool   `json:"tsumogiri"`
}

// Meld is the shared payload of calls on another player's discard.
type Meld struct {
	Actor    int      `json:"actor"`
	Target   int      `json:"target"`
	Pai      string   `json:"pai"`
	Consumed []string `json:"consumed"`
}

type (
	Chi       Meld
	Pon       Meld
	Daiminkan Meld
)

type Ankan struct {
	Actor    int      `json:"actor"`
	Consumed []string `json:"consumed"`
}

type Kakan struct {
	Actor    int      `json:"actor"`
	Pai      string   `json:"pai"`
	Consumed []string `json:"consumed"`
}

type Dora struct {
	DoraMarker string `json:"dora_marker"`
}

type Reach struct {
	Actor int `json:"actor"`
}

type ReachAccepted struct {
	Actor int `json:"actor"`
}

type EndKyoku struct{}

type EndGame struct{}

func (StartGame) EventType() Type     { return TypeStartGame }
func (StartKyoku) EventType() Type    { return TypeStartKyoku }
func (Tsumo) EventType() Type         { return TypeTsumo }
func (Dahai) EventType() Type         { return TypeDahai }
func (Chi) EventType() Type           { return TypeChi }
func (Pon) EventType() Type           { return TypePon }
func (Daiminkan) EventType() Type     { return TypeDaiminkan }
func (Ankan) EventType() Type         { return TypeAnkan }
func (Kakan) EventType() Type         { return TypeKakan }
func (Dora) EventType() Type          { return TypeDora }
func (Reach) EventType() Type         { return TypeReach }
func (ReachAccepted) EventType() Type { return TypeReachAccepted }
func (EndKyoku) EventType() Type      { return TypeEndKyoku }
func (EndGame) EventType() Type       { return TypeEndGame }

func (StartGame) isEvent()     {}
func (StartKyoku) isEvent()    {}
func (Tsumo) isEvent()         {}
func (Dahai) isEvent()         {}
func (Chi) isEvent()           {}
func (Pon) isEvent()           {}
func (Daiminkan) isEvent()     {}
func (Ankan) isEvent()         {}
func (Kakan) isEvent()         {}
func (Dora) isEvent()          {}
func (Reach) isEvent()         {}
func (ReachAccepted) isEvent() {}
func (EndKyoku) isEvent()      {}
func (EndGame) isEvent()       {}

func (e StartGame) MarshalJSON() ([]byte, error) {
	type plain StartGame
	return json.Marshal(struct {
		Type Type `json:"type"`
		plain
	}{TypeStartGame, plain(e)})
}

func (e StartKyoku) MarshalJSON() ([]byte, error) {
	type plain StartKyoku
	return json.Marshal(struct {
		Type Type `json:"type"`
		plain
	}{TypeStartKyoku, plain(e)})
}

func (e Tsumo) MarshalJSON() ([]byte, error) {
	type plain Tsumo
	return json.Marshal(struct {
		Type Type `json:"type"`
		plain
	}{TypeTsumo, plain(e)})
}

func (e Dahai) MarshalJSON() ([]byte, error) {
	type plain Dahai
	return json.Marshal(struct {
		Type Type `json:"type"`
		plain
	}{TypeDahai, plain(e)})
}

func (e Chi) MarshalJSON() ([]byte, error)       { return marshalMeld(TypeChi, Meld(e)) }
func (e Pon) MarshalJSON() ([]byte, error)       { return marshalMeld(TypePon, Meld(e)) }
func (e Daiminkan) MarshalJSON() ([]byte, error) { return marshalMeld(TypeDaiminkan, Meld(e)) }

func marshalMeld(t Type, m Meld) ([]byte, error) {
	return json.Marshal(struct {
		Type Type `json:"type"`
		Meld
	}{t, m})
}

func (e Ankan) MarshalJSON() ([]byte, error) {
	type plain Ankan
	return json.Marshal(struct {
		Type Type `json:"type"`
		plain
	}{TypeAnkan, plain(e)})
}

func (e Kakan) MarshalJSON() ([]byte, error) {
	type plain Kakan
	return json.Marshal(struct {
		Type Type `json:"type"`
		plain
	}{TypeKakan, plain(e)})
}

func (e Dora) MarshalJSON() ([]byte, error) {
	type plain Dora
	return json.Marshal(struct {
		Type Type `json:"type"`
		plain
	}{TypeDora, plain(e)})
}

func (e Reach) MarshalJSON() ([]byte, error) {
	type plain Reach
	return json.Marshal(struct {
		Type Type `json:"type"`
		plain
	}{TypeReach, plain(e)})
}

func (e ReachAccepted) MarshalJSON() ([]byte, error) {
	type plain ReachAccepted
	return json.Marshal(struct {
		Type Type `json:"type"`
		plain
	}{TypeReachAccepted, plain(e)})
}

func (EndKyoku) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type Type `json:"type"`
	}{TypeEndKyoku})
}

func (EndGame) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type Type `json:"type"`
	}{TypeEndGame})
}
