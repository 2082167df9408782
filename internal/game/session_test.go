package game

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/mjaibridge/internal/majiang"
	"github.com/lox/mjaibridge/internal/mjai"
)

const (
	kaiju4p = `{"kaiju":{"id":1,"qijia":0,"player":["a","b","c","d"],"title":"test"},"seq":1}`
	qipai4p = `{"qipai":{"zhuangfeng":0,"jushu":0,"changbang":0,"lizhibang":0,"defen":[25000,25000,25000,25000],"baopai":"s5","shoupai":["","m123456789p1234","",""]},"seq":2}`
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func handle(t *testing.T, s *Session, raw string) *majiang.Reply {
	t.Helper()
	env, err := majiang.Decode([]byte(raw))
	require.NoError(t, err)
	reply, err := s.Handle(context.Background(), env)
	require.NoError(t, err)
	return reply
}

func handleErr(t *testing.T, s *Session, raw string) error {
	t.Helper()
	env, err := majiang.Decode([]byte(raw))
	require.NoError(t, err)
	_, err = s.Handle(context.Background(), env)
	return err
}

// tsumogiriOnOwnDraw discards every tile the agent itself draws.
func tsumogiriOnOwnDraw(seat int) func([]mjai.Event) (*mjai.Action, error) {
	return func(evs []mjai.Event) (*mjai.Action, error) {
		if ts, ok := evs[len(evs)-1].(mjai.Tsumo); ok && ts.Actor == seat {
			return &mjai.Action{Type: mjai.TypeDahai, Actor: seat, Pai: ts.Pai, Tsumogiri: true}, nil
		}
		return nil, nil
	}
}

func startedSession(t *testing.T, agent *ScriptedAgent, opts ...Option) *Session {
	t.Helper()
	s := NewSession(agent, testLogger(), opts...)
	handle(t, s, kaiju4p)
	handle(t, s, qipai4p)
	return s
}

func TestSessionGameStart(t *testing.T) {
	agent := &ScriptedAgent{}
	s := NewSession(agent, testLogger())
	assert.Nil(t, s.GameInfo())

	reply := handle(t, s, kaiju4p)
	assert.Equal(t, majiang.Empty(1), *reply)
	assert.Equal(t, 1, s.Seat())
	assert.Equal(t, Mode4P, s.Mode())

	assert.Equal(t, 1, agent.Inits)
	assert.Equal(t, 1, agent.Seat)
	assert.Equal(t, []mjai.Event{mjai.StartGame{ID: 1}}, agent.Last())
	assert.Equal(t, 1, agent.Singles)
}

func TestSessionModeDetection(t *testing.T) {
	s := NewSession(&ScriptedAgent{}, testLogger())
	err := handleErr(t, s, `{"kaiju":{"id":0,"qijia":0,"player":["a","b"]},"seq":1}`)
	assert.ErrorIs(t, err, ErrModeDetection)

	s = NewSession(&ScriptedAgent{}, testLogger())
	handle(t, s, `{"kaiju":{"id":0,"qijia":0,"player":[]},"seq":1}`)
	assert.True(t, s.Ended())
}

func TestSessionRoundStart(t *testing.T) {
	agent := &ScriptedAgent{}
	s := startedSession(t, agent)

	require.Len(t, agent.Last(), 1)
	ev, ok := agent.Last()[0].(mjai.StartKyoku)
	require.True(t, ok)
	assert.Equal(t, "E", ev.Bakaze)
	assert.Equal(t, "S", ev.Jikaze)
	assert.Equal(t, 1, ev.Kyoku)
	assert.Equal(t, 0, ev.Honba)
	assert.Equal(t, 0, ev.Oya)
	assert.Equal(t, "5s", ev.DoraMarker)
	assert.Equal(t, []int{25000, 25000, 25000, 25000}, ev.Scores)
	assert.Len(t, ev.Tehais[1], 13)
	for _, seat := range []int{0, 2, 3} {
		assert.Equal(t, []string{"?", "?", "?", "?", "?", "?", "?", "?", "?", "?", "?", "?", "?"}, ev.Tehais[seat])
	}

	info := s.GameInfo()
	require.NotNil(t, info)
	assert.True(t, info.FirstMove)
	assert.Equal(t, "S", info.Jikaze)
	assert.True(t, s.RoundStarted())
}

func TestSessionOwnTsumogiriReply(t *testing.T) {
	agent := &ScriptedAgent{Respond: tsumogiriOnOwnDraw(1)}
	s := startedSession(t, agent)

	reply := handle(t, s, `{"zimo":{"l":1,"p":"z3"},"seq":10}`)
	assert.Equal(t, majiang.Reply{Kind: majiang.ReplyDapai, Value: "z3_", Seq: 10}, *reply)

	pending, ok := s.PendingReaction()
	require.True(t, ok)
	assert.Equal(t, mjai.TypeDahai, pending.Action.Type)

	info := s.GameInfo()
	assert.Equal(t, "W", info.Drawn)
	assert.Len(t, info.Hand, 13)
	assert.False(t, info.FirstMove)

	reply = handle(t, s, `{"dapai":{"l":1,"p":"z3_"},"seq":11}`)
	assert.Equal(t, majiang.Empty(11), *reply)
	_, ok = s.PendingReaction()
	assert.False(t, ok, "the discard consumed the pending reaction")

	assert.Equal(t, []mjai.Event{mjai.Dahai{Actor: 1, Pai: "W", Tsumogiri: true}}, agent.Last())
	assert.Len(t, s.Round().Hand(), 13)
	_, held := s.Round().Drawn()
	assert.False(t, held)
}

func TestSessionBatchesGoToReactBatch(t *testing.T) {
	agent := &ScriptedAgent{}
	s := startedSession(t, agent)
	singles := agent.Singles

	handle(t, s, `{"dapai":{"l":0,"p":"m9*"},"seq":5}`)
	assert.Equal(t, []mjai.Type{mjai.TypeReach, mjai.TypeDahai}, Types(agent.Last()))
	assert.Equal(t, singles, agent.Singles)

	handle(t, s, `{"zimo":{"l":1,"p":"z1"},"seq":6}`)
	assert.Equal(t, []mjai.Event{mjai.ReachAccepted{Actor: 0}, mjai.Tsumo{Actor: 1, Pai: "E"}}, agent.Last())
}

func TestSessionReachThenWin(t *testing.T) {
	agent := &ScriptedAgent{}
	s := startedSession(t, agent)

	handle(t, s, `{"dapai":{"l":2,"p":"p9*"},"seq":5}`)
	reply := handle(t, s, `{"hule":{"l":0,"shoupai":"m123","baojia":2,"fu":30,"fanshu":2,"defen":2000,"fenpei":[2000,0,-1000,0]},"seq":6}`)
	assert.Equal(t, majiang.Empty(6), *reply)

	for _, ev := range agent.Events() {
		assert.NotEqual(t, mjai.TypeReachAccepted, ev.EventType())
	}
	assert.Equal(t, []int{27000, 25000, 24000, 25000}, s.Scores())
	assert.False(t, s.RoundStarted())
	_, ok := s.PendingReaction()
	assert.False(t, ok)
}

func TestSessionDoubleRonSettlesBothWins(t *testing.T) {
	agent := &ScriptedAgent{}
	s := startedSession(t, agent)

	handle(t, s, `{"hule":{"l":0,"shoupai":"m123","baojia":2,"fu":30,"fanshu":2,"defen":2000,"fenpei":[2000,0,-2000,0]},"seq":5}`)
	reply := handle(t, s, `{"hule":{"l":3,"shoupai":"p456","baojia":2,"fu":30,"fanshu":1,"defen":1000,"fenpei":[0,0,-1000,1000]},"seq":6}`)
	assert.Equal(t, majiang.Empty(6), *reply)

	assert.Equal(t, []int{27000, 25000, 22000, 26000}, s.Scores())
	ends := 0
	for _, ev := range agent.Events() {
		if ev.EventType() == mjai.TypeEndKyoku {
			ends++
		}
	}
	assert.Equal(t, 1, ends)
}

func TestSessionDoraPrecedesHeldDraw(t *testing.T) {
	agent := &ScriptedAgent{Respond: tsumogiriOnOwnDraw(2)}
	s := NewSession(agent, testLogger())
	handle(t, s, `{"kaiju":{"id":2,"qijia":0,"player":["a","b","c","d"]},"seq":1}`)
	handle(t, s, `{"qipai":{"zhuangfeng":0,"jushu":0,"changbang":0,"lizhibang":0,"defen":[25000,25000,25000,25000],"baopai":"s5","shoupai":["","","z7777m123456789",""]},"seq":2}`)

	reply := handle(t, s, `{"zimo":{"l":2,"p":"s1"},"seq":3}`)
	assert.Equal(t, "s1_", reply.Value)

	// the agent answers the draw with a closed kan instead
	agent.Respond = func(evs []mjai.Event) (*mjai.Action, error) {
		return &mjai.Action{Type: mjai.TypeAnkan, Actor: 2, Consumed: []string{"C", "C", "C", "C"}}, nil
	}
	handle(t, s, `{"dapai":{"l":2,"p":"s1_"},"seq":4}`)
	reply = handle(t, s, `{"zimo":{"l":2,"p":"s2"},"seq":5}`)
	assert.Equal(t, majiang.Reply{Kind: majiang.ReplyGang, Value: "z7777", Seq: 5}, *reply)

	agent.Respond = tsumogiriOnOwnDraw(2)
	handle(t, s, `{"gang":{"l":2,"m":"z7777"},"seq":6}`)
	calls := len(agent.Calls)

	reply = handle(t, s, `{"gangzimo":{"l":2,"p":"p9"},"seq":7}`)
	assert.Nil(t, reply, "the rinshan draw is answered after the dora reveal")
	assert.Len(t, agent.Calls, calls, "the agent has not seen the draw yet")

	reply = handle(t, s, `{"kaigang":{"baopai":"m3"},"seq":8}`)
	require.NotNil(t, reply)
	assert.Equal(t, majiang.Reply{Kind: majiang.ReplyDapai, Value: "p9_", Seq: 8}, *reply)
	assert.Equal(t, []mjai.Event{
		mjai.Dora{DoraMarker: "3m"},
		mjai.Tsumo{Actor: 2, Pai: "9p"},
	}, agent.Last())
}

func TestSessionRevealBeforeRinshanDraw(t *testing.T) {
	agent := &ScriptedAgent{}
	s := startedSession(t, agent)

	handle(t, s, `{"gang":{"l":2,"m":"z7777"},"seq":3}`)
	reply := handle(t, s, `{"kaigang":{"baopai":"m3"},"seq":4}`)
	assert.Equal(t, majiang.Empty(4), *reply)
	assert.Equal(t, []mjai.Event{mjai.Dora{DoraMarker: "3m"}}, agent.Last())

	reply = handle(t, s, `{"gangzimo":{"l":2},"seq":5}`)
	require.NotNil(t, reply, "the rinshan draw is answered straight away")
	assert.Equal(t, majiang.Empty(5), *reply)
	assert.Equal(t, []mjai.Event{mjai.Tsumo{Actor: 2, Pai: "?"}}, agent.Last())
}

func TestSessionNoKanDoraRule(t *testing.T) {
	agent := &ScriptedAgent{}
	s := NewSession(agent, testLogger())
	handle(t, s, `{"kaiju":{"id":1,"qijia":0,"player":["a","b","c","d"],"rule":{"カンドラあり":false}},"seq":1}`)
	handle(t, s, qipai4p)

	handle(t, s, `{"gang":{"l":2,"m":"z7777"},"seq":3}`)
	reply := handle(t, s, `{"gangzimo":{"l":2},"seq":4}`)
	require.NotNil(t, reply)
	assert.Equal(t, majiang.Empty(4), *reply)
	assert.Equal(t, []mjai.Event{mjai.Tsumo{Actor: 2, Pai: "?"}}, agent.Last())
}

func TestSessionIntegrityErrorWaitsForResync(t *testing.T) {
	agent := &ScriptedAgent{}
	s := startedSession(t, agent)

	err := handleErr(t, s, `{"dapai":{"l":1,"p":"s9"},"seq":3}`)
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.True(t, s.AwaitingResync())

	calls := len(agent.Calls)
	reply := handle(t, s, `{"zimo":{"l":2,"p":""},"seq":4}`)
	assert.Equal(t, majiang.Empty(4), *reply)
	assert.Len(t, agent.Calls, calls)

	handle(t, s, qipai4p)
	assert.False(t, s.AwaitingResync())
	assert.Len(t, agent.Calls, calls+1)
}

func TestSessionRecoversFromAgentFailures(t *testing.T) {
	tests := map[string]func([]mjai.Event) (*mjai.Action, error){
		"error": func([]mjai.Event) (*mjai.Action, error) { return nil, errors.New("model crashed") },
		"panic": func([]mjai.Event) (*mjai.Action, error) { panic("boom") },
	}
	for name, respond := range tests {
		t.Run(name, func(t *testing.T) {
			agent := &ScriptedAgent{}
			s := startedSession(t, agent)
			agent.Respond = respond

			reply := handle(t, s, `{"zimo":{"l":1,"p":"z1"},"seq":9}`)
			assert.Equal(t, majiang.Empty(9), *reply)
			_, ok := s.PendingReaction()
			assert.False(t, ok)

			// the draw was committed before the agent failed
			drawn, ok := s.Round().Drawn()
			assert.True(t, ok)
			assert.Equal(t, "E", drawn)
		})
	}
}

func TestSessionUnexpectedActionAnswersEmpty(t *testing.T) {
	agent := &ScriptedAgent{Respond: func([]mjai.Event) (*mjai.Action, error) {
		return &mjai.Action{Type: mjai.TypeNukidora, Actor: 1, Pai: "N"}, nil
	}}
	s := startedSession(t, agent)
	reply := handle(t, s, `{"zimo":{"l":1,"p":"z4"},"seq":12}`)
	assert.Equal(t, majiang.Empty(12), *reply)
}

func TestSessionUnknownTagIsIgnored(t *testing.T) {
	agent := &ScriptedAgent{}
	s := startedSession(t, agent)
	calls := len(agent.Calls)

	reply := handle(t, s, `{"say":{"text":"gg"},"seq":13}`)
	assert.Equal(t, majiang.Empty(13), *reply)
	assert.Len(t, agent.Calls, calls)
	assert.True(t, s.GameInfo().FirstMove)
}

func TestSessionMeasuresReactionTime(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mockClock := quartz.NewMock(t)
	agent := &ScriptedAgent{}
	s := startedSession(t, agent, WithClock(mockClock))
	agent.Respond = func(evs []mjai.Event) (*mjai.Action, error) {
		mockClock.Advance(750 * time.Millisecond).MustWait(ctx)
		return tsumogiriOnOwnDraw(1)(evs)
	}

	handle(t, s, `{"zimo":{"l":1,"p":"s9"},"seq":20}`)
	pending, ok := s.PendingReaction()
	require.True(t, ok)
	assert.Equal(t, 750*time.Millisecond, pending.Elapsed)
}

func TestSessionGameEnd(t *testing.T) {
	agent := &ScriptedAgent{}
	s := startedSession(t, agent)

	handle(t, s, `{"pingju":{"name":"荒牌平局","shoupai":["","","",""],"fenpei":[1500,-500,-500,-500]},"seq":30}`)
	assert.Equal(t, []int{26500, 24500, 24500, 24500}, s.Scores())

	reply := handle(t, s, `{"jieju":{"defen":[26500,24500,24500,24500],"rank":[1,2,3,4],"point":["+36.5","-5.5","-10.5","-20.5"]},"seq":31}`)
	assert.Equal(t, majiang.Empty(31), *reply)
	assert.True(t, s.Ended())
	assert.Equal(t, []mjai.Event{mjai.EndGame{}}, agent.Last())

	res, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, 1, res.Seat)
	assert.Equal(t, "4p", res.Mode)
	assert.Equal(t, []int{1, 2, 3, 4}, res.Rank)
	assert.Equal(t, []string{"+36.5", "-5.5", "-10.5", "-20.5"}, res.Points)

	reply = handle(t, s, `{"zimo":{"l":0,"p":""},"seq":32}`)
	assert.Equal(t, majiang.Empty(32), *reply)
}

func TestSessionThreePlayerScoresArePadded(t *testing.T) {
	agent := &ScriptedAgent{}
	s := NewSession(agent, testLogger())
	handle(t, s, `{"kaiju":{"id":2,"qijia":0,"player":["a","b","c"]},"seq":1}`)
	assert.Equal(t, 2, s.Seat())
	assert.Equal(t, Mode3P, agent.Mode)

	handle(t, s, `{"qipai":{"zhuangfeng":0,"jushu":0,"changbang":0,"lizhibang":0,"defen":[35000,35000,35000],"baopai":"z1","shoupai":["","","m123456789p1234"]},"seq":2}`)
	assert.Equal(t, []int{35000, 35000, 35000, 0}, s.Scores())
	ev := agent.Last()[0].(mjai.StartKyoku)
	assert.Equal(t, []int{35000, 35000, 35000, 0}, ev.Scores)
	assert.Equal(t, "W", ev.Jikaze)
}
