package transport

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEngine(t *testing.T) {
	typ, payload, err := parseEngine([]byte(`0{"sid":"abc","pingInterval":25000,"pingTimeout":20000}`))
	require.NoError(t, err)
	assert.Equal(t, byte(engineOpen), typ)

	hs, err := parseHandshake(payload)
	require.NoError(t, err)
	assert.Equal(t, "abc", hs.SID)
	assert.Equal(t, 45*time.Second, hs.readTimeout())

	typ, payload, err = parseEngine([]byte("2"))
	require.NoError(t, err)
	assert.Equal(t, byte(enginePing), typ)
	assert.Empty(t, payload)

	_, _, err = parseEngine(nil)
	assert.ErrorIs(t, err, ErrPacket)
	_, _, err = parseEngine([]byte("9"))
	assert.ErrorIs(t, err, ErrPacket)
}

func TestParseSocket(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		typ       byte
		namespace string
		ack       int
		event     string
		args      int
	}{
		{"connect", `0{"sid":"x"}`, socketConnect, "", -1, "", 0},
		{"disconnect", `1`, socketDisconnect, "", -1, "", 0},
		{"event without data", `2["START"]`, socketEvent, "", -1, "START", 0},
		{"event with data", `2["GAME",{"seq":1}]`, socketEvent, "", -1, "GAME", 1},
		{"event with ack", `212["HELLO",{"uid":"a"}]`, socketEvent, "", 12, "HELLO", 1},
		{"namespaced event", `2/admin,["ROOM","r1"]`, socketEvent, "/admin", -1, "ROOM", 1},
		{"connect error", `4{"message":"nope"}`, socketConnectError, "", -1, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt, err := parseSocket([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.typ, pkt.Type)
			assert.Equal(t, tt.namespace, pkt.Namespace)
			assert.Equal(t, tt.ack, pkt.AckID)
			assert.Equal(t, tt.event, pkt.Name)
			assert.Len(t, pkt.Args, tt.args)
		})
	}

	for _, bad := range []string{"", "9", `2`, `2{}`, `2[]`, `2[1]`, `5["x"]`} {
		_, err := parseSocket([]byte(bad))
		assert.ErrorIs(t, err, ErrPacket, bad)
	}
}

func TestEncodeEvent(t *testing.T) {
	frame, err := encodeEvent("ROOM")
	require.NoError(t, err)
	assert.Equal(t, `42["ROOM"]`, string(frame))

	frame, err = encodeEvent("GAME", json.RawMessage(`{"seq":3}`))
	require.NoError(t, err)
	assert.Equal(t, `42["GAME",{"seq":3}]`, string(frame))

	typ, payload, err := parseEngine(frame)
	require.NoError(t, err)
	require.Equal(t, byte(engineMessage), typ)
	pkt, err := parseSocket(payload)
	require.NoError(t, err)
	assert.Equal(t, "GAME", pkt.Name)
	assert.JSONEq(t, `{"seq":3}`, string(pkt.Args[0]))
}

func TestResolveEndpoints(t *testing.T) {
	ep, err := ResolveEndpoints("https://kobalab.net", "majiang/")
	require.NoError(t, err)
	assert.Equal(t, "https://kobalab.net/majiang/server/auth/", ep.Auth.String())
	assert.Equal(t, "wss://kobalab.net/majiang/server/socket.io/?EIO=4&transport=websocket", ep.Socket.String())

	ep, err = ResolveEndpoints("http://localhost:4615/", "")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4615/server/auth/", ep.Auth.String())
	assert.Equal(t, "ws://localhost:4615/server/socket.io/?EIO=4&transport=websocket", ep.Socket.String())

	_, err = ResolveEndpoints("ftp://example.com", "majiang/")
	assert.Error(t, err)
}
