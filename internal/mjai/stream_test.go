package mjai

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamSendWritesOneLinePerBatch(t *testing.T) {
	var out bytes.Buffer
	s := NewStream(strings.NewReader(""), &out)

	require.NoError(t, s.Send([]Event{StartGame{ID: 0}}))
	require.NoError(t, s.Send([]Event{Dora{DoraMarker: "1m"}, Tsumo{Actor: 0, Pai: "E"}}))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `[{"type":"start_game","id":0}]`, lines[0])
	assert.JSONEq(t, `[{"type":"dora","dora_marker":"1m"},{"type":"tsumo","actor":0,"pai":"E"}]`, lines[1])
}

func TestStreamReadAction(t *testing.T) {
	in := "{\"type\":\"none\"}\n\n  \n{\"type\":\"dahai\",\"actor\":2,\"pai\":\"C\",\"tsumogiri\":false}\n"
	s := NewStream(strings.NewReader(in), io.Discard)

	a, err := s.ReadAction()
	require.NoError(t, err)
	assert.True(t, a.IsNone())

	a, err = s.ReadAction()
	require.NoError(t, err)
	assert.Equal(t, TypeDahai, a.Type)
	assert.Equal(t, 2, a.Actor)

	_, err = s.ReadAction()
	assert.ErrorIs(t, err, io.EOF)
}
