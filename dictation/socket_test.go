package dictation

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryFields struct {
	sync.Mutex
	values map[string]string
}

func (m *memoryFields) Value(field string) (string, error) {
	m.Lock()
	defer m.Unlock()
	v, ok := m.values[field]
	if !ok {
		return "", fmt.Errorf("field %s cannot be dictated", field)
	}
	return v, nil
}

func (m *memoryFields) SetValue(field, value string) error {
	m.Lock()
	defer m.Unlock()
	m.values[field] = value
	return nil
}

func (m *memoryFields) get(field string) string {
	m.Lock()
	defer m.Unlock()
	return m.values[field]
}

func dial(t *testing.T, fields Fields) (*websocket.Conn, func()) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		Serve(context.Background(), conn, fields)
	}))

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func read(t *testing.T, conn *websocket.Conn) Frame {
	var f Frame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestSocketDictation(t *testing.T) {
	fields := &memoryFields{values: map[string]string{
		"malfunctionDetails": "",
		"actionDetails":      "",
	}}
	conn, done := dial(t, fields)
	defer done()

	require.NoError(t, conn.WriteJSON(Frame{Type: FrameHello, Supported: true}))
	require.NoError(t, conn.WriteJSON(Frame{Type: FrameStart, Field: "malfunctionDetails"}))

	f := read(t, conn)
	assert.Equal(t, FrameRecognizer, f.Type)
	assert.Equal(t, "start", f.Action)
	assert.Equal(t, Language, f.Language)
	assert.True(t, f.Continuous)

	require.NoError(t, conn.WriteJSON(Frame{Type: FrameTranscript, Field: "malfunctionDetails", Text: "센서 고장"}))
	f = read(t, conn)
	assert.Equal(t, Frame{Type: FrameValue, Field: "malfunctionDetails", Value: "센서 고장"}, f)

	// switch to another field
	require.NoError(t, conn.WriteJSON(Frame{Type: FrameStart, Field: "actionDetails"}))
	assert.Equal(t, "stop", read(t, conn).Action)
	assert.Equal(t, Frame{Type: FrameValue, Field: "malfunctionDetails", Value: "센서 고장"}, read(t, conn))
	assert.Equal(t, "start", read(t, conn).Action)

	// a late result for the previous field is dropped
	require.NoError(t, conn.WriteJSON(Frame{Type: FrameTranscript, Field: "malfunctionDetails", Text: "센서 고장 교체"}))
	require.NoError(t, conn.WriteJSON(Frame{Type: FrameTranscript, Field: "actionDetails", Text: "센서 교체"}))
	assert.Equal(t, Frame{Type: FrameValue, Field: "actionDetails", Value: "센서 교체"}, read(t, conn))

	require.NoError(t, conn.WriteJSON(Frame{Type: FrameStop, Field: "malfunctionDetails"}))
	f = read(t, conn)
	assert.Equal(t, FrameError, f.Type)
	assert.Equal(t, ErrNotHolder.Error(), f.Message)

	require.NoError(t, conn.WriteJSON(Frame{Type: FrameStop, Field: "actionDetails"}))
	assert.Equal(t, "stop", read(t, conn).Action)
	assert.Equal(t, Frame{Type: FrameValue, Field: "actionDetails", Value: "센서 교체"}, read(t, conn))

	assert.Equal(t, "센서 고장", fields.get("malfunctionDetails"))
	assert.Equal(t, "센서 교체", fields.get("actionDetails"))
}

func TestSocketWithoutRecognizerSupport(t *testing.T) {
	fields := &memoryFields{values: map[string]string{"company": ""}}
	conn, done := dial(t, fields)
	defer done()

	require.NoError(t, conn.WriteJSON(Frame{Type: FrameStart, Field: "company"}))
	f := read(t, conn)
	assert.Equal(t, FrameError, f.Type)
	assert.Equal(t, ErrUnsupported.Error(), f.Message)

	require.NoError(t, conn.WriteJSON(Frame{Type: FrameHello, Supported: true}))
	require.NoError(t, conn.WriteJSON(Frame{Type: FrameStart, Field: "writer"}))
	f = read(t, conn)
	assert.Equal(t, FrameError, f.Type, "field that cannot be dictated")
}

func TestSlotAdmitsOneSocket(t *testing.T) {
	var slot Slot

	release, err := slot.Attach()
	require.NoError(t, err)
	assert.True(t, slot.Attached())

	_, err = slot.Attach()
	assert.Equal(t, ErrAttached, err)

	release()
	release()
	assert.False(t, slot.Attached())

	again, err := slot.Attach()
	require.NoError(t, err)
	again()
}
