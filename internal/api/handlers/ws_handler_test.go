package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoointerview/internal/interview"
	"github.com/yoockh/yoointerview/internal/metrics"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/services"
)

type wsFixture struct {
	url       string
	live      *interview.Session
	interview *fakeInterview
}

func newWSFixture(t *testing.T, cfg WSConfig) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	bus := services.NewEventBus(rdb)

	live := newLiveSession(t, "sess-ws", bus)
	fi := &fakeInterview{live: map[string]*interview.Session{"sess-ws": live}}
	logger, _ := test.NewNullLogger()

	h := NewWSHandler(fi, bus, metrics.NewCollector(), logger, cfg)
	r := gin.New()
	r.Use(withUser)
	r.GET("/ws/session/:session_id", h.SessionWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &wsFixture{
		url:       "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session/sess-ws",
		live:      live,
		interview: fi,
	}
}

func (f *wsFixture) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	header := map[string][]string{"X-User": {user}}
	conn, _, err := websocket.DefaultDialer.Dial(f.url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads events until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) interview.Event {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)
		var ev interview.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		if ev.Type == typ {
			return ev
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func TestWSHandler_RejectsStranger(t *testing.T) {
	f := newWSFixture(t, WSConfig{})

	_, resp, err := websocket.DefaultDialer.Dial(f.url, map[string][]string{"X-User": {stranger}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestWSHandler_InterviewOverSocket(t *testing.T) {
	f := newWSFixture(t, WSConfig{})
	conn := f.dial(t, owner)

	send(t, conn, map[string]any{"type": "media_ready", "formats": []string{"audio/webm", "audio/wav"}, "sample_rate": 16000})

	ev := readUntil(t, conn, interview.EventMessage)
	raw, _ := json.Marshal(ev.Data)
	assert.Contains(t, string(raw), "Welcome. What are you working on?")

	play := readUntil(t, conn, interview.EventPlay)
	var clip struct {
		ClipID string `json:"clip_id"`
	}
	raw, _ = json.Marshal(play.Data)
	require.NoError(t, json.Unmarshal(raw, &clip))
	require.NotEmpty(t, clip.ClipID)
	send(t, conn, map[string]any{"type": "playback_done", "clip_id": clip.ClipID})
	f.live.Wait()

	send(t, conn, map[string]any{"type": "text", "text": "   "})
	ev = readUntil(t, conn, interview.EventError)
	raw, _ = json.Marshal(ev.Data)
	assert.Contains(t, string(raw), "empty_text")

	send(t, conn, map[string]any{"type": "text", "text": "I maintain a billing service"})
	require.Eventually(t, func() bool { return len(f.live.Messages()) == 3 }, 3*time.Second, 10*time.Millisecond)

	send(t, conn, map[string]any{"type": "bogus"})
	ev = readUntil(t, conn, interview.EventError)
	raw, _ = json.Marshal(ev.Data)
	assert.Contains(t, string(raw), "unknown message type")

	send(t, conn, map[string]any{"type": "end_session"})
	ended := readUntil(t, conn, interview.EventSessionEnded)
	raw, _ = json.Marshal(ended.Data)
	assert.Contains(t, string(raw), `"reason":"user"`)

	// the server closes the socket after session_ended
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Equal(t, []string{models.EndReasonUser}, f.interview.endReasons())
}

func TestWSHandler_DisconnectEndsSession(t *testing.T) {
	f := newWSFixture(t, WSConfig{})
	conn := f.dial(t, owner)

	send(t, conn, map[string]any{"type": "media_ready", "formats": []string{"audio/wav"}})
	readUntil(t, conn, interview.EventMessage)
	require.NoError(t, conn.Close())

	require.Eventually(t, f.live.Ended, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{models.EndReasonDisconnect}, f.interview.endReasons())
}

func TestWSHandler_RateLimitsControlMessages(t *testing.T) {
	f := newWSFixture(t, WSConfig{MessageRate: 0.001, Burst: 1})
	conn := f.dial(t, owner)

	send(t, conn, map[string]any{"type": "flag"})
	send(t, conn, map[string]any{"type": "flag"})

	ev := readUntil(t, conn, interview.EventError)
	raw, _ := json.Marshal(ev.Data)
	assert.Contains(t, string(raw), "rate_limited")
}
