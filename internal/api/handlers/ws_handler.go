package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yoockh/yoointerview/internal/interview"
	"github.com/yoockh/yoointerview/internal/metrics"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/utils"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 25 * time.Second
	wsWriteWait  = 10 * time.Second
	wsMaxMessage = 1 << 20
)

type WSConfig struct {
	MessageRate    float64
	Burst          int
	AllowedOrigins []string
}

type WSHandler struct {
	interview services.InterviewService
	bus       *services.EventBus
	metrics   *metrics.Collector
	log       *logrus.Logger
	cfg       WSConfig
	upgrader  websocket.Upgrader
}

func NewWSHandler(iv services.InterviewService, bus *services.EventBus, m *metrics.Collector, log *logrus.Logger, cfg WSConfig) *WSHandler {
	if cfg.MessageRate <= 0 {
		cfg.MessageRate = 50
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 100
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	allowed := map[string]struct{}{}
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	return &WSHandler{
		interview: iv,
		bus:       bus,
		metrics:   m,
		log:       log,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// wsClientMsg is a control message sent by the browser. Audio travels in
// binary frames.
type wsClientMsg struct {
	Type string `json:"type"`

	Formats    []string                  `json:"formats,omitempty"`
	SampleRate int                       `json:"sample_rate,omitempty"`
	Error      string                    `json:"error,omitempty"`
	Bins       []int                     `json:"bins,omitempty"`
	Text       string                    `json:"text,omitempty"`
	Enabled    *bool                     `json:"enabled,omitempty"`
	Settings   *models.InterviewSettings `json:"settings,omitempty"`
	ClipID     string                    `json:"clip_id,omitempty"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) write(mt int, b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.c.WriteMessage(mt, b)
}

// wireCode renders an error code in the snake_case used by session events.
func wireCode(c utils.Code) string { return strings.ToLower(string(c)) }

func (w *wsConn) writeError(sessionID, code, msg string) {
	b, _ := json.Marshal(interview.Event{
		Type:      interview.EventError,
		SessionID: sessionID,
		At:        time.Now().UTC(),
		Data:      interview.ErrorEvent{Code: code, Message: msg, Recoverable: true},
	})
	_ = w.write(websocket.TextMessage, b)
}

func (h *WSHandler) SessionWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.SessionWS", "missing session_id", nil))
		return
	}

	live, err := h.interview.Live(sessionID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub, err := h.bus.Subscribe(ctx, sessionID)
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, "WSHandler.SessionWS", "event bus unavailable", err))
		return
	}
	defer pubsub.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response
		return
	}
	defer conn.Close()

	log := h.log.WithFields(logrus.Fields{"session_id": sessionID, "user_id": userID})
	wc := &wsConn{c: conn}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		h.readLoop(ctx, wc, live, userID, log)
	}()

	h.writeLoop(ctx, wc, pubsub.Channel(), readDone)

	if !live.Ended() {
		log.Info("client disconnected from live session")
		if _, err := h.interview.End(context.Background(), sessionID, userID, models.EndReasonDisconnect); err != nil {
			log.WithError(err).Warn("end on disconnect failed")
		}
	}
}

func (h *WSHandler) readLoop(ctx context.Context, wc *wsConn, live *interview.Session, userID string, log *logrus.Entry) {
	conn := wc.c
	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	limiter := rate.NewLimiter(rate.Limit(h.cfg.MessageRate), h.cfg.Burst)
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("websocket read failed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		if mt == websocket.BinaryMessage {
			live.HandleAudio(data)
			continue
		}
		if !limiter.Allow() {
			if h.metrics != nil {
				h.metrics.RateLimited()
			}
			wc.writeError(live.ID(), wireCode(utils.CodeRateLimited), "too many messages")
			continue
		}

		var msg wsClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			wc.writeError(live.ID(), wireCode(utils.CodeInvalidArgument), "invalid json")
			continue
		}
		h.handleMsg(ctx, wc, live, userID, msg)
	}
}

// handleMsg applies one control message. The socket stays open after the
// session ends until the writer has forwarded session_ended.
func (h *WSHandler) handleMsg(ctx context.Context, wc *wsConn, live *interview.Session, userID string, msg wsClientMsg) {
	id := live.ID()
	switch msg.Type {
	case "media_ready":
		if err := live.AttachMedia(msg.Formats, msg.SampleRate); err != nil {
			return
		}
		if err := live.Start(ctx); err != nil {
			wc.writeError(id, "session_closed", "session has ended")
		}

	case "media_error":
		_ = live.MediaError(ctx, msg.Error)

	case "levels":
		bins := make([]uint8, len(msg.Bins))
		for i, v := range msg.Bins {
			bins[i] = uint8(min(max(v, 0), 255))
		}
		live.HandleLevels(bins)

	case "ptt_down":
		live.PushToTalk(true)

	case "ptt_up":
		live.PushToTalk(false)

	case "text":
		if err := live.SubmitText(msg.Text); errors.Is(err, interview.ErrEmptyText) {
			wc.writeError(id, "empty_text", "text is empty")
		}

	case "next":
		_ = live.Next()

	case "repeat":
		if !live.Repeat() {
			wc.writeError(id, "nothing_to_repeat", "there is no question to repeat")
		}

	case "flag":
		live.Flag()

	case "speaker":
		if msg.Enabled == nil {
			wc.writeError(id, wireCode(utils.CodeInvalidArgument), "enabled is required")
			return
		}
		live.SetSpeaker(*msg.Enabled)

	case "settings":
		if msg.Settings == nil {
			wc.writeError(id, wireCode(utils.CodeInvalidArgument), "settings are required")
			return
		}
		if err := live.UpdateSettings(*msg.Settings); err != nil {
			wc.writeError(id, wireCode(utils.CodeInvalidArgument), err.Error())
		}

	case "playback_done":
		live.PlaybackDone(msg.ClipID)

	case "end_session":
		if _, err := h.interview.End(ctx, id, userID, models.EndReasonUser); err != nil {
			wc.writeError(id, wireCode(utils.CodeOf(err)), "failed to end session")
		}

	default:
		wc.writeError(id, wireCode(utils.CodeInvalidArgument), "unknown message type")
	}
}

// writeLoop forwards bus events until the session has ended or the client
// went away.
func (h *WSHandler) writeLoop(ctx context.Context, wc *wsConn, events <-chan *redis.Message, readDone <-chan struct{}) {
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := wc.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case m, ok := <-events:
			if !ok {
				return
			}
			if err := wc.write(websocket.TextMessage, []byte(m.Payload)); err != nil {
				return
			}
			var head struct {
				Type string `json:"type"`
			}
			if json.Unmarshal([]byte(m.Payload), &head) == nil && head.Type == interview.EventSessionEnded {
				_ = wc.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return
			}
		}
	}
}
