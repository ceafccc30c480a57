package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/yoockh/yoointerview/internal/interview"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/providers/llm"
	"github.com/yoockh/yoointerview/internal/providers/tts"
	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/utils"
)

const (
	owner    = "user-owner"
	stranger = "user-stranger"
)

type stubSTT struct{}

func (stubSTT) Transcribe(context.Context, []byte, string, string) (string, float64, error) {
	return "I like Go", 0.9, nil
}
func (stubSTT) Name() string { return "stub-stt" }
func (stubSTT) Close() error { return nil }

type stubLLM struct{}

func (stubLLM) Generate(_ context.Context, req llm.Request) (llm.Response, error) {
	if req.IsInitial {
		return llm.Response{Text: "Welcome. What are you working on?", ProviderUsed: "stub"}, nil
	}
	return llm.Response{Text: "Tell me more.", ProviderUsed: "stub"}, nil
}
func (stubLLM) Close() error { return nil }

type stubTTS struct{}

func (stubTTS) Synthesize(context.Context, tts.Request) (tts.Audio, error) {
	return tts.Audio{Data: []byte("RIFF-clip"), MimeType: "audio/wav"}, nil
}
func (stubTTS) Name() string { return "stub-tts" }
func (stubTTS) Close() error { return nil }

func newLiveSession(t *testing.T, id string, sink interview.EventSink) *interview.Session {
	t.Helper()
	logger, _ := test.NewNullLogger()
	s := interview.NewSession(interview.Config{
		SessionID:  id,
		UserID:     owner,
		Plan:       models.PlanFree,
		Settings:   models.DefaultInterviewSettings(),
		SampleRate: 16000,
	}, interview.Deps{
		STT:    stubSTT{},
		LLM:    stubLLM{},
		TTS:    stubTTS{},
		Sink:   sink,
		Logger: logger,
	})
	t.Cleanup(func() {
		_, _ = s.End(context.Background(), models.EndReasonDisconnect)
		s.Wait()
	})
	return s
}

// fakeInterview keeps live sessions in a map.
type fakeInterview struct {
	mu      sync.Mutex
	live    map[string]*interview.Session
	openErr error
	opened  []models.InterviewSettings
	ended   []string
}

func (f *fakeInterview) Open(_ context.Context, userID string, settings models.InterviewSettings) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened = append(f.opened, settings)
	return &models.Session{
		SessionID: "sess-new",
		UserID:    userID,
		Plan:      models.PlanFree,
		Status:    models.SessionActive,
		Settings:  settings,
		CreatedAt: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeInterview) Live(sessionID, userID string) (*interview.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.live[sessionID]
	if !ok || s.Ended() {
		return nil, utils.E(utils.CodeNotFound, "fake.Live", "session is not live", nil)
	}
	if s.UserID() != userID {
		return nil, utils.E(utils.CodeForbidden, "fake.Live", "forbidden", nil)
	}
	return s, nil
}

func (f *fakeInterview) End(ctx context.Context, sessionID, userID, reason string) (*models.InterviewReport, error) {
	f.mu.Lock()
	s, ok := f.live[sessionID]
	f.ended = append(f.ended, reason)
	f.mu.Unlock()
	if !ok {
		return nil, nil
	}
	if s.UserID() != userID {
		return nil, utils.E(utils.CodeForbidden, "fake.End", "forbidden", nil)
	}
	rep, err := s.End(ctx, reason)
	return &rep, err
}

func (f *fakeInterview) Shutdown(context.Context) {}

func (f *fakeInterview) endReasons() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ended...)
}

type fakeSessions struct {
	services.SessionService
	rows map[string]*models.Session
}

func (f *fakeSessions) Get(_ context.Context, id string) (*models.Session, error) {
	s, ok := f.rows[id]
	if !ok {
		return nil, utils.E(utils.CodeNotFound, "fake.Get", "session not found", utils.ErrNotFound)
	}
	return s, nil
}

func (f *fakeSessions) ListByUser(_ context.Context, userID string, _ int64) ([]models.Session, error) {
	var out []models.Session
	for _, s := range f.rows {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakeReports struct {
	services.ReportService
	rows map[string]*models.InterviewReport
}

func (f *fakeReports) Get(_ context.Context, id string) (*models.InterviewReport, error) {
	r, ok := f.rows[id]
	if !ok {
		return nil, utils.E(utils.CodeNotFound, "fake.Report", "report not found", nil)
	}
	return r, nil
}

type fakeJournal struct {
	services.JournalService
	rows []models.TurnRecord
}

func (f *fakeJournal) ListBySession(context.Context, string, int64) ([]models.TurnRecord, error) {
	return f.rows, nil
}

// withUser stands in for JWTAuth: the caller is taken from X-User.
func withUser(c *gin.Context) {
	if u := c.GetHeader("X-User"); u != "" {
		c.Set("user_id", u)
	}
	c.Next()
}

func request(r http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set("X-User", user)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}
