package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoointerview/internal/interview"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/utils"
)

type sessionFixture struct {
	router    *gin.Engine
	interview *fakeInterview
	live      *interview.Session
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	live := newLiveSession(t, "sess-1", nil)
	fi := &fakeInterview{live: map[string]*interview.Session{"sess-1": live}}
	sessions := &fakeSessions{rows: map[string]*models.Session{
		"sess-1": {SessionID: "sess-1", UserID: owner, Status: models.SessionActive, Plan: models.PlanFree},
		"sess-0": {SessionID: "sess-0", UserID: owner, Status: models.SessionEnded, Plan: models.PlanFree},
	}}
	reports := &fakeReports{rows: map[string]*models.InterviewReport{
		"sess-0": {SessionID: "sess-0", UserID: owner, EndReason: models.EndReasonAuto},
	}}
	journal := &fakeJournal{rows: []models.TurnRecord{{SessionID: "sess-1", TurnIndex: 1, Source: "intro"}}}

	h := NewSessionHandler(sessions, fi, reports, journal)
	r := gin.New()
	r.Use(withUser)
	r.POST("/session/start", h.Start)
	r.GET("/sessions", h.List)
	r.GET("/session/:session_id", h.Get)
	r.POST("/session/:session_id/end", h.End)
	r.GET("/session/:session_id/log", h.Log)
	r.GET("/session/:session_id/clips/:clip_id", h.Clip)
	r.GET("/session/:session_id/report", h.Report)
	r.GET("/session/:session_id/turns", h.Turns)

	return &sessionFixture{router: r, interview: fi, live: live}
}

func (f *sessionFixture) startLive(t *testing.T) {
	t.Helper()
	require.NoError(t, f.live.AttachMedia([]string{interview.FormatWAV}, 16000))
	require.NoError(t, f.live.Start(context.Background()))
	f.live.Wait()
}

func TestSessionHandler_Start(t *testing.T) {
	f := newSessionFixture(t)

	rec := request(f.router, http.MethodPost, "/session/start", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp StartSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sess-new", resp.SessionID)
	assert.Equal(t, "/ws/session/sess-new", resp.WSPath)
	assert.Equal(t, models.DefaultInterviewSettings(), resp.Settings)

	rec = request(f.router, http.MethodPost, "/session/start", owner, `{"settings":{"role":"SRE","type":"hr","difficulty":"hard","duration":10}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SRE", f.interview.opened[1].Role)
	assert.Equal(t, models.InterviewHR, f.interview.opened[1].Type)

	rec = request(f.router, http.MethodPost, "/session/start", owner, `{"settings":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, request(f.router, http.MethodPost, "/session/start", "", "").Code)
}

func TestSessionHandler_StartWithoutCredits(t *testing.T) {
	f := newSessionFixture(t)
	f.interview.openErr = utils.E(utils.CodeForbidden, "CreditService.Consume", "insufficient credits", nil)

	rec := request(f.router, http.MethodPost, "/session/start", owner, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"code":"FORBIDDEN","message":"insufficient credits"}`, rec.Body.String())
}

func TestSessionHandler_GetIncludesLiveView(t *testing.T) {
	f := newSessionFixture(t)
	f.startLive(t)

	rec := request(f.router, http.MethodGet, "/session/sess-1", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Session models.Session `json:"session"`
		Live    *LiveView      `json:"live"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Live)
	assert.Equal(t, string(interview.StateIdle), body.Live.State)
	require.Len(t, body.Live.Messages, 1)
	assert.Equal(t, "Welcome. What are you working on?", body.Live.Messages[0].Text)
	assert.Positive(t, body.Live.RemainingMS)

	rec = request(f.router, http.MethodGet, "/session/sess-0", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"live"`)

	assert.Equal(t, http.StatusForbidden, request(f.router, http.MethodGet, "/session/sess-1", stranger, "").Code)
	assert.Equal(t, http.StatusNotFound, request(f.router, http.MethodGet, "/session/nope", owner, "").Code)
}

func TestSessionHandler_ClipAndLog(t *testing.T) {
	f := newSessionFixture(t)
	f.startLive(t)

	msgs := f.live.Messages()
	require.Len(t, msgs, 1)
	require.NotEmpty(t, msgs[0].AudioURL)

	rec := request(f.router, http.MethodGet, msgs[0].AudioURL, owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	assert.Equal(t, "RIFF-clip", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, request(f.router, http.MethodGet, "/session/sess-1/clips/unknown", owner, "").Code)
	assert.Equal(t, http.StatusForbidden, request(f.router, http.MethodGet, msgs[0].AudioURL, stranger, "").Code)

	rec = request(f.router, http.MethodGet, "/session/sess-1/log", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Entries []interview.LogEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	events := make([]string, 0, len(body.Entries))
	for _, e := range body.Entries {
		events = append(events, e.Event)
	}
	assert.Contains(t, events, "session_started")
}

func TestSessionHandler_End(t *testing.T) {
	f := newSessionFixture(t)
	f.startLive(t)

	assert.Equal(t, http.StatusForbidden, request(f.router, http.MethodPost, "/session/sess-1/end", stranger, "").Code)

	rec := request(f.router, http.MethodPost, "/session/sess-1/end", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Report models.InterviewReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.EndReasonUser, body.Report.EndReason)
	assert.True(t, body.Report.EarlyDisconnect)
	assert.Len(t, body.Report.Messages, 1)

	// no longer live: the log is gone
	assert.Equal(t, http.StatusNotFound, request(f.router, http.MethodGet, "/session/sess-1/log", owner, "").Code)

	// a session that is not live answers with its record
	rec = request(f.router, http.MethodPost, "/session/sess-0/end", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"session"`)
}

func TestSessionHandler_ReportTurnsAndList(t *testing.T) {
	f := newSessionFixture(t)

	rec := request(f.router, http.MethodGet, "/session/sess-0/report", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"end_reason":"auto"`)
	assert.Equal(t, http.StatusForbidden, request(f.router, http.MethodGet, "/session/sess-0/report", stranger, "").Code)
	assert.Equal(t, http.StatusNotFound, request(f.router, http.MethodGet, "/session/sess-1/report", owner, "").Code)

	rec = request(f.router, http.MethodGet, "/session/sess-1/turns", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"turn_index":1`)

	rec = request(f.router, http.MethodGet, "/sessions?limit=5", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Sessions []models.Session `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Sessions, 2)
}
