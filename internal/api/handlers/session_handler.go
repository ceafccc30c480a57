package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/utils"
)

type SessionHandler struct {
	sessions  services.SessionService
	interview services.InterviewService
	reports   services.ReportService
	journal   services.JournalService
}

func NewSessionHandler(sessions services.SessionService, iv services.InterviewService, reports services.ReportService, journal services.JournalService) *SessionHandler {
	return &SessionHandler{sessions: sessions, interview: iv, reports: reports, journal: journal}
}

type StartSessionRequest struct {
	Settings *models.InterviewSettings `json:"settings"`
}

type StartSessionResponse struct {
	SessionID string                   `json:"session_id"`
	Status    string                   `json:"status"`
	Plan      string                   `json:"plan"`
	Settings  models.InterviewSettings `json:"settings"`
	CreatedAt string                   `json:"created_at"`
	WSPath    string                   `json:"ws_path"`
}

// LiveView is the in-memory state of a session that is still running.
type LiveView struct {
	State       string                   `json:"state"`
	Status      any                      `json:"status"`
	Latency     any                      `json:"latency"`
	RemainingMS int64                    `json:"remaining_ms"`
	Messages    []models.Message         `json:"messages"`
	Transcript  []models.TranscriptChunk `json:"transcript"`
}

func (h *SessionHandler) Start(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req StartSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, "SessionHandler.Start", "invalid request body", err))
			return
		}
	}
	settings := models.DefaultInterviewSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}

	sess, err := h.interview.Open(c.Request.Context(), userID, settings)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, StartSessionResponse{
		SessionID: sess.SessionID,
		Status:    sess.Status,
		Plan:      sess.Plan,
		Settings:  sess.Settings,
		CreatedAt: sess.CreatedAt.Format(time.RFC3339),
		WSPath:    "/ws/session/" + sess.SessionID,
	})
}

func (h *SessionHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sess, ok := h.owned(c, userID, "SessionHandler.Get")
	if !ok {
		return
	}

	resp := gin.H{"session": sess}
	if live, err := h.interview.Live(sess.SessionID, userID); err == nil {
		resp["live"] = LiveView{
			State:       string(live.State()),
			Status:      live.Status(),
			Latency:     live.Latency(),
			RemainingMS: live.Remaining().Milliseconds(),
			Messages:    live.Messages(),
			Transcript:  live.Transcript(),
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SessionHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var limit int64 = 20
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	rows, err := h.sessions.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": rows})
}

func (h *SessionHandler) End(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	report, err := h.interview.End(c.Request.Context(), sessionID, userID, models.EndReasonUser)
	if err != nil && report == nil {
		writeError(c, err)
		return
	}
	if report != nil {
		// The session is over even when saving the report failed.
		c.JSON(http.StatusOK, gin.H{"report": report})
		return
	}

	sess, err := h.sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// Log returns the diagnostic event log of a live session.
func (h *SessionHandler) Log(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	live, err := h.interview.Live(c.Param("session_id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": live.Log()})
}

// Clip serves one synthesized reply.
func (h *SessionHandler) Clip(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	live, err := h.interview.Live(c.Param("session_id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	clip, found := live.Clip(c.Param("clip_id"))
	if !found {
		writeError(c, utils.E(utils.CodeNotFound, "SessionHandler.Clip", "clip not found", nil))
		return
	}
	c.Header("Cache-Control", "private, max-age=600")
	c.Data(http.StatusOK, clip.MimeType, clip.Data)
}

func (h *SessionHandler) Report(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	report, err := h.reports.Get(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if report.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, "SessionHandler.Report", "forbidden", nil))
		return
	}
	c.JSON(http.StatusOK, report)
}

// Turns lists the utterance journal of a session.
func (h *SessionHandler) Turns(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sess, ok := h.owned(c, userID, "SessionHandler.Turns")
	if !ok {
		return
	}
	rows, err := h.journal.ListBySession(c.Request.Context(), sess.SessionID, 200)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sess.SessionID, "turns": rows})
}

func (h *SessionHandler) owned(c *gin.Context, userID, op string) (*models.Session, bool) {
	sess, err := h.sessions.Get(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if sess.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, op, "forbidden", nil))
		return nil, false
	}
	return sess, true
}
