package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoointerview/internal/interview"
	"github.com/yoockh/yoointerview/internal/metrics"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/providers/llm"
	"github.com/yoockh/yoointerview/internal/providers/stt"
	"github.com/yoockh/yoointerview/internal/providers/tts"
	"github.com/yoockh/yoointerview/internal/utils"
)

// InterviewService opens and closes live interview sessions.
type InterviewService interface {
	// Open takes one credit, records the session and puts its controller in
	// the registry. The controller starts once the client's media is ready.
	Open(ctx context.Context, userID string, settings models.InterviewSettings) (*models.Session, error)
	// Live returns the controller of a session owned by userID.
	Live(sessionID, userID string) (*interview.Session, error)
	// End ends a session. The report is nil when the session was no longer
	// live on this instance.
	End(ctx context.Context, sessionID, userID, reason string) (*models.InterviewReport, error)
	Shutdown(ctx context.Context)
}

type LiveConfig struct {
	VAD           interview.VADConfig
	Timer         interview.TimerConfig
	QuestionLimit time.Duration
	SampleRate    int
	// StartTimeout ends sessions whose client never reports media_ready.
	StartTimeout time.Duration
}

type LiveDeps struct {
	STT stt.Provider
	LLM llm.Provider
	TTS tts.Provider

	Sessions SessionService
	Credits  CreditService
	Profiles ProfileService
	Reporter interview.Reporter
	Journal  interview.Journal
	Sink     interview.EventSink
	Metrics  *metrics.Collector
	Registry *interview.Registry

	Clock  interview.Clock
	Logger *logrus.Logger
}

type interviewService struct {
	cfg  LiveConfig
	deps LiveDeps
}

func NewInterviewService(cfg LiveConfig, deps LiveDeps) InterviewService {
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = time.Minute
	}
	if deps.Registry == nil {
		deps.Registry = interview.NewRegistry()
	}
	if deps.Clock == nil {
		deps.Clock = interview.SystemClock()
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	return &interviewService{cfg: cfg, deps: deps}
}

func (s *interviewService) Open(ctx context.Context, userID string, settings models.InterviewSettings) (*models.Session, error) {
	const op = "InterviewService.Open"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if err := interview.ValidateSettings(settings); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, err.Error(), err)
	}

	account, err := s.deps.Credits.Consume(ctx, userID)
	if err != nil {
		return nil, err
	}
	row, err := s.deps.Sessions.Start(ctx, userID, account.Plan, settings)
	if err != nil {
		s.restoreCredit(userID, "", "session record failed")
		return nil, err
	}

	var candidate *models.Candidate
	if s.deps.Profiles != nil {
		candidate, err = s.deps.Profiles.CandidateContext(ctx, userID)
		if err != nil {
			s.deps.Logger.WithError(err).WithField("user_id", userID).Warn("candidate context unavailable")
		}
	}

	var observer interview.Observer
	if s.deps.Metrics != nil {
		observer = s.deps.Metrics
	}
	var refunder interview.Refunder
	if s.deps.Credits != nil {
		refunder = s.deps.Credits
	}

	live := interview.NewSession(interview.Config{
		SessionID:     row.SessionID,
		UserID:        userID,
		Plan:          row.Plan,
		Settings:      settings,
		Candidate:     candidate,
		VAD:           s.cfg.VAD,
		Timer:         s.cfg.Timer,
		QuestionLimit: s.cfg.QuestionLimit,
		SampleRate:    s.cfg.SampleRate,
	}, interview.Deps{
		STT:      s.deps.STT,
		LLM:      s.deps.LLM,
		TTS:      s.deps.TTS,
		Sink:     s.deps.Sink,
		Refunder: refunder,
		Reporter: s.deps.Reporter,
		Journal:  s.deps.Journal,
		Observer: observer,
		Clock:    s.deps.Clock,
		Logger:   s.deps.Logger,
	})
	if err := s.deps.Registry.Add(live); err != nil {
		s.closeRecord(row.SessionID, models.EndReasonDisconnect)
		s.restoreCredit(userID, row.SessionID, "session already live")
		return nil, utils.E(utils.CodeConflict, op, "session is already live", err)
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.SessionOpened()
	}

	timeout := s.deps.Clock.AfterFunc(s.cfg.StartTimeout, func() {
		if !live.Started() {
			_, _ = live.End(context.Background(), models.EndReasonDisconnect)
		}
	})
	go s.reap(live, timeout)

	return row, nil
}

// reap drops an ended controller from the registry once its in-flight turns
// have returned. Sessions that never started produce no report, so their
// record is closed and their credit handed back here.
func (s *interviewService) reap(live *interview.Session, timeout interview.Stopper) {
	<-live.Done()
	timeout.Stop()
	live.Wait()
	s.deps.Registry.Remove(live)
	if s.deps.Metrics != nil {
		s.deps.Metrics.SessionClosed()
	}

	if live.Started() {
		return
	}
	report, _ := live.End(context.Background(), models.EndReasonDisconnect)
	s.closeRecord(live.ID(), report.EndReason)
	s.restoreCredit(live.UserID(), live.ID(), "session never started")
}

func (s *interviewService) closeRecord(sessionID, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.deps.Sessions.End(ctx, sessionID, reason, 0, nil); err != nil {
		s.deps.Logger.WithError(err).WithField("session_id", sessionID).Warn("failed to close unstarted session")
	}
}

// restoreCredit gives back the credit Open charged for a session that never
// ran an interview.
func (s *interviewService) restoreCredit(userID, sessionID, why string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	entry := s.deps.Logger.WithFields(logrus.Fields{"user_id": userID, "session_id": sessionID, "reason": why})
	if _, err := s.deps.Credits.Grant(ctx, userID, 1); err != nil {
		entry.WithError(err).Error("failed to restore session credit")
		return
	}
	entry.Info("session credit restored")
}

func (s *interviewService) Live(sessionID, userID string) (*interview.Session, error) {
	const op = "InterviewService.Live"

	live, ok := s.deps.Registry.Get(sessionID)
	if !ok || live.Ended() {
		return nil, utils.E(utils.CodeNotFound, op, "session is not live", utils.ErrNotFound)
	}
	if live.UserID() != userID {
		return nil, utils.E(utils.CodeForbidden, op, "session belongs to another user", nil)
	}
	return live, nil
}

func (s *interviewService) End(ctx context.Context, sessionID, userID, reason string) (*models.InterviewReport, error) {
	const op = "InterviewService.End"

	if reason == "" {
		reason = models.EndReasonUser
	}

	if live, ok := s.deps.Registry.Get(sessionID); ok {
		if live.UserID() != userID {
			return nil, utils.E(utils.CodeForbidden, op, "session belongs to another user", nil)
		}
		report, err := live.End(ctx, reason)
		if err != nil {
			return &report, utils.E(utils.CodeInternal, op, "failed to save report", err)
		}
		return &report, nil
	}

	row, err := s.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if row.UserID != userID {
		return nil, utils.E(utils.CodeForbidden, op, "session belongs to another user", nil)
	}
	if row.Status == models.SessionActive {
		if _, err := s.deps.Sessions.End(ctx, sessionID, reason, 0, nil); err != nil && !errors.Is(err, utils.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

func (s *interviewService) Shutdown(ctx context.Context) {
	s.deps.Registry.EndAll(ctx, models.EndReasonDisconnect)
}
