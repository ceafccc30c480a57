package services

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/yoointerview/internal/models"
	mongorepo "github.com/yoockh/yoointerview/internal/repositories/mongo"
	"github.com/yoockh/yoointerview/internal/utils"

	"github.com/google/uuid"
)

type SessionService interface {
	Start(ctx context.Context, userID, plan string, settings models.InterviewSettings) (*models.Session, error)
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	ListByUser(ctx context.Context, userID string, limit int64) ([]models.Session, error)
	End(ctx context.Context, sessionID, reason string, durationSeconds int64, refund *models.RefundResult) (*models.Session, error)
}

type sessionService struct {
	sessions mongorepo.SessionRepository
}

func NewSessionService(sessions mongorepo.SessionRepository) SessionService {
	return &sessionService{sessions: sessions}
}

func (s *sessionService) Start(ctx context.Context, userID, plan string, settings models.InterviewSettings) (*models.Session, error) {
	const op = "SessionService.Start"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if !models.ValidInterviewType(settings.Type) || !models.ValidDifficulty(settings.Difficulty) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "settings.type or settings.difficulty is invalid", nil)
	}
	if plan == "" {
		plan = models.PlanFree
	}

	session := &models.Session{
		SessionID: uuid.NewString(),
		UserID:    userID,
		Plan:      plan,
		Status:    models.SessionActive,
		Settings:  settings,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}
	return session, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "SessionService.Get"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	out, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	return out, nil
}

func (s *sessionService) ListByUser(ctx context.Context, userID string, limit int64) ([]models.Session, error) {
	const op = "SessionService.ListByUser"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	out, err := s.sessions.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list sessions", err)
	}
	return out, nil
}

// End marks the stored session ended. Ending an already ended session returns
// it unchanged.
func (s *sessionService) End(ctx context.Context, sessionID, reason string, durationSeconds int64, refund *models.RefundResult) (*models.Session, error) {
	const op = "SessionService.End"

	if sessionID == "" || reason == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id and reason are required", nil)
	}

	ss, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if ss.Status == models.SessionEnded {
		return ss, nil
	}
	if durationSeconds < 0 {
		durationSeconds = 0
	}

	now := time.Now().UTC()
	if err := s.sessions.End(ctx, sessionID, now, durationSeconds, reason, refund); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to end session", err)
	}

	ss.Status = models.SessionEnded
	ss.EndedAt = &now
	ss.DurationSeconds = durationSeconds
	ss.EndReason = reason
	ss.Refund = refund
	return ss, nil
}
