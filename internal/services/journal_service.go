package services

import (
	"context"
	"time"

	"github.com/yoockh/yoointerview/internal/models"
	mongorepo "github.com/yoockh/yoointerview/internal/repositories/mongo"
	"github.com/yoockh/yoointerview/internal/utils"
)

// JournalService records every turn of a session with its STT and LLM status.
type JournalService interface {
	OpenTurn(ctx context.Context, sessionID string, turn int64, source, mimeType string, audioBytes int) error
	MarkSTT(ctx context.Context, sessionID string, turn int64, rawText string, confidence float64, status string) error
	MarkLLM(ctx context.Context, sessionID string, turn int64, response, provider, status string, processingMS int64) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TurnRecord, error)
}

type journalService struct {
	turns mongorepo.TurnRepository
	ttl   time.Duration
}

func NewJournalService(turns mongorepo.TurnRepository, ttl time.Duration) JournalService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &journalService{turns: turns, ttl: ttl}
}

func (s *journalService) OpenTurn(ctx context.Context, sessionID string, turn int64, source, mimeType string, audioBytes int) error {
	const op = "JournalService.OpenTurn"

	if sessionID == "" || turn <= 0 {
		return utils.E(utils.CodeInvalidArgument, op, "session_id is required and turn must be > 0", nil)
	}

	now := time.Now().UTC()
	rec := &models.TurnRecord{
		SessionID:  sessionID,
		TurnIndex:  turn,
		Source:     source,
		MimeType:   mimeType,
		AudioBytes: audioBytes,
		STTStatus:  models.StatusPending,
		LLMStatus:  models.StatusPending,
		Timestamp:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if err := s.turns.Insert(ctx, rec); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to insert turn record", err)
	}
	return nil
}

func (s *journalService) MarkSTT(ctx context.Context, sessionID string, turn int64, rawText string, confidence float64, status string) error {
	const op = "JournalService.MarkSTT"

	if sessionID == "" || turn <= 0 || status == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id, turn (>0), and status are required", nil)
	}
	if err := s.turns.UpdateSTT(ctx, sessionID, turn, rawText, confidence, status); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to update stt fields", err)
	}
	return nil
}

func (s *journalService) MarkLLM(ctx context.Context, sessionID string, turn int64, response, provider, status string, processingMS int64) error {
	const op = "JournalService.MarkLLM"

	if sessionID == "" || turn <= 0 || status == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id, turn (>0), and status are required", nil)
	}
	if err := s.turns.UpdateLLM(ctx, sessionID, turn, response, provider, status, processingMS); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to update llm fields", err)
	}
	return nil
}

func (s *journalService) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TurnRecord, error) {
	const op = "JournalService.ListBySession"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	out, err := s.turns.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list turns", err)
	}
	return out, nil
}
