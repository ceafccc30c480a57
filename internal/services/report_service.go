package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoointerview/internal/models"
	mongorepo "github.com/yoockh/yoointerview/internal/repositories/mongo"
	"github.com/yoockh/yoointerview/internal/utils"
)

const ReportStream = "interview:reports"

// ReportService hands finished sessions to the report workers and persists
// what they read back.
type ReportService interface {
	// SaveReport enqueues r on the report stream.
	SaveReport(ctx context.Context, r models.InterviewReport) error
	// Persist stores r, closes the session record and copies the
	// conversation into the conversation log.
	Persist(ctx context.Context, r models.InterviewReport) error
	Get(ctx context.Context, sessionID string) (*models.InterviewReport, error)
}

type reportService struct {
	rdb      *redis.Client
	stream   string
	reports  mongorepo.ReportRepository
	sessions SessionService
	convos   ConversationService
	log      *logrus.Logger
}

func NewReportService(rdb *redis.Client, reports mongorepo.ReportRepository, sessions SessionService, convos ConversationService, log *logrus.Logger) ReportService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &reportService{
		rdb:      rdb,
		stream:   ReportStream,
		reports:  reports,
		sessions: sessions,
		convos:   convos,
		log:      log,
	}
}

func (s *reportService) SaveReport(ctx context.Context, r models.InterviewReport) error {
	const op = "ReportService.SaveReport"

	if r.SessionID == "" || r.UserID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id and user_id are required", nil)
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to encode report", err)
	}

	if err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]any{
			"session_id": r.SessionID,
			"user_id":    r.UserID,
			"payload":    string(payload),
		},
	}).Err(); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to enqueue report", err)
	}
	return nil
}

func (s *reportService) Persist(ctx context.Context, r models.InterviewReport) error {
	const op = "ReportService.Persist"

	if r.SessionID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if err := s.reports.Upsert(ctx, &r); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to store report", err)
	}

	if _, err := s.sessions.End(ctx, r.SessionID, r.EndReason, r.DurationSeconds, r.Refund); err != nil {
		if !utils.IsCode(err, utils.CodeNotFound) {
			return err
		}
		s.log.WithField("session_id", r.SessionID).Warn("report for unknown session")
	}

	var errs []error
	for _, m := range r.Messages {
		if err := s.convos.AppendMessage(ctx, r.UserID, r.SessionID, m); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return utils.E(utils.CodeInternal, op, "failed to copy conversation", errors.Join(errs...))
	}
	return nil
}

func (s *reportService) Get(ctx context.Context, sessionID string) (*models.InterviewReport, error) {
	const op = "ReportService.Get"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	out, err := s.reports.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "report not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get report", err)
	}
	return out, nil
}

// DecodeReport reads a report back from a stream message.
func DecodeReport(values map[string]any) (models.InterviewReport, error) {
	var r models.InterviewReport
	raw, _ := values["payload"].(string)
	if raw == "" {
		return r, errors.New("missing payload")
	}
	err := json.Unmarshal([]byte(raw), &r)
	return r, err
}
