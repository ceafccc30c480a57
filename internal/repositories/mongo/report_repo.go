package mongo

import (
	"context"
	"errors"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ReportRepository interface {
	Upsert(ctx context.Context, r *models.InterviewReport) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.InterviewReport, error)
}

type reportRepo struct {
	col *mongo.Collection
}

func NewReportRepo(db *mongo.Database) ReportRepository {
	return &reportRepo{col: db.Collection("interview_reports")}
}

// Upsert keys on session_id so a redelivered stream message does not duplicate
// the report.
func (r *reportRepo) Upsert(ctx context.Context, rep *models.InterviewReport) error {
	_, err := r.col.ReplaceOne(ctx,
		bson.M{"session_id": rep.SessionID},
		rep,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *reportRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.InterviewReport, error) {
	var out models.InterviewReport
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &out, err
}
