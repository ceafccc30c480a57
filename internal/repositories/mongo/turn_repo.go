package mongo

import (
	"context"
	"time"

	"github.com/yoockh/yoointerview/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TurnRepository interface {
	Insert(ctx context.Context, t *models.TurnRecord) error
	UpdateSTT(ctx context.Context, sessionID string, turn int64, rawText string, confidence float64, status string) error
	UpdateLLM(ctx context.Context, sessionID string, turn int64, response, provider, status string, processingMS int64) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TurnRecord, error)
}

type turnRepo struct {
	col *mongo.Collection
}

func NewTurnRepo(db *mongo.Database) TurnRepository {
	return &turnRepo{col: db.Collection("realtime_buffer")}
}

func (r *turnRepo) Insert(ctx context.Context, t *models.TurnRecord) error {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, t)
	return err
}

func (r *turnRepo) UpdateSTT(ctx context.Context, sessionID string, turn int64, rawText string, confidence float64, status string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "turn_index": turn},
		bson.M{"$set": bson.M{
			"raw_text":       rawText,
			"stt_confidence": confidence,
			"stt_status":     status,
		}},
	)
	return err
}

func (r *turnRepo) UpdateLLM(ctx context.Context, sessionID string, turn int64, response, provider, status string, processingMS int64) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "turn_index": turn},
		bson.M{"$set": bson.M{
			"llm_response":       response,
			"llm_provider":       provider,
			"llm_status":         status,
			"processing_time_ms": processingMS,
		}},
	)
	return err
}

func (r *turnRepo) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TurnRecord, error) {
	if limit <= 0 {
		limit = 200
	}

	cur, err := r.col.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().
			SetSort(bson.D{{Key: "turn_index", Value: 1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.TurnRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
