package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/utils"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.UserCredits{}, &models.ConversationLog{}, &models.CVFile{}))
	return db
}

// memSessionRepo is an in-memory SessionRepository.
type memSessionRepo struct {
	mu   sync.Mutex
	rows map[string]models.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{rows: map[string]models.Session{}}
}

func (r *memSessionRepo) Create(_ context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[s.SessionID] = *s
	return nil
}

func (r *memSessionRepo) GetBySessionID(_ context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &s, nil
}

func (r *memSessionRepo) ListByUser(_ context.Context, userID string, _ int64) ([]models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Session
	for _, s := range r.rows {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSessionRepo) End(_ context.Context, id string, endedAt time.Time, dur int64, reason string, refund *models.RefundResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok || s.Status != models.SessionActive {
		return nil
	}
	s.Status = models.SessionEnded
	s.EndedAt = &endedAt
	s.DurationSeconds = dur
	s.EndReason = reason
	s.Refund = refund
	r.rows[id] = s
	return nil
}

type memReportRepo struct {
	mu   sync.Mutex
	rows map[string]models.InterviewReport
}

func (r *memReportRepo) Upsert(_ context.Context, rep *models.InterviewReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rows == nil {
		r.rows = map[string]models.InterviewReport{}
	}
	r.rows[rep.SessionID] = *rep
	return nil
}

func (r *memReportRepo) GetBySessionID(_ context.Context, id string) (*models.InterviewReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.rows[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &rep, nil
}

const (
	testUser    = "0b6f7c1e-2a9d-4c55-8f13-6e2d1a4b9c70"
	testSession = "5e3a9b2c-7d41-4f68-a0c2-19b8e6f4d350"
)
