package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoointerview/internal/cache"
	"github.com/yoockh/yoointerview/internal/models"
	pgrepo "github.com/yoockh/yoointerview/internal/repositories/postgres"
	"github.com/yoockh/yoointerview/internal/utils"
)

type CreditService interface {
	Me(ctx context.Context, userID string) (*models.UserCredits, error)
	// Consume takes the credit of one session. It creates the account with the
	// starting balance on first use.
	Consume(ctx context.Context, userID string) (*models.UserCredits, error)
	Grant(ctx context.Context, userID string, n int) (*models.UserCredits, error)
	RefundEarlyDisconnect(ctx context.Context, userID string) (models.RefundResult, error)
}

type CreditConfig struct {
	StartingCredits int
	MaxEarlyRefunds int
	CacheTTL        time.Duration
}

type creditService struct {
	credits pgrepo.CreditRepository
	cache   cache.Cache
	cfg     CreditConfig
	log     *logrus.Logger
}

func NewCreditService(credits pgrepo.CreditRepository, c cache.Cache, cfg CreditConfig, log *logrus.Logger) CreditService {
	if cfg.MaxEarlyRefunds <= 0 {
		cfg.MaxEarlyRefunds = 3
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &creditService{credits: credits, cache: c, cfg: cfg, log: log}
}

func creditKey(userID string) string { return "credits:" + userID }

func (s *creditService) Me(ctx context.Context, userID string) (*models.UserCredits, error) {
	const op = "CreditService.Me"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	if s.cache != nil {
		var cached models.UserCredits
		if hit, err := s.cache.GetJSON(ctx, creditKey(userID), &cached); err == nil && hit {
			return &cached, nil
		}
	}

	row, err := s.load(ctx, userID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load credits", err)
	}
	s.store(ctx, row)
	return row, nil
}

func (s *creditService) Consume(ctx context.Context, userID string) (*models.UserCredits, error) {
	const op = "CreditService.Consume"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if err := s.credits.EnsureAccount(ctx, s.newAccount(userID)); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to open credit account", err)
	}

	ok, err := s.credits.Consume(ctx, userID, 1)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to consume credit", err)
	}
	s.invalidate(ctx, userID)
	if !ok {
		return nil, utils.E(utils.CodeForbidden, op, "insufficient credits", nil)
	}

	row, err := s.credits.Get(ctx, userID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load credits", err)
	}
	return row, nil
}

func (s *creditService) Grant(ctx context.Context, userID string, n int) (*models.UserCredits, error) {
	const op = "CreditService.Grant"

	if userID == "" || n <= 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required and credits must be > 0", nil)
	}
	if err := s.credits.EnsureAccount(ctx, s.newAccount(userID)); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to open credit account", err)
	}
	if err := s.credits.Grant(ctx, userID, n); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to grant credits", err)
	}
	s.invalidate(ctx, userID)

	row, err := s.credits.Get(ctx, userID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load credits", err)
	}
	return row, nil
}

// RefundEarlyDisconnect returns one credit for a session that ended early,
// at most MaxEarlyRefunds times per user.
func (s *creditService) RefundEarlyDisconnect(ctx context.Context, userID string) (models.RefundResult, error) {
	const op = "CreditService.RefundEarlyDisconnect"

	if userID == "" {
		return models.RefundResult{}, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	res, err := s.credits.RefundEarlyDisconnect(ctx, userID, s.cfg.MaxEarlyRefunds)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return models.RefundResult{}, utils.E(utils.CodeNotFound, op, "credit account not found", err)
		}
		return models.RefundResult{}, utils.E(utils.CodeInternal, op, "failed to refund credit", err)
	}
	s.invalidate(ctx, userID)

	s.log.WithFields(logrus.Fields{
		"user_id":          userID,
		"refunded":         res.Refunded,
		"disconnect_count": res.DisconnectCount,
	}).Info("early disconnect refund")
	return res, nil
}

func (s *creditService) load(ctx context.Context, userID string) (*models.UserCredits, error) {
	row, err := s.credits.Get(ctx, userID)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, utils.ErrNotFound) {
		return nil, err
	}
	acct := s.newAccount(userID)
	if err := s.credits.EnsureAccount(ctx, acct); err != nil {
		return nil, err
	}
	return s.credits.Get(ctx, userID)
}

func (s *creditService) newAccount(userID string) *models.UserCredits {
	return &models.UserCredits{
		UserID:  userID,
		Plan:    models.PlanFree,
		Credits: s.cfg.StartingCredits,
	}
}

func (s *creditService) store(ctx context.Context, row *models.UserCredits) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, creditKey(row.UserID), row, s.cfg.CacheTTL); err != nil {
		s.log.WithError(err).WithField("user_id", row.UserID).Warn("credit cache write failed")
	}
}

func (s *creditService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, creditKey(userID)); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("credit cache invalidation failed")
	}
}
