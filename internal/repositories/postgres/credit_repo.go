package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreditRepository interface {
	Get(ctx context.Context, userID string) (*models.UserCredits, error)
	// EnsureAccount inserts row unless the user already has one.
	EnsureAccount(ctx context.Context, row *models.UserCredits) error
	// Consume takes n credits; ok is false when the balance is too low.
	Consume(ctx context.Context, userID string, n int) (ok bool, err error)
	Grant(ctx context.Context, userID string, n int) error
	RefundEarlyDisconnect(ctx context.Context, userID string, maxRefunds int) (models.RefundResult, error)
}

type creditRepo struct {
	db *gorm.DB
}

func NewCreditRepo(db *gorm.DB) CreditRepository {
	return &creditRepo{db: db}
}

func (r *creditRepo) Get(ctx context.Context, userID string) (*models.UserCredits, error) {
	var row models.UserCredits
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *creditRepo) EnsureAccount(ctx context.Context, row *models.UserCredits) error {
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(row).Error
}

func (r *creditRepo) Consume(ctx context.Context, userID string, n int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.UserCredits{}).
		Where("user_id = ? AND credits >= ?", userID, n).
		Updates(map[string]any{
			"credits":    gorm.Expr("credits - ?", n),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *creditRepo) Grant(ctx context.Context, userID string, n int) error {
	res := r.db.WithContext(ctx).
		Model(&models.UserCredits{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"credits":    gorm.Expr("credits + ?", n),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

// RefundEarlyDisconnect counts the disconnect and refunds one credit while the
// count stays within maxRefunds. The counting update holds the row until the
// transaction commits.
func (r *creditRepo) RefundEarlyDisconnect(ctx context.Context, userID string, maxRefunds int) (models.RefundResult, error) {
	var out models.RefundResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&models.UserCredits{}).
			Where("user_id = ?", userID).
			Updates(map[string]any{
				"disconnect_count": gorm.Expr("disconnect_count + 1"),
				"updated_at":       now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrNotFound
		}

		var row models.UserCredits
		if err := tx.Where("user_id = ?", userID).Take(&row).Error; err != nil {
			return err
		}
		out.DisconnectCount = row.DisconnectCount
		if row.DisconnectCount > maxRefunds {
			return nil
		}

		if err := tx.Model(&models.UserCredits{}).
			Where("user_id = ?", userID).
			Update("credits", gorm.Expr("credits + 1")).Error; err != nil {
			return err
		}
		out.Refunded = 1
		return nil
	})
	return out, err
}
