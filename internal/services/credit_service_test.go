package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoointerview/internal/cache"
	pgrepo "github.com/yoockh/yoointerview/internal/repositories/postgres"
	"github.com/yoockh/yoointerview/internal/utils"
)

func newCreditService(t *testing.T, starting int) (CreditService, func(string) bool) {
	t.Helper()
	mr, rdb := setupTestRedis(t)
	svc := NewCreditService(pgrepo.NewCreditRepo(setupTestDB(t)), cache.NewRedisCache(rdb), CreditConfig{StartingCredits: starting}, nil)
	return svc, func(key string) bool { return mr.Exists("cache:" + key) }
}

func TestCreditService_ConsumeUntilEmpty(t *testing.T) {
	svc, _ := newCreditService(t, 2)
	ctx := context.Background()

	row, err := svc.Consume(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, row.Credits)

	row, err = svc.Consume(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 0, row.Credits)

	_, err = svc.Consume(ctx, testUser)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeForbidden))
}

func TestCreditService_MeIsCachedAndInvalidated(t *testing.T) {
	svc, exists := newCreditService(t, 3)
	ctx := context.Background()

	row, err := svc.Me(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 3, row.Credits)
	assert.True(t, exists(creditKey(testUser)))

	_, err = svc.Consume(ctx, testUser)
	require.NoError(t, err)
	assert.False(t, exists(creditKey(testUser)))

	row, err = svc.Me(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 2, row.Credits)
}

func TestCreditService_RefundEarlyDisconnect(t *testing.T) {
	svc, _ := newCreditService(t, 1)
	ctx := context.Background()

	_, err := svc.Consume(ctx, testUser)
	require.NoError(t, err)

	for i := 1; i <= 4; i++ {
		res, err := svc.RefundEarlyDisconnect(ctx, testUser)
		require.NoError(t, err)
		assert.Equal(t, i, res.DisconnectCount)
		if i <= 3 {
			assert.Equal(t, 1, res.Refunded, "disconnect %d", i)
		} else {
			assert.Zero(t, res.Refunded, "disconnect %d", i)
		}
	}

	row, err := svc.Me(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 3, row.Credits)
}

func TestCreditService_RefundWithoutAccount(t *testing.T) {
	svc, _ := newCreditService(t, 1)
	_, err := svc.RefundEarlyDisconnect(context.Background(), testUser)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestCreditService_Grant(t *testing.T) {
	svc, _ := newCreditService(t, 0)
	ctx := context.Background()

	_, err := svc.Grant(ctx, testUser, 0)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	row, err := svc.Grant(ctx, testUser, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, row.Credits)
}
