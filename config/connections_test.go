package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisOptions(t *testing.T) {
	opt, err := redisOptions("localhost:6380")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opt.Addr)

	opt, err = redisOptions("redis://:secret@cache.internal:6379/2")
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6379", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 2, opt.DB)

	_, err = redisOptions("redis://cache.internal:6379/not-a-db")
	assert.Error(t, err)
}

func TestMongoIndexes_UniqueKeys(t *testing.T) {
	idx := mongoIndexes()
	require.Contains(t, idx, "interview_reports")
	require.Contains(t, idx, "realtime_buffer")

	names := map[string]bool{}
	for _, models := range idx {
		for _, m := range models {
			require.NotNil(t, m.Options.Name)
			assert.False(t, names[*m.Options.Name], "duplicate index name %s", *m.Options.Name)
			names[*m.Options.Name] = true
		}
	}
	assert.True(t, names["uniq_report_session"])
	assert.True(t, names["ttl_expires_at"])
}
