package db

import (
	"context"
	"errors"
	"testing"

	"showmerge/config"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	cfg := &config.Config{
		DBUser:     "merge",
		DBPassword: "p@ss",
		DBHost:     "db.internal",
		DBPort:     "3306",
		DBName:     "showmerge",
	}

	dsn := DSN(cfg)
	assert.Contains(t, dsn, "merge:p@ss@tcp(db.internal:3306)/showmerge?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

type fakeIncr struct {
	counts map[string]int64
	err    error
}

func (f *fakeIncr) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func TestRevisionCounter(t *testing.T) {
	c := &RevisionCounter{client: &fakeIncr{counts: map[string]int64{}}}

	n, err := c.Next(context.Background(), "showmerge:revision:a/b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.Next(context.Background(), "showmerge:revision:a/b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = c.Next(context.Background(), "showmerge:revision:other")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRevisionCounter_Error(t *testing.T) {
	c := &RevisionCounter{client: &fakeIncr{err: errors.New("connection refused")}}

	_, err := c.Next(context.Background(), "k")
	assert.ErrorContains(t, err, "connection refused")
}
