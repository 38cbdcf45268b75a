package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crptrix-feature-lab/internal/domain"
	"crptrix-feature-lab/internal/storage"
)

func TestSentimentStore_InsertBulkAssignsIDs(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewSentimentStore(pool)

	obs := []*domain.SentimentObservation{
		{Symbol: "BTC", TimestampMs: hourMs, Score: 0.5, Source: "wire"},
		{Symbol: "BTC", TimestampMs: hourMs, Score: -0.5, Source: "wire"},
		{Symbol: "BTC", TimestampMs: 0, Score: 0.1, Source: "blog"},
	}
	require.NoError(t, store.InsertBulk(ctx, obs))

	assert.NotZero(t, obs[0].ID)
	assert.Greater(t, obs[1].ID, obs[0].ID)
	assert.Greater(t, obs[2].ID, obs[1].ID)

	got, err := store.GetBySymbol(ctx, "BTC")
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Ordered by timestamp, then ingestion ID for ties.
	assert.Equal(t, int64(0), got[0].TimestampMs)
	assert.Equal(t, obs[0].ID, got[1].ID)
	assert.InDelta(t, 0.5, got[1].Score, 1e-9)
	assert.Equal(t, obs[1].ID, got[2].ID)
	assert.Equal(t, "wire", got[2].Source)
}

func TestSentimentStore_InvalidScoreRejected(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewSentimentStore(pool)

	err := store.InsertBulk(ctx, []*domain.SentimentObservation{
		{Symbol: "BTC", TimestampMs: 0, Score: 0.2},
		{Symbol: "BTC", TimestampMs: 0, Score: 1.5},
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	got, err := store.GetBySymbol(ctx, "BTC")
	require.NoError(t, err)
	assert.Empty(t, got)
}
