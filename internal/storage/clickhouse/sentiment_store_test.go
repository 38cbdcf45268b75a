package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crptrix-feature-lab/internal/domain"
	"crptrix-feature-lab/internal/storage"
)

func TestSentimentStore_IDsContinueAcrossBatches(t *testing.T) {
	conn := setupTestDB(t)

	ctx := context.Background()
	store := NewSentimentStore(conn)

	first := []*domain.SentimentObservation{
		{Symbol: "BTC", TimestampMs: 100, Score: 0.3, Source: "a"},
		{Symbol: "BTC", TimestampMs: 100, Score: -0.3, Source: "b"},
	}
	require.NoError(t, store.InsertBulk(ctx, first))
	assert.Equal(t, int64(1), first[0].ID)
	assert.Equal(t, int64(2), first[1].ID)

	second := []*domain.SentimentObservation{
		{Symbol: "BTC", TimestampMs: 50, Score: 0.9, Source: "c"},
	}
	require.NoError(t, store.InsertBulk(ctx, second))
	assert.Equal(t, int64(3), second[0].ID)

	got, err := store.GetBySymbol(ctx, "BTC")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, int64(1), got[1].ID)
	assert.Equal(t, int64(2), got[2].ID)
	assert.InDelta(t, -0.3, got[2].Score, 1e-9)
	assert.Equal(t, "b", got[2].Source)
}

func TestSentimentStore_InvalidScore(t *testing.T) {
	conn := setupTestDB(t)

	err := NewSentimentStore(conn).InsertBulk(context.Background(), []*domain.SentimentObservation{
		{Symbol: "BTC", TimestampMs: 0, Score: -1.01},
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
