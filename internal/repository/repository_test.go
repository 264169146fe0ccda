package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinTDCT/StoryDraw/internal/db"
	"github.com/JustinTDCT/StoryDraw/internal/lottery"
)

// testDB connects to STORYDRAW_TEST_DATABASE_URL, skipping when unset.
func testDB(t *testing.T) *db.DB {
	t.Helper()
	url := os.Getenv("STORYDRAW_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("STORYDRAW_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	database, err := db.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	_, err = db.Migrate(ctx, database.DB)
	require.NoError(t, err)
	return database
}

func TestRedemptionCountAndIncrement(t *testing.T) {
	database := testDB(t)
	repo := NewRedemptionRepository(database.DB)
	ctx := context.Background()
	visitor := "test-" + uuid.NewString()

	n, err := repo.Count(ctx, visitor)
	require.NoError(t, err)
	assert.Zero(t, n)

	for want := 1; want <= 3; want++ {
		n, err = repo.Increment(ctx, visitor, want-1)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	n, err = repo.Count(ctx, visitor)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRedemptionIncrementRejectsStaleCount(t *testing.T) {
	database := testDB(t)
	repo := NewRedemptionRepository(database.DB)
	ctx := context.Background()
	visitor := "test-" + uuid.NewString()

	_, err := repo.Increment(ctx, visitor, 1)
	require.ErrorIs(t, err, lottery.ErrRedeemCountChanged, "no row yet, count is 0")

	n, err := repo.Increment(ctx, visitor, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.Increment(ctx, visitor, 0)
	require.ErrorIs(t, err, lottery.ErrRedeemCountChanged)

	n, err = repo.Count(ctx, visitor)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEntriesByDraw(t *testing.T) {
	database := testDB(t)
	repo := NewRedemptionRepository(database.DB)
	ctx := context.Background()
	draw := "test-" + uuid.NewString()[:8]

	e := &Entry{VisitorID: "v1", DrawLabel: draw, RedeemCount: 1, SubmittedAt: time.Now().UTC()}
	require.NoError(t, repo.RecordEntry(ctx, e))
	assert.NotEqual(t, uuid.Nil, e.ID)
	// Replaying the same entry id is a no-op.
	require.NoError(t, repo.RecordEntry(ctx, e))
	require.NoError(t, repo.RecordEntry(ctx, &Entry{VisitorID: "v2", DrawLabel: draw, RedeemCount: 1, SubmittedAt: time.Now().UTC()}))

	n, err := repo.CountEntries(ctx, draw)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := repo.ListEntries(ctx, draw, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "v2", list[0].VisitorID)
}

func TestSettingsRoundTrip(t *testing.T) {
	database := testDB(t)
	repo := NewSettingsRepository(database.DB)
	ctx := context.Background()
	key := "test_" + uuid.NewString()[:8]

	v, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, repo.Set(ctx, key, "a"))
	require.NoError(t, repo.Set(ctx, key, "b"))
	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", all[key])

	require.NoError(t, repo.Delete(ctx, key))
	v, err = repo.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, v)
}
