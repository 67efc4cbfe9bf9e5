package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"applypilot/internal/domain"
	"applypilot/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "applypilot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInsertPostingIfNew(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p := domain.Posting{
		PortalID:    "4021337",
		Title:       "Go Engineer",
		CompanyName: "Acme",
		LocationRaw: "Remote",
		WorkMode:    "Remote",
		URL:         "https://example.com/jobs/4021337",
		Source:      "search",
	}

	added, err := db.InsertPostingIfNew(ctx, p)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = db.InsertPostingIfNew(ctx, p)
	require.NoError(t, err)
	assert.False(t, added)
}

func TestSetOutcomeAndList(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		_, err := db.InsertPostingIfNew(ctx, domain.Posting{
			PortalID: id, Title: "t" + id, CompanyName: "c", LocationRaw: "l",
			WorkMode: "Unknown", URL: "u", Source: "search",
		})
		require.NoError(t, err)
	}

	require.NoError(t, db.SetOutcome(ctx, "2", domain.StatusApplied, "", 40, 82, []string{"go", "backend"}))
	require.NoError(t, db.SetOutcome(ctx, "3", domain.StatusSkipped, "below_min_score", 5, 0, nil))

	applied, err := db.ListPostings(ctx, domain.StatusApplied, 10)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "2", applied[0].PortalID)
	assert.Equal(t, 82, applied[0].FitScore)
	assert.Equal(t, []string{"go", "backend"}, applied[0].Tags)

	counts, err := db.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.StatusApplied])
	assert.Equal(t, 1, counts[domain.StatusSkipped])
	assert.Equal(t, 1, counts["seen"])
}
