package postlog

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/posturekit/PostureWorker/pkg/posture"
)

func newTestStore(t *testing.T) *Store {
	store, err := NewStore(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// insert adds a sequence of status changes for a user, one minute
// apart.
func insert(t *testing.T, store *Store, username string, statuses ...posture.Status) {
	ctx := context.Background()
	at := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	for _, status := range statuses {
		require.NoError(t, store.InsertStatusChange(ctx, username, at, status))
		at = at.Add(time.Minute)
	}
}

func TestUsernameExists(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	exists, err := store.UsernameExists(ctx, "alice")
	require.NoError(t, err)
	require.False(t, exists)

	insert(t, store, "alice", posture.StatusGood)

	exists, err = store.UsernameExists(ctx, "alice")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = store.UsernameExists(ctx, "bob")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestRecentChanges(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	insert(t, store, "alice", posture.StatusGood, posture.StatusSlouch, posture.StatusGood)
	insert(t, store, "bob", posture.StatusSlouch)

	entries, err := store.RecentChanges(ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first.
	require.Equal(t, posture.StatusGood, entries[0].Status)
	require.Equal(t, posture.StatusSlouch, entries[1].Status)
	require.True(t, entries[0].Time.After(entries[1].Time))
	for _, e := range entries {
		require.Equal(t, "alice", e.Username)
	}
}

func TestUserScores(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	insert(t, store, "alice", posture.StatusGood, posture.StatusGood, posture.StatusSlouch, posture.StatusGood)
	insert(t, store, "bob", posture.StatusSlouch, posture.StatusGood)
	insert(t, store, "carol", posture.StatusSlouch)

	scores, err := store.UserScores(ctx)
	require.NoError(t, err)
	require.Len(t, scores, 3)
	require.Equal(t, "alice", scores[0].Username)
	require.InDelta(t, 0.75, scores[0].Ratio, 1e-9)
	require.Equal(t, "bob", scores[1].Username)
	require.InDelta(t, 0.5, scores[1].Ratio, 1e-9)
	require.Equal(t, "carol", scores[2].Username)
	require.InDelta(t, 0.0, scores[2].Ratio, 1e-9)
}

func TestGenerateReport(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	insert(t, store, "alice", posture.StatusGood, posture.StatusGood)
	insert(t, store, "bob", posture.StatusGood, posture.StatusSlouch)
	insert(t, store, "carol", posture.StatusSlouch)
	insert(t, store, "dave", posture.StatusSlouch, posture.StatusSlouch, posture.StatusGood)

	tests := []struct {
		username   string
		rank       int
		percentile float64
	}{
		{"alice", 1, 100},
		{"bob", 2, 75},
		{"dave", 3, 50},
		{"carol", 4, 25},
	}
	for _, tc := range tests {
		report, err := store.GenerateReport(ctx, tc.username)
		require.NoError(t, err, tc.username)
		require.Equal(t, tc.rank, report.Rank, tc.username)
		require.Equal(t, 4, report.TotalUsers, tc.username)
		require.InDelta(t, tc.percentile, report.Percentile, 1e-9, tc.username)
	}
}

func TestGenerateReportSingleUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	insert(t, store, "alice", posture.StatusSlouch)

	report, err := store.GenerateReport(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 1, report.Rank)
	require.InDelta(t, 100, report.Percentile, 1e-9)
}

func TestGenerateReportUnknownUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	insert(t, store, "alice", posture.StatusGood)

	_, err := store.GenerateReport(ctx, "nobody")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNoData))
}
