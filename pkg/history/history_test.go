package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/newswatch/pkg/domain"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, j.Close()) })
	return j
}

func TestJournal_SaveRun(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	stats := domain.RunStats{
		StartedAt:    time.Now().Add(-time.Minute),
		FinishedAt:   time.Now(),
		ItemsFetched: 42,
		ItemsMatched: 2,
		FeedsFailed:  1,
	}
	matches := []domain.Match{
		{Item: domain.Item{Source: domain.SourceFeed, Title: "first", URL: "http://a/1"}, Keyword: "IPTV"},
		{Item: domain.Item{Source: domain.SourceSearch, Title: "second", URL: "http://b/2"}, Keyword: "pirata"},
	}

	runID, err := j.SaveRun(ctx, stats, matches)
	require.NoError(t, err)
	assert.Positive(t, runID)

	runs, err := j.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, 42, runs[0].ItemsFetched)
	assert.Equal(t, 2, runs[0].ItemsMatched)
	assert.Equal(t, 1, runs[0].FeedsFailed)

	entries, err := j.Entries(ctx, runID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "feed", entries[0].Source)
	assert.Equal(t, "IPTV", entries[0].Keyword)
	assert.Equal(t, "http://b/2", entries[1].URL)
}

func TestJournal_SaveRunEmptyMatches(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	runID, err := j.SaveRun(ctx, domain.RunStats{StartedAt: time.Now(), FinishedAt: time.Now()}, nil)
	require.NoError(t, err)

	entries, err := j.Entries(ctx, runID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJournal_RecentRunsOrder(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := j.SaveRun(ctx, domain.RunStats{
			StartedAt:    time.Now(),
			FinishedAt:   time.Now(),
			ItemsFetched: i,
		}, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := j.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID, "newest first")
	assert.Equal(t, ids[1], runs[1].ID)
}

func TestNew_Errors(t *testing.T) {
	t.Run("empty dsn", func(t *testing.T) {
		_, err := New("")
		require.Error(t, err)
	})

	t.Run("bad path", func(t *testing.T) {
		_, err := New(filepath.Join(t.TempDir(), "no-such-dir", "history.db"))
		require.Error(t, err)
	})
}

func TestJournal_SaveRunClosedStopsRetrying(t *testing.T) {
	j, err := New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	_, err = j.SaveRun(context.Background(), domain.RunStats{StartedAt: time.Now(), FinishedAt: time.Now()}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errCritical, "a closed database is not a lock error, no retries")
}

func TestCriticalError(t *testing.T) {
	inner := fmt.Errorf("insert run: boom")
	err := error(&criticalError{err: inner})

	assert.ErrorIs(t, err, errCritical)
	assert.EqualError(t, err, "insert run: boom")
	assert.Equal(t, inner, errors.Unwrap(err))
}

func TestIsLockError(t *testing.T) {
	assert.False(t, isLockError(nil))
	assert.True(t, isLockError(fmt.Errorf("SQLITE_BUSY: database is busy")))
	assert.True(t, isLockError(fmt.Errorf("database is locked")))
	assert.False(t, isLockError(fmt.Errorf("syntax error")))
}
