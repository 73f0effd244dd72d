package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/swishview/campaigns"
	"github.com/jrsteele09/swishview/campaigns/sqlite"
	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, now *time.Time) (*sqlite.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swishview.db")
	store, err := sqlite.Open(context.Background(), path, sqlite.WithNowTime(func() time.Time { return *now }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func fields(title string) campaigns.Fields {
	return campaigns.Fields{
		Title:        title,
		TargetViews:  10000,
		Budget:       campaigns.Dollars(50),
		DurationDays: 7,
		VideoURL:     "https://example.com/video.mp4",
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := sqlite.Open(context.Background(), " ")
	require.Error(t, err)
}

func TestCreateAndGet(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store, _ := openTestStore(t, &now)
	ctx := context.Background()

	created, err := store.Create(ctx, "owner-a", fields("Launch"))
	require.NoError(t, err)
	require.Equal(t, campaigns.StatusPending, created.Status)
	require.Zero(t, created.CurrentViews)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created, got)

	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrCampaignNotFound)
}

func TestListByOwnerNewestFirst(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store, _ := openTestStore(t, &now)
	ctx := context.Background()

	first, err := store.Create(ctx, "owner-a", fields("first"))
	require.NoError(t, err)
	now = now.Add(time.Second)
	second, err := store.Create(ctx, "owner-a", fields("second"))
	require.NoError(t, err)
	_, err = store.Create(ctx, "owner-b", fields("other"))
	require.NoError(t, err)

	list, err := store.ListByOwner(ctx, "owner-a")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID)
	require.Equal(t, first.ID, list[1].ID)

	empty, err := store.ListByOwner(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestUpdateIsGuardedByStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store, _ := openTestStore(t, &now)
	ctx := context.Background()

	c, err := store.Create(ctx, "owner-a", fields("Launch"))
	require.NoError(t, err)

	now = now.Add(time.Hour)
	active := campaigns.StatusActive
	activatedAt := now
	updated, err := store.Update(ctx, c.ID, campaigns.Update{
		ExpectStatus: campaigns.StatusPending,
		Status:       &active,
		ActivatedAt:  &activatedAt,
	})
	require.NoError(t, err)
	require.Equal(t, campaigns.StatusActive, updated.Status)
	require.Equal(t, now, updated.UpdatedAt)
	require.Equal(t, now, *updated.ActivatedAt)

	_, err = store.Update(ctx, c.ID, campaigns.Update{ExpectStatus: campaigns.StatusPending, Status: &active})
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	views := int64(1234)
	updated, err = store.Update(ctx, c.ID, campaigns.Update{CurrentViews: &views})
	require.NoError(t, err)
	require.Equal(t, views, updated.CurrentViews)

	running, err := store.ListByStatus(ctx, campaigns.StatusActive, campaigns.StatusPaused)
	require.NoError(t, err)
	require.Len(t, running, 1)
	require.Equal(t, c.ID, running[0].ID)

	_, err = store.Update(ctx, "missing", campaigns.Update{})
	require.ErrorIs(t, err, apperrors.ErrCampaignNotFound)
}

func TestReopenKeepsData(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store, path := openTestStore(t, &now)
	ctx := context.Background()

	c, err := store.Create(ctx, "owner-a", fields("Launch"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "Launch", got.Title)
}

func TestCheckConstraintsRejectInvalidRows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store, _ := openTestStore(t, &now)

	bad := fields("bad")
	bad.TargetViews = 0
	_, err := store.Create(context.Background(), "owner-a", bad)
	require.ErrorIs(t, err, apperrors.ErrInvalidField)
}
