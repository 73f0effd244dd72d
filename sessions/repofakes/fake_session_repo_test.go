package fakesessionrepo_test

import (
	"testing"
	"time"

	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/jrsteele09/swishview/sessions"
	fakesessionrepo "github.com/jrsteele09/swishview/sessions/repofakes"
	"github.com/jrsteele09/swishview/users"
	"github.com/stretchr/testify/require"
)

func TestRefreshTokenIndexFollowsUpserts(t *testing.T) {
	repo := fakesessionrepo.NewFakeSessionRepo()
	now := time.Now()

	s := &sessions.Session{ID: "s-1", Principal: users.Principal{ID: "u-1"}, RefreshToken: "r-1", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.Upsert(s))

	got, err := repo.GetByRefreshToken("r-1")
	require.NoError(t, err)
	require.Equal(t, "s-1", got.ID)

	s.RefreshToken = "r-2"
	require.NoError(t, repo.Upsert(s))
	_, err = repo.GetByRefreshToken("r-1")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	got, err = repo.GetByRefreshToken("r-2")
	require.NoError(t, err)
	require.Equal(t, "s-1", got.ID)
}

func TestDeleteExpiredSessions(t *testing.T) {
	repo := fakesessionrepo.NewFakeSessionRepo()
	now := time.Now()

	require.NoError(t, repo.Upsert(&sessions.Session{ID: "old", RefreshToken: "r-old", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, repo.Upsert(&sessions.Session{ID: "new", RefreshToken: "r-new", ExpiresAt: now.Add(time.Hour)}))

	require.NoError(t, repo.DeleteExpiredSessions(now))

	_, err := repo.Get("old")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	_, err = repo.Get("new")
	require.NoError(t, err)
}
