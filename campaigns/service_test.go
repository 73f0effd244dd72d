package campaigns_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/swishview/campaigns"
	fakecampaignrepo "github.com/jrsteele09/swishview/campaigns/repofake"
	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/stretchr/testify/require"
)

const (
	ownerA = "owner-a"
	ownerB = "owner-b"
)

type recordingRecorder struct {
	mu          sync.Mutex
	transitions []string
	violations  []string
	payments    int
}

func (r *recordingRecorder) RecordTransition(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, from+"->"+to)
}

func (r *recordingRecorder) RecordPolicyViolation(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.violations = append(r.violations, reason)
}

func (r *recordingRecorder) RecordSignIn(string)   {}
func (r *recordingRecorder) RecordStaleResponse() {}

func (r *recordingRecorder) RecordPaymentConfirmed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments++
}

type testFixture struct {
	now      time.Time
	repo     *fakecampaignrepo.FakeCampaignRepo
	recorder *recordingRecorder
	service  *campaigns.Service
}

func (f *testFixture) nowTime() time.Time { return f.now }

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		recorder: &recordingRecorder{},
	}
	f.repo = fakecampaignrepo.NewFakeCampaignRepo(fakecampaignrepo.WithNowTime(f.nowTime))
	svc, err := campaigns.NewService(f.repo, campaigns.WithNowTime(f.nowTime), campaigns.WithRecorder(f.recorder))
	require.NoError(t, err)
	f.service = svc
	return f
}

func validFields() campaigns.Fields {
	return campaigns.Fields{
		Title:        "Launch video",
		TargetViews:  10000,
		Budget:       campaigns.Dollars(50),
		DurationDays: 7,
		VideoURL:     "https://www.youtube.com/watch?v=abc123",
	}
}

func (f *testFixture) create(t *testing.T, owner string) *campaigns.Campaign {
	t.Helper()
	c, err := f.service.Create(context.Background(), owner, validFields())
	require.NoError(t, err)
	return c
}

func (f *testFixture) activate(t *testing.T, c *campaigns.Campaign) *campaigns.Campaign {
	t.Helper()
	active, err := f.service.ConfirmPayment(context.Background(), campaigns.PaymentConfirmation{
		CampaignID: c.ID, PayerID: c.OwnerID, Amount: c.Budget,
	})
	require.NoError(t, err)
	return active
}

func TestCreateIsPendingWithZeroViews(t *testing.T) {
	f := setupTestFixture(t)
	c := f.create(t, ownerA)

	require.NotEmpty(t, c.ID)
	require.Equal(t, ownerA, c.OwnerID)
	require.Equal(t, campaigns.StatusPending, c.Status)
	require.Zero(t, c.CurrentViews)
	require.Equal(t, int64(10000), c.TargetViews)
	require.Equal(t, campaigns.Dollars(50), c.Budget)
	require.Equal(t, 7, c.DurationDays)
	require.Equal(t, f.now, c.CreatedAt)
	require.Nil(t, c.ActivatedAt)
}

func TestCreateValidatesFields(t *testing.T) {
	f := setupTestFixture(t)
	mutations := map[string]func(*campaigns.Fields){
		"blank title":       func(fl *campaigns.Fields) { fl.Title = "   " },
		"zero target":       func(fl *campaigns.Fields) { fl.TargetViews = 0 },
		"zero budget":       func(fl *campaigns.Fields) { fl.Budget = 0 },
		"negative duration": func(fl *campaigns.Fields) { fl.DurationDays = -1 },
		"relative url":      func(fl *campaigns.Fields) { fl.VideoURL = "/watch?v=1" },
		"ftp url":           func(fl *campaigns.Fields) { fl.VideoURL = "ftp://example.com/v.mp4" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			fields := validFields()
			mutate(&fields)
			_, err := f.service.Create(context.Background(), ownerA, fields)
			require.ErrorIs(t, err, apperrors.ErrInvalidField)
		})
	}

	_, err := f.service.Create(context.Background(), "", validFields())
	require.True(t, apperrors.IsAuthError(err))
}

func TestListIsOwnerScopedNewestFirst(t *testing.T) {
	f := setupTestFixture(t)
	first := f.create(t, ownerA)
	f.now = f.now.Add(time.Minute)
	second := f.create(t, ownerA)
	other := f.create(t, ownerB)

	list, err := f.service.List(context.Background(), ownerA)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID)
	require.Equal(t, first.ID, list[1].ID)
	for _, c := range list {
		require.NotEqual(t, other.ID, c.ID)
		require.Equal(t, ownerA, c.OwnerID)
	}

	_, err = f.service.Get(context.Background(), ownerA, other.ID)
	require.True(t, apperrors.IsPolicyViolation(err))
	require.ErrorIs(t, err, apperrors.ErrNotOwner)
}

func TestPaymentActivatesOnce(t *testing.T) {
	f := setupTestFixture(t)
	c := f.create(t, ownerA)

	active := f.activate(t, c)
	require.Equal(t, campaigns.StatusActive, active.Status)
	require.NotNil(t, active.ActivatedAt)
	require.Equal(t, f.now, *active.ActivatedAt)

	_, err := f.service.ConfirmPayment(context.Background(), campaigns.PaymentConfirmation{
		CampaignID: c.ID, PayerID: ownerA, Amount: c.Budget,
	})
	require.True(t, apperrors.IsPolicyViolation(err))
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	stored, err := f.repo.Get(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, campaigns.StatusActive, stored.Status)
	require.Equal(t, []string{"pending->active"}, f.recorder.transitions)
	require.Equal(t, 1, f.recorder.payments)
}

func TestPaymentPreconditions(t *testing.T) {
	f := setupTestFixture(t)
	c := f.create(t, ownerA)

	_, err := f.service.ConfirmPayment(context.Background(), campaigns.PaymentConfirmation{
		CampaignID: c.ID, PayerID: ownerB, Amount: c.Budget,
	})
	require.ErrorIs(t, err, apperrors.ErrNotOwner)

	_, err = f.service.ConfirmPayment(context.Background(), campaigns.PaymentConfirmation{
		CampaignID: c.ID, PayerID: ownerA, Amount: c.Budget - 1,
	})
	require.True(t, apperrors.IsPolicyViolation(err))
	require.ErrorIs(t, err, apperrors.ErrPaymentMismatch)

	_, err = f.service.ConfirmPayment(context.Background(), campaigns.PaymentConfirmation{
		CampaignID: "missing", PayerID: ownerA, Amount: c.Budget,
	})
	require.ErrorIs(t, err, apperrors.ErrCampaignNotFound)

	stored, err := f.repo.Get(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, campaigns.StatusPending, stored.Status)
	require.Zero(t, f.recorder.payments)
}

func TestEditOnlyWhilePending(t *testing.T) {
	f := setupTestFixture(t)
	c := f.create(t, ownerA)

	title := "  New title "
	budget := campaigns.Dollars(75)
	edited, err := f.service.Edit(context.Background(), ownerA, c.ID, campaigns.Patch{Title: &title, Budget: &budget})
	require.NoError(t, err)
	require.Equal(t, "New title", edited.Title)
	require.Equal(t, budget, edited.Budget)
	require.Equal(t, campaigns.StatusPending, edited.Status)

	_, err = f.service.Edit(context.Background(), ownerB, c.ID, campaigns.Patch{Title: &title})
	require.ErrorIs(t, err, apperrors.ErrNotOwner)

	bad := "not a url"
	_, err = f.service.Edit(context.Background(), ownerA, c.ID, campaigns.Patch{VideoURL: &bad})
	require.ErrorIs(t, err, apperrors.ErrInvalidField)

	active := f.activate(t, edited)
	before, err := f.repo.Get(context.Background(), c.ID)
	require.NoError(t, err)

	_, err = f.service.Edit(context.Background(), ownerA, c.ID, campaigns.Patch{Title: &title})
	require.True(t, apperrors.IsPolicyViolation(err))
	require.ErrorIs(t, err, apperrors.ErrEditNotAllowed)

	after, err := f.repo.Get(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Equal(t, active.Status, after.Status)
}

func TestPauseResumeComplete(t *testing.T) {
	f := setupTestFixture(t)
	c := f.activate(t, f.create(t, ownerA))

	_, err := f.service.Resume(context.Background(), ownerA, c.ID)
	require.True(t, apperrors.IsPolicyViolation(err))

	_, err = f.service.Pause(context.Background(), ownerB, c.ID)
	require.ErrorIs(t, err, apperrors.ErrNotOwner)

	paused, err := f.service.Pause(context.Background(), ownerA, c.ID)
	require.NoError(t, err)
	require.Equal(t, campaigns.StatusPaused, paused.Status)

	resumed, err := f.service.Resume(context.Background(), ownerA, c.ID)
	require.NoError(t, err)
	require.Equal(t, campaigns.StatusActive, resumed.Status)

	done, err := f.service.Complete(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, campaigns.StatusCompleted, done.Status)

	_, err = f.service.Resume(context.Background(), ownerA, c.ID)
	require.True(t, apperrors.IsPolicyViolation(err))
	_, err = f.service.Complete(context.Background(), c.ID)
	require.True(t, apperrors.IsPolicyViolation(err))

	require.Equal(t, []string{"pending->active", "active->paused", "paused->active", "active->completed"}, f.recorder.transitions)
}

func TestRecordViews(t *testing.T) {
	f := setupTestFixture(t)
	pending := f.create(t, ownerA)

	_, err := f.service.RecordViews(context.Background(), pending.ID, 10)
	require.True(t, apperrors.IsPolicyViolation(err))

	c := f.activate(t, pending)
	updated, err := f.service.RecordViews(context.Background(), c.ID, 2500)
	require.NoError(t, err)
	require.Equal(t, int64(2500), updated.CurrentViews)
	require.Equal(t, campaigns.StatusActive, updated.Status)

	_, err = f.service.RecordViews(context.Background(), c.ID, 100)
	require.ErrorIs(t, err, apperrors.ErrInvalidField)

	done, err := f.service.RecordViews(context.Background(), c.ID, 10000)
	require.NoError(t, err)
	require.Equal(t, int64(10000), done.CurrentViews)
	require.Equal(t, campaigns.StatusCompleted, done.Status)
}

func TestCompleteElapsed(t *testing.T) {
	f := setupTestFixture(t)
	running := f.activate(t, f.create(t, ownerA))
	paused := f.activate(t, f.create(t, ownerA))
	_, err := f.service.Pause(context.Background(), ownerA, paused.ID)
	require.NoError(t, err)
	pending := f.create(t, ownerA)

	f.now = f.now.Add(6 * 24 * time.Hour)
	n, err := f.service.CompleteElapsed(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)

	f.now = f.now.Add(24 * time.Hour)
	n, err = f.service.CompleteElapsed(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for id, want := range map[string]campaigns.Status{
		running.ID: campaigns.StatusCompleted,
		paused.ID:  campaigns.StatusCompleted,
		pending.ID: campaigns.StatusPending,
	} {
		c, err := f.repo.Get(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, want, c.Status)
	}
}
