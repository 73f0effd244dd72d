package campaigns

import (
	"context"
	"time"

	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/jrsteele09/swishview/internal/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Service enforces the campaign lifecycle on top of a Repo that performs no validation
// of its own.
type Service struct {
	repo     Repo
	recorder metrics.Recorder
	nowTime  func() time.Time
}

type ServiceOption func(*Service)

func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func WithRecorder(r metrics.Recorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

func NewService(repo Repo, options ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("[NewService] campaign repo is required")
	}
	s := &Service{repo: repo, recorder: metrics.Nop{}, nowTime: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// List returns the owner's campaigns, newest first.
func (s *Service) List(ctx context.Context, ownerID string) ([]*Campaign, error) {
	list, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.NewRepositoryError("list", err)
	}
	return list, nil
}

// Get returns one of the owner's campaigns.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*Campaign, error) {
	return s.owned(ctx, ownerID, id)
}

// Create stores a new pending campaign for ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, fields Fields) (*Campaign, error) {
	if ownerID == "" {
		return nil, apperrors.NewAuthError("create", apperrors.ErrNoSession)
	}
	fields = fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	c, err := s.repo.Create(ctx, ownerID, fields)
	if err != nil {
		return nil, apperrors.NewRepositoryError("create", err)
	}
	log.Info().Str("campaign_id", c.ID).Str("owner_id", ownerID).Msg("campaign created")
	return c, nil
}

// Edit changes attributes of a pending campaign. Status is never touched by an edit.
func (s *Service) Edit(ctx context.Context, ownerID, id string, patch Patch) (*Campaign, error) {
	c, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if _, err := Next(c.Status, TriggerEdit); err != nil {
		return nil, s.violation(c.ID, "edit", errors.Wrap(apperrors.ErrEditNotAllowed, string(c.Status)))
	}
	fields := patch.Apply(c.Fields()).Normalize()
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	return s.write(ctx, c, Update{ExpectStatus: c.Status, Fields: &fields}, "edit")
}

func (s *Service) Pause(ctx context.Context, ownerID, id string) (*Campaign, error) {
	c, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, c, TriggerPause, Update{})
}

func (s *Service) Resume(ctx context.Context, ownerID, id string) (*Campaign, error) {
	c, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, c, TriggerResume, Update{})
}

// ConfirmPayment is the only path from pending to active. The payer must still own the
// campaign and the amount must equal the budget.
func (s *Service) ConfirmPayment(ctx context.Context, pc PaymentConfirmation) (*Campaign, error) {
	c, err := s.get(ctx, pc.CampaignID)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != pc.PayerID {
		return nil, s.violation(c.ID, "payment", apperrors.ErrNotOwner)
	}
	if c.Status != StatusPending {
		return nil, s.violation(c.ID, "payment", errors.Wrapf(apperrors.ErrInvalidTransition, "campaign is %s", c.Status))
	}
	if pc.Amount != c.Budget {
		return nil, s.violation(c.ID, "payment", errors.Wrapf(apperrors.ErrPaymentMismatch, "paid %s, budget %s", pc.Amount, c.Budget))
	}
	now := s.nowTime()
	updated, err := s.transition(ctx, c, TriggerPaymentConfirmed, Update{ActivatedAt: &now})
	if err != nil {
		return nil, err
	}
	s.recorder.RecordPaymentConfirmed()
	return updated, nil
}

// Complete applies the external completion signal.
func (s *Service) Complete(ctx context.Context, id string) (*Campaign, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, c, TriggerComplete, Update{})
}

// RecordViews stores the delivery system's view count. Counts never go down, and
// reaching the target completes the campaign.
func (s *Service) RecordViews(ctx context.Context, id string, views int64) (*Campaign, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusActive && c.Status != StatusPaused {
		return nil, s.violation(c.ID, "views", errors.Wrapf(apperrors.ErrInvalidTransition, "campaign is %s", c.Status))
	}
	if views < c.CurrentViews {
		return nil, errors.Wrapf(apperrors.ErrInvalidField, "views %d below current %d", views, c.CurrentViews)
	}

	u := Update{ExpectStatus: c.Status, CurrentViews: &views}
	if views >= c.TargetViews {
		return s.transition(ctx, c, TriggerComplete, u)
	}
	return s.write(ctx, c, u, "views")
}

// CompleteElapsed completes every active or paused campaign whose duration has run out
// and returns how many were completed.
func (s *Service) CompleteElapsed(ctx context.Context) (int, error) {
	running, err := s.repo.ListByStatus(ctx, StatusActive, StatusPaused)
	if err != nil {
		return 0, apperrors.NewRepositoryError("list-running", err)
	}
	now := s.nowTime()
	completed := 0
	for _, c := range running {
		end, ok := c.EndsAt()
		if !ok || now.Before(end) {
			continue
		}
		if _, err := s.transition(ctx, c, TriggerComplete, Update{}); err != nil {
			if apperrors.IsPolicyViolation(err) {
				continue
			}
			return completed, err
		}
		completed++
	}
	return completed, nil
}

func (s *Service) get(ctx context.Context, id string) (*Campaign, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrCampaignNotFound) {
			return nil, err
		}
		return nil, apperrors.NewRepositoryError("get", err)
	}
	return c, nil
}

func (s *Service) owned(ctx context.Context, ownerID, id string) (*Campaign, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ownerID == "" || c.OwnerID != ownerID {
		return nil, s.violation(id, "ownership", apperrors.ErrNotOwner)
	}
	return c, nil
}

func (s *Service) transition(ctx context.Context, c *Campaign, trigger Trigger, u Update) (*Campaign, error) {
	next, err := Next(c.Status, trigger)
	if err != nil {
		return nil, s.violation(c.ID, string(trigger), err)
	}
	u.ExpectStatus = c.Status
	u.Status = &next
	updated, err := s.write(ctx, c, u, string(trigger))
	if err != nil {
		return nil, err
	}
	if next != c.Status {
		s.recorder.RecordTransition(string(c.Status), string(next))
		log.Info().Str("campaign_id", c.ID).Str("from", string(c.Status)).Str("to", string(next)).Msg("campaign transition")
	}
	return updated, nil
}

func (s *Service) write(ctx context.Context, c *Campaign, u Update, op string) (*Campaign, error) {
	updated, err := s.repo.Update(ctx, c.ID, u)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidTransition) {
			return nil, s.violation(c.ID, op, err)
		}
		if errors.Is(err, apperrors.ErrInvalidField) || errors.Is(err, apperrors.ErrCampaignNotFound) {
			return nil, err
		}
		return nil, apperrors.NewRepositoryError(op, err)
	}
	return updated, nil
}

func (s *Service) violation(id, reason string, err error) error {
	s.recorder.RecordPolicyViolation(reason)
	log.Debug().Str("campaign_id", id).Str("reason", reason).Err(err).Msg("policy violation")
	return apperrors.NewPolicyViolation(id, reason, err)
}
