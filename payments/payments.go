package payments

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/swishview/campaigns"
	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultIntentTTL   = 30 * time.Minute
	defaultWaitTimeout = 2 * time.Minute
)

// Intent is an outstanding request to pay for one campaign.
type Intent struct {
	ID         string          `json:"id"`
	CampaignID string          `json:"campaign_id"`
	PayerID    string          `json:"-"`
	Amount     campaigns.Money `json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
	Token      string          `json:"-"`
}

// Initiator is the Payment Initiator. It turns a pending campaign into a signed intent
// and feeds verified confirmations into the campaign lifecycle.
type Initiator struct {
	campaigns   *campaigns.Service
	signer      *Signer
	processor   Processor
	intentTTL   time.Duration
	waitTimeout time.Duration
	nowTime     func() time.Time

	lock    sync.Mutex
	intents map[string]*Intent                    // intent id -> intent
	waiters map[string][]chan *campaigns.Campaign // campaign id -> waiting Await calls
}

type InitiatorOption func(*Initiator)

func WithNowTime(nowFunc func() time.Time) InitiatorOption {
	return func(i *Initiator) {
		i.nowTime = nowFunc
	}
}

func WithIntentTTL(ttl time.Duration) InitiatorOption {
	return func(i *Initiator) {
		if ttl > 0 {
			i.intentTTL = ttl
		}
	}
}

// WithWaitTimeout bounds how long Await blocks for a confirmation.
func WithWaitTimeout(d time.Duration) InitiatorOption {
	return func(i *Initiator) {
		if d > 0 {
			i.waitTimeout = d
		}
	}
}

func NewInitiator(svc *campaigns.Service, signingKey []byte, processor Processor, options ...InitiatorOption) (*Initiator, error) {
	if svc == nil {
		return nil, errors.New("[NewInitiator] campaign service is required")
	}
	if processor == nil {
		return nil, errors.New("[NewInitiator] payment processor is required")
	}
	i := &Initiator{
		campaigns:   svc,
		processor:   processor,
		intentTTL:   defaultIntentTTL,
		waitTimeout: defaultWaitTimeout,
		nowTime:     time.Now,
		intents:     make(map[string]*Intent),
		waiters:     make(map[string][]chan *campaigns.Campaign),
	}
	for _, opt := range options {
		opt(i)
	}
	signer, err := NewSigner(signingKey, i.now)
	if err != nil {
		return nil, err
	}
	i.signer = signer
	return i, nil
}

func (i *Initiator) now() time.Time {
	return i.nowTime()
}

func (i *Initiator) WaitTimeout() time.Duration {
	return i.waitTimeout
}

// Initiate creates a payment intent for the budget of a pending campaign and submits it
// to the processor. The returned intent's Token is never serialized.
func (i *Initiator) Initiate(ctx context.Context, ownerID, campaignID string) (*Intent, error) {
	c, err := i.campaigns.Get(ctx, ownerID, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != campaigns.StatusPending {
		return nil, apperrors.NewPolicyViolation(c.ID, "payment", errors.Wrapf(apperrors.ErrInvalidTransition, "campaign is %s", c.Status))
	}

	now := i.now()
	intent := &Intent{
		ID:         uuid.New().String(),
		CampaignID: c.ID,
		PayerID:    ownerID,
		Amount:     c.Budget,
		CreatedAt:  now,
		ExpiresAt:  now.Add(i.intentTTL),
	}
	if intent.Token, err = i.signer.Sign(intent); err != nil {
		return nil, err
	}

	i.lock.Lock()
	i.purgeExpired(now)
	i.intents[intent.ID] = intent
	i.lock.Unlock()

	if err := i.processor.Submit(ctx, *intent); err != nil {
		i.lock.Lock()
		delete(i.intents, intent.ID)
		i.lock.Unlock()
		return nil, err
	}

	log.Info().Str("intent_id", intent.ID).Str("campaign_id", c.ID).Str("amount", intent.Amount.String()).Msg("payment initiated")
	return intent, nil
}

// Confirm consumes a signed confirmation token. Each intent confirms at most once. An
// intent survives a repository failure so the provider can retry the callback.
func (i *Initiator) Confirm(ctx context.Context, raw string) (*campaigns.Campaign, error) {
	claims, err := i.signer.Verify(raw)
	if err != nil {
		return nil, err
	}

	i.lock.Lock()
	intent, ok := i.intents[claims.ID]
	i.lock.Unlock()
	if !ok || intent.CampaignID != claims.CampaignID {
		return nil, apperrors.ErrIntentNotFound
	}

	c, err := i.campaigns.ConfirmPayment(ctx, campaigns.PaymentConfirmation{
		CampaignID: claims.CampaignID,
		PayerID:    claims.Subject,
		Amount:     campaigns.Money(claims.AmountCents),
	})
	if err != nil && !apperrors.IsPolicyViolation(err) {
		log.Warn().Err(err).Str("intent_id", claims.ID).Msg("payment confirmation not applied, intent kept")
		return nil, err
	}

	i.lock.Lock()
	delete(i.intents, claims.ID)
	i.lock.Unlock()
	if err != nil {
		return nil, err
	}
	i.notify(c)
	return c, nil
}

// Await blocks until the campaign leaves pending, ctx ends or the wait timeout passes.
func (i *Initiator) Await(ctx context.Context, ownerID, campaignID string) (*campaigns.Campaign, error) {
	ch := make(chan *campaigns.Campaign, 1)
	i.lock.Lock()
	i.waiters[campaignID] = append(i.waiters[campaignID], ch)
	i.lock.Unlock()
	defer i.removeWaiter(campaignID, ch)

	c, err := i.campaigns.Get(ctx, ownerID, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != campaigns.StatusPending {
		return c, nil
	}

	timer := time.NewTimer(i.waitTimeout)
	defer timer.Stop()
	select {
	case c := <-ch:
		return c, nil
	case <-timer.C:
		return nil, apperrors.ErrPaymentTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (i *Initiator) notify(c *campaigns.Campaign) {
	i.lock.Lock()
	waiting := i.waiters[c.ID]
	delete(i.waiters, c.ID)
	i.lock.Unlock()

	for _, ch := range waiting {
		select {
		case ch <- c:
		default:
		}
	}
}

func (i *Initiator) removeWaiter(campaignID string, ch chan *campaigns.Campaign) {
	i.lock.Lock()
	defer i.lock.Unlock()
	waiting := i.waiters[campaignID]
	for idx, w := range waiting {
		if w == ch {
			waiting = append(waiting[:idx], waiting[idx+1:]...)
			break
		}
	}
	if len(waiting) == 0 {
		delete(i.waiters, campaignID)
	} else {
		i.waiters[campaignID] = waiting
	}
}

// purgeExpired must be called with the lock held.
func (i *Initiator) purgeExpired(now time.Time) {
	for id, intent := range i.intents {
		if !now.Before(intent.ExpiresAt) {
			delete(i.intents, id)
		}
	}
}
