package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jrsteele09/swishview/campaigns"
	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// KeyHeader carries the key shared with the payment provider, on checkout requests
// and on the confirmation callback.
const KeyHeader = "X-Payment-Key"

const defaultSubmitTries = 3

// Processor hands a new intent to the payment provider. It is the only place a
// confirmation token leaves the service; the provider posts it back once the payer
// has been charged.
type Processor interface {
	Submit(ctx context.Context, intent Intent) error
}

type ProcessorFunc func(ctx context.Context, intent Intent) error

func (f ProcessorFunc) Submit(ctx context.Context, intent Intent) error {
	return f(ctx, intent)
}

type checkoutRequest struct {
	IntentID          string          `json:"intent_id"`
	CampaignID        string          `json:"campaign_id"`
	Amount            campaigns.Money `json:"amount"`
	ExpiresAt         time.Time       `json:"expires_at"`
	ConfirmationToken string          `json:"confirmation_token"`
	CallbackURL       string          `json:"callback_url"`
}

// WebhookProcessor posts intents to the provider's checkout endpoint.
type WebhookProcessor struct {
	url         string
	callbackURL string
	key         string
	client      *http.Client
	newBackOff  func() backoff.BackOff
	maxTries    uint
}

type WebhookOption func(*WebhookProcessor)

func WithHTTPClient(client *http.Client) WebhookOption {
	return func(p *WebhookProcessor) {
		if client != nil {
			p.client = client
		}
	}
}

func WithSubmitRetry(maxTries uint, newBackOff func() backoff.BackOff) WebhookOption {
	return func(p *WebhookProcessor) {
		if maxTries > 0 {
			p.maxTries = maxTries
		}
		if newBackOff != nil {
			p.newBackOff = newBackOff
		}
	}
}

func NewWebhookProcessor(url, callbackURL, key string, options ...WebhookOption) (*WebhookProcessor, error) {
	if url == "" {
		return nil, errors.New("[NewWebhookProcessor] checkout url is required")
	}
	if key == "" {
		return nil, errors.New("[NewWebhookProcessor] payment key is required")
	}
	p := &WebhookProcessor{
		url:         url,
		callbackURL: callbackURL,
		key:         key,
		client:      &http.Client{Timeout: 10 * time.Second},
		newBackOff:  func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		maxTries:    defaultSubmitTries,
	}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

func (p *WebhookProcessor) Submit(ctx context.Context, intent Intent) error {
	body, err := json.Marshal(checkoutRequest{
		IntentID:          intent.ID,
		CampaignID:        intent.CampaignID,
		Amount:            intent.Amount,
		ExpiresAt:         intent.ExpiresAt,
		ConfirmationToken: intent.Token,
		CallbackURL:       p.callbackURL,
	})
	if err != nil {
		return errors.Wrap(err, "[WebhookProcessor.Submit] json.Marshal")
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(KeyHeader, p.key)

		resp, err := p.client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		switch {
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return struct{}{}, errors.Errorf("checkout returned %d", resp.StatusCode)
		case resp.StatusCode >= 300:
			return struct{}{}, backoff.Permanent(errors.Errorf("checkout returned %d", resp.StatusCode))
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(p.newBackOff()),
		backoff.WithMaxTries(p.maxTries),
	)
	if err != nil {
		return apperrors.NewRepositoryError("checkout", err)
	}
	log.Debug().Str("intent_id", intent.ID).Msg("intent submitted to payment provider")
	return nil
}

// LogProcessor writes intents to the log so a developer can play the provider by hand.
type LogProcessor struct{}

func (LogProcessor) Submit(_ context.Context, intent Intent) error {
	log.Info().
		Str("intent_id", intent.ID).
		Str("campaign_id", intent.CampaignID).
		Str("amount", intent.Amount.String()).
		Str("confirmation_token", intent.Token).
		Msg("payment intent awaiting confirmation")
	return nil
}
