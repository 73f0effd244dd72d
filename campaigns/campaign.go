package campaigns

import (
	"net/url"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/jrsteele09/swishview/internal/utils"
	"github.com/pkg/errors"
)

// Campaign is a user-owned video promotion purchase.
type Campaign struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	Title        string     `json:"title"`
	TargetViews  int64      `json:"target_views"`
	CurrentViews int64      `json:"current_views"`
	Budget       Money      `json:"budget"`
	DurationDays int        `json:"duration_days"`
	VideoURL     string     `json:"video_url"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ActivatedAt  *time.Time `json:"activated_at,omitempty"` // set when payment is confirmed
}

// Fields are the owner-editable attributes of a campaign.
type Fields struct {
	Title        string `json:"title"`
	TargetViews  int64  `json:"target_views"`
	Budget       Money  `json:"budget"`
	DurationDays int    `json:"duration_days"`
	VideoURL     string `json:"video_url"`
}

func (c *Campaign) Fields() Fields {
	return Fields{
		Title:        c.Title,
		TargetViews:  c.TargetViews,
		Budget:       c.Budget,
		DurationDays: c.DurationDays,
		VideoURL:     c.VideoURL,
	}
}

// Normalize trims text fields.
func (f Fields) Normalize() Fields {
	f.Title = strings.TrimSpace(f.Title)
	f.VideoURL = strings.TrimSpace(f.VideoURL)
	return f
}

func (f Fields) Validate() error {
	if f.Title == "" {
		return errors.Wrap(apperrors.ErrInvalidField, "title is required")
	}
	if f.TargetViews <= 0 {
		return errors.Wrap(apperrors.ErrInvalidField, "target views must be positive")
	}
	if f.Budget <= 0 {
		return errors.Wrap(apperrors.ErrInvalidField, "budget must be positive")
	}
	if f.DurationDays <= 0 {
		return errors.Wrap(apperrors.ErrInvalidField, "duration days must be positive")
	}
	u, err := url.Parse(f.VideoURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Wrap(apperrors.ErrInvalidField, "video url must be an absolute http(s) url")
	}
	return nil
}

// Patch is a partial edit. Nil fields are left unchanged.
type Patch struct {
	Title        *string `json:"title,omitempty"`
	TargetViews  *int64  `json:"target_views,omitempty"`
	Budget       *Money  `json:"budget,omitempty"`
	DurationDays *int    `json:"duration_days,omitempty"`
	VideoURL     *string `json:"video_url,omitempty"`
}

func (p Patch) Apply(f Fields) Fields {
	if p.Title != nil {
		f.Title = *p.Title
	}
	if p.TargetViews != nil {
		f.TargetViews = *p.TargetViews
	}
	if p.Budget != nil {
		f.Budget = *p.Budget
	}
	if p.DurationDays != nil {
		f.DurationDays = *p.DurationDays
	}
	if p.VideoURL != nil {
		f.VideoURL = *p.VideoURL
	}
	return f
}

func (p Patch) Empty() bool {
	return p.Title == nil && p.TargetViews == nil && p.Budget == nil && p.DurationDays == nil && p.VideoURL == nil
}

// Update is the write applied by Repo.Update. When ExpectStatus is set the write only
// applies if the stored status still equals it.
type Update struct {
	ExpectStatus Status
	Fields       *Fields
	Status       *Status
	CurrentViews *int64
	ActivatedAt  *time.Time
}

// ApplyTo returns c with u applied. Every store writes through it.
func (u Update) ApplyTo(c Campaign, now time.Time) (Campaign, error) {
	if u.ExpectStatus != "" && c.Status != u.ExpectStatus {
		return c, errors.Wrapf(apperrors.ErrInvalidTransition, "campaign is %s, expected %s", c.Status, u.ExpectStatus)
	}
	if u.Fields != nil {
		c.Title = u.Fields.Title
		c.TargetViews = u.Fields.TargetViews
		c.Budget = u.Fields.Budget
		c.DurationDays = u.Fields.DurationDays
		c.VideoURL = u.Fields.VideoURL
	}
	if u.Status != nil {
		if !u.Status.Valid() {
			return c, errors.Wrapf(apperrors.ErrInvalidField, "unknown status %q", *u.Status)
		}
		c.Status = *u.Status
	}
	if u.CurrentViews != nil {
		c.CurrentViews = *u.CurrentViews
	}
	if u.ActivatedAt != nil {
		c.ActivatedAt = utils.Ptr(*u.ActivatedAt)
	}
	c.UpdatedAt = now
	return c, nil
}

// NewPending builds the record a store persists on Create.
func NewPending(id, ownerID string, fields Fields, now time.Time) Campaign {
	return Campaign{
		ID:           id,
		OwnerID:      ownerID,
		Title:        fields.Title,
		TargetViews:  fields.TargetViews,
		Budget:       fields.Budget,
		DurationDays: fields.DurationDays,
		VideoURL:     fields.VideoURL,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// EndsAt is when an activated campaign's duration elapses.
func (c *Campaign) EndsAt() (time.Time, bool) {
	if c.ActivatedAt == nil {
		return time.Time{}, false
	}
	return c.ActivatedAt.Add(time.Duration(c.DurationDays) * 24 * time.Hour), true
}

// PaymentConfirmation is the event that moves a pending campaign to active.
type PaymentConfirmation struct {
	CampaignID string
	PayerID    string
	Amount     Money
}
