package fakecampaignrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/swishview/campaigns"
	apperrors "github.com/jrsteele09/swishview/internal/errors"
)

var _ campaigns.Repo = (*FakeCampaignRepo)(nil)

type storedCampaign struct {
	campaign campaigns.Campaign
	seq      int
}

type FakeCampaignRepo struct {
	campaigns map[string]*storedCampaign
	nextSeq   int
	nowTime   func() time.Time
	lock      sync.RWMutex
}

type Option func(*FakeCampaignRepo)

func WithNowTime(nowFunc func() time.Time) Option {
	return func(r *FakeCampaignRepo) {
		r.nowTime = nowFunc
	}
}

func NewFakeCampaignRepo(options ...Option) *FakeCampaignRepo {
	r := &FakeCampaignRepo{
		campaigns: make(map[string]*storedCampaign),
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *FakeCampaignRepo) ListByOwner(ctx context.Context, ownerID string) ([]*campaigns.Campaign, error) {
	return r.list(func(c *campaigns.Campaign) bool { return c.OwnerID == ownerID }), nil
}

func (r *FakeCampaignRepo) ListByStatus(ctx context.Context, statuses ...campaigns.Status) ([]*campaigns.Campaign, error) {
	want := make(map[campaigns.Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	return r.list(func(c *campaigns.Campaign) bool { return want[c.Status] }), nil
}

func (r *FakeCampaignRepo) Get(ctx context.Context, id string) (*campaigns.Campaign, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	stored, ok := r.campaigns[id]
	if !ok {
		return nil, apperrors.ErrCampaignNotFound
	}
	c := stored.campaign
	return &c, nil
}

func (r *FakeCampaignRepo) Create(ctx context.Context, ownerID string, fields campaigns.Fields) (*campaigns.Campaign, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	c := campaigns.NewPending(uuid.New().String(), ownerID, fields, r.nowTime())
	r.campaigns[c.ID] = &storedCampaign{campaign: c, seq: r.nextSeq}
	r.nextSeq++
	return &c, nil
}

func (r *FakeCampaignRepo) Update(ctx context.Context, id string, u campaigns.Update) (*campaigns.Campaign, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	stored, ok := r.campaigns[id]
	if !ok {
		return nil, apperrors.ErrCampaignNotFound
	}
	updated, err := u.ApplyTo(stored.campaign, r.nowTime())
	if err != nil {
		return nil, err
	}
	stored.campaign = updated
	return &updated, nil
}

func (r *FakeCampaignRepo) list(match func(*campaigns.Campaign) bool) []*campaigns.Campaign {
	r.lock.RLock()
	defer r.lock.RUnlock()

	found := make([]*storedCampaign, 0)
	for _, stored := range r.campaigns {
		if match(&stored.campaign) {
			found = append(found, stored)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if !found[i].campaign.CreatedAt.Equal(found[j].campaign.CreatedAt) {
			return found[i].campaign.CreatedAt.After(found[j].campaign.CreatedAt)
		}
		return found[i].seq > found[j].seq
	})

	out := make([]*campaigns.Campaign, 0, len(found))
	for _, stored := range found {
		c := stored.campaign
		out = append(out, &c)
	}
	return out
}
