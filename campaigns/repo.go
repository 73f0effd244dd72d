package campaigns

import "context"

// Repo is the Campaign Repository contract. Lifecycle rules are enforced by Service,
// not by the store.
type Repo interface {
	// ListByOwner returns the owner's campaigns, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*Campaign, error)
	ListByStatus(ctx context.Context, statuses ...Status) ([]*Campaign, error)
	Get(ctx context.Context, id string) (*Campaign, error)
	// Create stores a new pending campaign with zero views.
	Create(ctx context.Context, ownerID string, fields Fields) (*Campaign, error)
	Update(ctx context.Context, id string, u Update) (*Campaign, error)
}
