package sessionmanager

import (
	"sync"

	"github.com/jrsteele09/swishview/campaigns"
	"github.com/jrsteele09/swishview/routing"
	"github.com/jrsteele09/swishview/sessions"
	"github.com/jrsteele09/swishview/users"
)

// View is what the presentation layer renders.
type View struct {
	Epoch     uint64                `json:"epoch"`
	Role      routing.Role          `json:"role"`
	Principal *users.Principal      `json:"principal,omitempty"`
	Path      string                `json:"path"`
	Campaigns []*campaigns.Campaign `json:"campaigns"`
	Errors    []string              `json:"errors,omitempty"`
	Loading   bool                  `json:"loading"`
	AdminGate bool                  `json:"admin_gate,omitempty"`
}

// Presenter receives renders and navigations from the reducer goroutine. It must not
// call back into the Manager synchronously.
type Presenter interface {
	Render(View)
	Navigate(path string)
}

// Cache mirrors the current session for fast re-hydration. It is advisory only.
type Cache interface {
	Store(s *sessions.Session)
	Load() (*sessions.Session, bool)
	Clear()
}

type MemoryCache struct {
	lock    sync.RWMutex
	session *sessions.Session
}

var _ Cache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Store(s *sessions.Session) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if s == nil {
		c.session = nil
		return
	}
	copied := *s
	c.session = &copied
}

func (c *MemoryCache) Load() (*sessions.Session, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.session == nil {
		return nil, false
	}
	copied := *c.session
	return &copied, true
}

func (c *MemoryCache) Clear() {
	c.Store(nil)
}

type nopPresenter struct{}

func (nopPresenter) Render(View)     {}
func (nopPresenter) Navigate(string) {}
