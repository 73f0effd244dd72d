package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/swishview/auth"
	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/jrsteele09/swishview/sessionmanager"
	"github.com/rs/zerolog/log"
)

// visitor is one browser: its own auth client and a running session manager.
type visitor struct {
	id        string
	client    *auth.Client
	manager   *sessionmanager.Manager
	presenter *visitorPresenter
	cancel    context.CancelFunc
	lastSeen  time.Time // guarded by visitorRegistry.lock
}

// visitorPresenter keeps the last render so owner-wide refreshes can find the visitor.
type visitorPresenter struct {
	lock    sync.RWMutex
	ownerID string
}

func (p *visitorPresenter) Render(v sessionmanager.View) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.ownerID = ""
	if v.Principal != nil {
		p.ownerID = v.Principal.ID
	}
}

// Navigate is a no-op: handlers answer with a redirect to the view's path.
func (p *visitorPresenter) Navigate(string) {}

func (p *visitorPresenter) owner() string {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.ownerID
}

type visitorFactory func(ctx context.Context, id string, presenter *visitorPresenter) (*visitor, error)

type visitorRegistry struct {
	lock     sync.Mutex
	visitors map[string]*visitor
	starting int // slots reserved by create calls still running the factory
	limit    int
	factory  visitorFactory
	idle     time.Duration
	nowFunc  func() time.Time
	onReap   func(id string)
}

func newVisitorRegistry(factory visitorFactory, idle time.Duration, limit int, nowFunc func() time.Time) *visitorRegistry {
	return &visitorRegistry{
		visitors: make(map[string]*visitor),
		limit:    limit,
		factory:  factory,
		idle:     idle,
		nowFunc:  nowFunc,
		onReap:   func(string) {},
	}
}

// get returns a live visitor and marks it as seen.
func (vr *visitorRegistry) get(id string) (*visitor, bool) {
	vr.lock.Lock()
	defer vr.lock.Unlock()
	v, ok := vr.visitors[id]
	if ok {
		v.lastSeen = vr.nowFunc()
	}
	return v, ok
}

// create starts a new visitor. A full registry is reaped first, and stays full with
// ErrAtCapacity when nothing was idle.
func (vr *visitorRegistry) create() (*visitor, error) {
	if !vr.reserve() && (vr.reap() == 0 || !vr.reserve()) {
		log.Warn().Int("limit", vr.limit).Msg("visitor registry full")
		return nil, apperrors.ErrAtCapacity
	}

	ctx, cancel := context.WithCancel(context.Background())
	v, err := vr.factory(ctx, uuid.NewString(), &visitorPresenter{})

	vr.lock.Lock()
	defer vr.lock.Unlock()
	vr.starting--
	if err != nil {
		cancel()
		return nil, err
	}
	v.cancel = cancel
	v.lastSeen = vr.nowFunc()
	vr.visitors[v.id] = v
	return v, nil
}

func (vr *visitorRegistry) reserve() bool {
	vr.lock.Lock()
	defer vr.lock.Unlock()
	if vr.limit > 0 && len(vr.visitors)+vr.starting >= vr.limit {
		return false
	}
	vr.starting++
	return true
}

// reap stops visitors idle for longer than the idle timeout.
func (vr *visitorRegistry) reap() int {
	now := vr.nowFunc()
	var stale []*visitor

	vr.lock.Lock()
	for id, v := range vr.visitors {
		if now.Sub(v.lastSeen) > vr.idle {
			stale = append(stale, v)
			delete(vr.visitors, id)
		}
	}
	vr.lock.Unlock()

	for _, v := range stale {
		v.cancel()
		vr.onReap(v.id)
		log.Debug().Str("visitor_id", v.id).Msg("visitor reaped")
	}
	return len(stale)
}

func (vr *visitorRegistry) closeAll() {
	vr.lock.Lock()
	all := vr.visitors
	vr.visitors = make(map[string]*visitor)
	vr.lock.Unlock()

	for _, v := range all {
		v.cancel()
		<-v.manager.Done()
	}
}

// refreshOwner asks every visitor signed in as ownerID to re-read its campaigns.
func (vr *visitorRegistry) refreshOwner(ownerID string) {
	if ownerID == "" {
		return
	}
	vr.lock.Lock()
	var targets []*visitor
	for _, v := range vr.visitors {
		if v.presenter.owner() == ownerID {
			targets = append(targets, v)
		}
	}
	vr.lock.Unlock()

	for _, v := range targets {
		v.manager.Refresh()
	}
}

func (vr *visitorRegistry) len() int {
	vr.lock.Lock()
	defer vr.lock.Unlock()
	return len(vr.visitors)
}
