package sessionmanager

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jrsteele09/swishview/auth"
	"github.com/jrsteele09/swishview/campaigns"
	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/jrsteele09/swishview/internal/metrics"
	"github.com/jrsteele09/swishview/routing"
	"github.com/jrsteele09/swishview/sessions"
	"github.com/jrsteele09/swishview/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	eventQueueSize       = 64
	maxViewErrors        = 5
	defaultFetchAttempts = 3
)

// CampaignLister reads the campaigns of one owner. It must be safe to call twice in
// a row with the same owner.
type CampaignLister interface {
	List(ctx context.Context, ownerID string) ([]*campaigns.Campaign, error)
}

// Manager is the Session Manager. A single reducer goroutine (Run) owns all state; the
// mount-time resolve, provider notifications and fetch results all reach it as events
// on one queue.
type Manager struct {
	provider  auth.Provider
	lister    CampaignLister
	presenter Presenter
	policy    *routing.Policy
	admins    users.AdminIdentities
	cache     Cache
	recorder  metrics.Recorder

	fetchAttempts uint
	fetchBackoff  func() backoff.BackOff

	events  chan event
	done    chan struct{}
	runOnce sync.Once
	runCtx  context.Context

	// owned by the reducer goroutine
	state state
}

type state struct {
	epoch     uint64
	fetchSeq  uint64
	appliedTo uint64 // highest fetch seq applied in this epoch
	session   *sessions.Session
	verified  bool // session confirmed by the provider, not just hydrated from cache
	role      routing.Role
	path      string
	adminGate bool
	campaigns []*campaigns.Campaign
	errors    []string
	loading   bool
	resolving int         // mount-time resolves still in flight
	waiters   []chan View // Resolve callers waiting for a settled view
}

type Option func(*Manager)

func WithPresenter(p Presenter) Option {
	return func(m *Manager) {
		if p != nil {
			m.presenter = p
		}
	}
}

func WithPolicy(p *routing.Policy) Option {
	return func(m *Manager) {
		if p != nil {
			m.policy = p
		}
	}
}

func WithAdminIdentities(a users.AdminIdentities) Option {
	return func(m *Manager) {
		m.admins = a
	}
}

func WithCache(c Cache) Option {
	return func(m *Manager) {
		if c != nil {
			m.cache = c
		}
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithFetchRetry bounds retries of transient campaign list failures.
func WithFetchRetry(attempts uint, newBackOff func() backoff.BackOff) Option {
	return func(m *Manager) {
		if attempts > 0 {
			m.fetchAttempts = attempts
		}
		if newBackOff != nil {
			m.fetchBackoff = newBackOff
		}
	}
}

func New(provider auth.Provider, lister CampaignLister, options ...Option) (*Manager, error) {
	if provider == nil {
		return nil, errors.New("[sessionmanager.New] auth provider is required")
	}
	if lister == nil {
		return nil, errors.New("[sessionmanager.New] campaign lister is required")
	}
	m := &Manager{
		provider:      provider,
		lister:        lister,
		presenter:     nopPresenter{},
		policy:        routing.NewPolicy(),
		admins:        users.NewAdminIdentities(),
		cache:         NewMemoryCache(),
		recorder:      metrics.Nop{},
		fetchAttempts: defaultFetchAttempts,
		fetchBackoff:  defaultBackOff,
		events:        make(chan event, eventQueueSize),
		done:          make(chan struct{}),
		state:         state{role: routing.RoleAnonymous, path: routing.PathHome},
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

// Run subscribes to the provider and reduces events until ctx ends. It may only be
// called once.
func (m *Manager) Run(ctx context.Context) error {
	started := false
	m.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("[Manager.Run] already running")
	}
	m.runCtx = ctx
	defer close(m.done)

	unsubscribe := m.provider.Subscribe(func(kind auth.EventType, s *sessions.Session) {
		m.send(sessionChangedEvent{kind: kind, session: s})
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-m.events:
			m.reduce(ev)
		}
	}
}

// Done is closed once Run has returned.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Mount is the screen-mount check: re-hydrate from the cache, then ask the provider.
func (m *Manager) Mount(path string) {
	m.send(mountEvent{path: path})
}

// Resolve mounts path and returns the view once the provider has answered and any
// campaign fetch it started has completed.
func (m *Manager) Resolve(ctx context.Context, path string) (View, error) {
	reply := make(chan View, 1)
	if !m.send(mountEvent{path: path, reply: reply}) {
		return View{}, apperrors.ErrInternal
	}
	return m.await(ctx, reply)
}

// Navigate applies the routing policy to path and returns the resulting view.
func (m *Manager) Navigate(ctx context.Context, path string) (View, error) {
	reply := make(chan View, 1)
	if !m.send(navigateEvent{path: path, reply: reply}) {
		return View{}, apperrors.ErrInternal
	}
	return m.await(ctx, reply)
}

// Snapshot returns the current view once every queued event has been reduced.
func (m *Manager) Snapshot(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if !m.send(snapshotEvent{reply: reply}) {
		return View{}, apperrors.ErrInternal
	}
	return m.await(ctx, reply)
}

// Refresh re-reads the campaign list for the current session.
func (m *Manager) Refresh() {
	m.send(refreshEvent{})
}

// SignOut ends the provider session and returns the visitor to the public home.
func (m *Manager) SignOut(ctx context.Context) error {
	if err := m.provider.SignOut(ctx); err != nil {
		return err
	}
	m.send(signedOutByUserEvent{})
	return nil
}

// SetAdminGate records whether the visitor holds an admin-gate flag.
func (m *Manager) SetAdminGate(set bool) {
	m.send(adminGateEvent{set: set})
}

// Report surfaces a user-facing error in the next render.
func (m *Manager) Report(err error) {
	if err != nil {
		m.send(reportEvent{err: err})
	}
}

func (m *Manager) send(ev event) bool {
	select {
	case m.events <- ev:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) await(ctx context.Context, reply chan View) (View, error) {
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-m.done:
		return View{}, apperrors.ErrInternal
	}
}

func (m *Manager) reduce(ev event) {
	switch ev := ev.(type) {
	case mountEvent:
		m.onMount(ev)
	case navigateEvent:
		m.state.path = ev.path
		m.route()
		m.render()
		ev.reply <- m.view()
	case sessionResolvedEvent:
		m.onResolved(ev)
	case sessionChangedEvent:
		m.onSessionChanged(ev)
	case fetchCompletedEvent:
		m.onFetchCompleted(ev)
	case refreshEvent:
		if m.state.session != nil && m.state.verified {
			m.startFetch()
			m.render()
		}
	case signedOutByUserEvent:
		m.state.path = routing.PathHome
		m.presenter.Navigate(routing.PathHome)
		m.render()
	case adminGateEvent:
		m.state.adminGate = ev.set
		m.route()
		m.render()
	case reportEvent:
		m.pushError(ev.err)
		m.render()
	case snapshotEvent:
		ev.reply <- m.view()
	}
}

func (m *Manager) onMount(ev mountEvent) {
	if ev.path != "" {
		m.state.path = ev.path
	}
	if ev.reply != nil {
		m.state.waiters = append(m.state.waiters, ev.reply)
	}
	m.state.resolving++
	if m.state.session == nil {
		if cached, ok := m.cache.Load(); ok {
			m.state.epoch++
			m.state.session = cached
			m.state.verified = false
			m.state.role = m.deriveRole(cached)
			m.state.loading = true
		}
	}
	m.route()
	m.render()

	epoch := m.state.epoch
	ctx := m.runCtx
	go func() {
		s, err := m.provider.GetCurrentSession(ctx)
		m.send(sessionResolvedEvent{epoch: epoch, session: s, err: err})
	}()
}

func (m *Manager) onResolved(ev sessionResolvedEvent) {
	m.state.resolving--
	if ev.epoch != m.state.epoch {
		m.discard(ev.epoch)
		m.settle()
		return
	}
	if ev.err != nil {
		log.Err(ev.err).Msg("resolve session failed")
		m.state.loading = false
		m.pushError(ev.err)
		m.render()
		return
	}
	if ev.session == nil {
		m.signedOut()
		return
	}
	m.applySession(ev.session)
}

func (m *Manager) onSessionChanged(ev sessionChangedEvent) {
	switch ev.kind {
	case auth.EventSignedIn, auth.EventTokenRefreshed:
		if ev.session != nil {
			m.applySession(ev.session)
		}
	case auth.EventSignedOut:
		m.signedOut()
	}
}

// applySession is the single path for a session arriving from either the mount-time
// resolve or a provider notification.
func (m *Manager) applySession(s *sessions.Session) {
	same := m.state.session != nil && m.state.session.ID == s.ID && m.state.session.Principal == s.Principal
	if !same {
		m.state.epoch++
		m.state.appliedTo = 0
		m.state.campaigns = nil
		m.state.errors = nil
		m.state.verified = false
	}
	m.state.session = s
	m.cache.Store(s)
	m.state.role = m.deriveRole(s)

	if !m.state.verified {
		m.state.verified = true
		m.recorder.RecordSignIn(string(m.state.role))
		log.Info().Str("user_id", s.Principal.ID).Str("role", string(m.state.role)).Msg("session resolved")
		m.startFetch()
	}
	m.route()
	m.render()
}

func (m *Manager) signedOut() {
	m.state.epoch++
	m.state.appliedTo = 0
	m.state.session = nil
	m.state.verified = false
	m.state.role = routing.RoleAnonymous
	m.state.campaigns = nil
	m.state.errors = nil
	m.state.loading = false
	m.cache.Clear()
	m.route()
	m.render()
}

func (m *Manager) deriveRole(s *sessions.Session) routing.Role {
	return routing.RoleOf(users.DeriveRole(s.Principal, m.admins))
}

func (m *Manager) route() {
	d := m.policy.Decide(routing.Request{Path: m.state.path, Role: m.state.role, AdminGate: m.state.adminGate})
	if d.Redirect {
		m.presenter.Navigate(d.Path)
	}
	m.state.path = d.Path
}

func (m *Manager) startFetch() {
	m.state.fetchSeq++
	m.state.loading = true
	epoch, seq := m.state.epoch, m.state.fetchSeq
	ownerID := m.state.session.Principal.ID
	ctx := m.runCtx
	go func() {
		list, err := m.fetch(ctx, ownerID)
		m.send(fetchCompletedEvent{epoch: epoch, seq: seq, campaigns: list, err: err})
	}()
}

// fetch retries repository failures with backoff. Only this read is ever retried.
func (m *Manager) fetch(ctx context.Context, ownerID string) ([]*campaigns.Campaign, error) {
	return backoff.Retry(ctx, func() ([]*campaigns.Campaign, error) {
		list, err := m.lister.List(ctx, ownerID)
		if err != nil && !apperrors.IsRepositoryError(err) {
			return nil, backoff.Permanent(err)
		}
		return list, err
	},
		backoff.WithBackOff(m.fetchBackoff()),
		backoff.WithMaxTries(m.fetchAttempts),
	)
}

func (m *Manager) onFetchCompleted(ev fetchCompletedEvent) {
	if ev.epoch != m.state.epoch || ev.seq < m.state.appliedTo {
		m.discard(ev.epoch)
		return
	}
	m.state.appliedTo = ev.seq
	if ev.seq == m.state.fetchSeq {
		m.state.loading = false
	}
	if ev.err != nil {
		log.Err(ev.err).Msg("campaign fetch failed")
		m.pushError(ev.err)
	} else {
		m.state.campaigns = ev.campaigns
	}
	m.render()
}

func (m *Manager) discard(epoch uint64) {
	stale := &apperrors.StaleResponse{Epoch: epoch, Current: m.state.epoch}
	m.recorder.RecordStaleResponse()
	log.Debug().Err(stale).Msg("discarding stale response")
}

func (m *Manager) pushError(err error) {
	m.state.errors = append(m.state.errors, err.Error())
	if len(m.state.errors) > maxViewErrors {
		m.state.errors = m.state.errors[len(m.state.errors)-maxViewErrors:]
	}
}

func (m *Manager) render() {
	m.presenter.Render(m.view())
	m.settle()
}

// settle answers Resolve callers once nothing they could observe is still pending.
func (m *Manager) settle() {
	if len(m.state.waiters) == 0 || m.state.resolving > 0 || m.state.loading {
		return
	}
	v := m.view()
	for _, w := range m.state.waiters {
		w <- v
	}
	m.state.waiters = nil
}

func (m *Manager) view() View {
	v := View{
		Epoch:     m.state.epoch,
		Role:      m.state.role,
		Path:      m.state.path,
		Loading:   m.state.loading,
		AdminGate: m.state.adminGate,
		Campaigns: make([]*campaigns.Campaign, len(m.state.campaigns)),
	}
	copy(v.Campaigns, m.state.campaigns)
	if len(m.state.errors) > 0 {
		v.Errors = append([]string(nil), m.state.errors...)
	}
	if m.state.session != nil {
		p := m.state.session.Principal
		v.Principal = &p
	}
	return v
}
