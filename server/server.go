package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jrsteele09/swishview/admingate"
	"github.com/jrsteele09/swishview/auth"
	"github.com/jrsteele09/swishview/campaigns"
	"github.com/jrsteele09/swishview/internal/config"
	"github.com/jrsteele09/swishview/internal/metrics"
	"github.com/jrsteele09/swishview/payments"
	"github.com/jrsteele09/swishview/routing"
	"github.com/jrsteele09/swishview/sessionmanager"
	"github.com/jrsteele09/swishview/users"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Deps are the services the HTTP surface fronts.
type Deps struct {
	Auth      *auth.AuthService
	Campaigns *campaigns.Service
	Payments  *payments.Initiator
	Gate      *admingate.Gate // nil when no admin credentials are configured
	Gatherer  prometheus.Gatherer
	Recorder  metrics.Recorder
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	deps     Deps
	policy   *routing.Policy
	admins   users.AdminIdentities
	visitors *visitorRegistry
	flags    *admingate.Flags
	limiter  *RateLimiter
	nowFunc  func() time.Time

	fetchBackOff func() backoff.BackOff
}

type ServerOption func(*Server)

func WithNowTime(nowFunc func() time.Time) ServerOption {
	return func(s *Server) {
		s.nowFunc = nowFunc
	}
}

// WithFetchBackOff overrides the backoff used by visitors' campaign list retries.
func WithFetchBackOff(newBackOff func() backoff.BackOff) ServerOption {
	return func(s *Server) {
		s.fetchBackOff = newBackOff
	}
}

func WithRateLimiter(rl *RateLimiter) ServerOption {
	return func(s *Server) {
		if rl != nil {
			s.limiter = rl
		}
	}
}

func New(cfg config.Config, deps Deps, options ...ServerOption) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[server.New] config is required")
	}
	if deps.Auth == nil {
		return nil, errors.New("[server.New] auth service is required")
	}
	if deps.Campaigns == nil {
		return nil, errors.New("[server.New] campaign service is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("[server.New] payment initiator is required")
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.Nop{}
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.NewRegistry()
	}

	s := &Server{
		env:     cfg.GetEnv(),
		mux:     http.NewServeMux(),
		config:  cfg,
		deps:    deps,
		policy:  routing.NewPolicy(routing.WithAdminGate(cfg.GetAdminGateEnabled() && deps.Gate != nil)),
		admins:  users.NewAdminIdentities(cfg.GetAdminEmails()...),
		flags:   admingate.NewFlags(),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = NewRateLimiter(DefaultRateLimiterConfig(), s.nowFunc)
	}
	s.visitors = newVisitorRegistry(s.newVisitor, cfg.GetVisitorIdleTimeout(), cfg.GetMaxVisitors(), s.nowFunc)
	s.visitors.onReap = s.flags.Clear

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Sweep reaps idle visitors and stale rate limiter entries.
func (s *Server) Sweep() {
	if n := s.visitors.reap(); n > 0 {
		log.Info().Int("visitors", n).Msg("reaped idle visitors")
	}
	s.limiter.Cleanup()
}

// VisitorCount reports how many visitors are held.
func (s *Server) VisitorCount() int {
	return s.visitors.len()
}

// Close stops every visitor's session manager.
func (s *Server) Close() {
	s.visitors.closeAll()
}

func (s *Server) newVisitor(ctx context.Context, id string, presenter *visitorPresenter) (*visitor, error) {
	client := auth.NewClient(s.deps.Auth)
	manager, err := sessionmanager.New(client, s.deps.Campaigns,
		sessionmanager.WithPresenter(presenter),
		sessionmanager.WithPolicy(s.policy),
		sessionmanager.WithAdminIdentities(s.admins),
		sessionmanager.WithRecorder(s.deps.Recorder),
		sessionmanager.WithFetchRetry(uint(s.config.GetFetchMaxAttempts()), s.fetchBackOff),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[Server.newVisitor] sessionmanager.New")
	}
	go func() {
		if err := manager.Run(ctx); err != nil {
			log.Err(err).Str("visitor_id", id).Msg("session manager stopped")
		}
	}()
	// Snapshot is answered only after Run has subscribed to the client.
	if _, err := manager.Snapshot(ctx); err != nil {
		return nil, errors.Wrap(err, "[Server.newVisitor] manager.Snapshot")
	}
	return &visitor{id: id, client: client, manager: manager, presenter: presenter}, nil
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Debug().Msgf("[%-19s] %s", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
