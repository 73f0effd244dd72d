package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/swishview/admingate"
	"github.com/jrsteele09/swishview/auth"
	"github.com/jrsteele09/swishview/campaigns"
	campaignsqlite "github.com/jrsteele09/swishview/campaigns/sqlite"
	"github.com/jrsteele09/swishview/internal/config"
	"github.com/jrsteele09/swishview/internal/logging"
	"github.com/jrsteele09/swishview/internal/metrics"
	"github.com/jrsteele09/swishview/payments"
	"github.com/jrsteele09/swishview/server"
	fakesessionrepo "github.com/jrsteele09/swishview/sessions/repofakes"
	"github.com/jrsteele09/swishview/token"
	fakeuserrepo "github.com/jrsteele09/swishview/users/repofake"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logging.Setup(c.GetEnv(), c.GetLogLevel(), os.Stdout)
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := build(ctx, c)
	if err != nil {
		return err
	}
	defer app.close()

	httpServer := &http.Server{Addr: c.GetPort(), Handler: app.server, ReadHeaderTimeout: 10 * time.Second}
	go listenAndServe(httpServer)
	go app.sweep(ctx, c.GetCompletionSweepInterval())

	waitForStopSignal()
	cancel()
	return shutdown(httpServer)
}

type application struct {
	store     *campaignsqlite.Store
	auth      *auth.AuthService
	campaigns *campaigns.Service
	server    *server.Server
}

func build(ctx context.Context, c config.Config) (*application, error) {
	if err := os.MkdirAll(c.GetDataFolder(), 0o755); err != nil {
		return nil, errors.Wrap(err, "[build] create data folder")
	}
	store, err := campaignsqlite.Open(ctx, filepath.Join(c.GetDataFolder(), "swishview.db"))
	if err != nil {
		return nil, err
	}

	jwtSecret, err := secret(c, "JWT_SECRET", c.GetJWTSecret())
	if err != nil {
		return nil, err
	}
	tokens, err := token.New(jwtSecret, token.WithAccessTokenExpiry(c.GetSessionTTL()))
	if err != nil {
		return nil, err
	}

	authOptions := []auth.AuthServiceOption{auth.WithRefreshTTL(c.GetRefreshTTL())}
	if c.GetGoogleClientID() != "" {
		google, err := auth.NewGoogleProvider(ctx, c.GetGoogleIssuer(), c.GetGoogleClientID(), c.GetGoogleClientSecret(), c.GetBaseURL()+server.RouteAuthCallback)
		if err != nil {
			log.Err(err).Msg("google sign-in disabled")
		} else {
			authOptions = append(authOptions, auth.WithOAuthProvider(google))
		}
	}
	authService, err := auth.NewAuthService(auth.Repos{
		Users:    fakeuserrepo.NewFakeUserRepo(),
		Sessions: fakesessionrepo.NewFakeSessionRepo(),
	}, tokens, authOptions...)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(reg)

	campaignService, err := campaigns.NewService(store, campaigns.WithRecorder(recorder))
	if err != nil {
		return nil, err
	}

	paymentKey, err := secret(c, "PAYMENT_SIGNING_KEY", c.GetPaymentSigningKey())
	if err != nil {
		return nil, err
	}
	processor, err := paymentProcessor(c)
	if err != nil {
		return nil, err
	}
	initiator, err := payments.NewInitiator(campaignService, paymentKey, processor, payments.WithWaitTimeout(c.GetPaymentConfirmationTimeout()))
	if err != nil {
		return nil, err
	}

	var gate *admingate.Gate
	if creds := c.GetAdminCredentials(); len(creds) > 0 {
		credentialStore, err := admingate.NewCredentialStore(creds)
		if err != nil {
			return nil, err
		}
		if gate, err = admingate.New(credentialStore); err != nil {
			return nil, err
		}
	}
	if c.GetAdminGateEnabled() && gate == nil {
		log.Warn().Msg("ADMIN_GATE_ENABLED is set but no ADMIN_CREDENTIALS are configured, admin gate stays off")
	}

	s, err := server.New(c, server.Deps{
		Auth:      authService,
		Campaigns: campaignService,
		Payments:  initiator,
		Gate:      gate,
		Gatherer:  reg,
		Recorder:  recorder,
	})
	if err != nil {
		return nil, err
	}
	return &application{store: store, auth: authService, campaigns: campaignService, server: s}, nil
}

// secret returns value, or a random per-process key in DEV.
func secret(c config.Config, name, value string) ([]byte, error) {
	if value != "" {
		return []byte(value), nil
	}
	if c.GetEnv() != "DEV" {
		return nil, errors.Errorf("[build] %s is required", name)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrapf(err, "[build] generate %s", name)
	}
	log.Warn().Str("key", name).Msg("not set, using a random key for this process")
	return key, nil
}

// paymentProcessor posts intents to the configured checkout endpoint. DEV without one
// logs intents instead.
func paymentProcessor(c config.Config) (payments.Processor, error) {
	if c.GetPaymentCallbackKey() == "" && c.GetEnv() != "DEV" {
		return nil, errors.New("[build] PAYMENT_CALLBACK_KEY is required")
	}
	if url := c.GetPaymentProcessorURL(); url != "" {
		return payments.NewWebhookProcessor(url, c.GetBaseURL()+server.RouteAPIPaymentConfirm, c.GetPaymentCallbackKey())
	}
	if c.GetEnv() != "DEV" {
		return nil, errors.New("[build] PAYMENT_PROCESSOR_URL is required")
	}
	log.Warn().Msg("PAYMENT_PROCESSOR_URL not set, payment intents are only logged")
	return payments.LogProcessor{}, nil
}

// sweep completes elapsed campaigns and drops expired sessions and idle visitors.
func (a *application) sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := a.campaigns.CompleteElapsed(ctx); err != nil {
				log.Err(err).Msg("completion sweep failed")
			} else if n > 0 {
				log.Info().Int("completed", n).Msg("completed elapsed campaigns")
			}
			if err := a.auth.CleanupExpiredSessions(); err != nil {
				log.Err(err).Msg("session cleanup failed")
			}
			a.server.Sweep()
		}
	}
}

func (a *application) close() {
	a.server.Close()
	if err := a.store.Close(); err != nil {
		log.Err(err).Msg("closing campaign store")
	}
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
