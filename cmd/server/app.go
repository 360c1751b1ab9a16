package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kuitang/notesaas/internal/auth"
	"github.com/kuitang/notesaas/internal/billing"
	"github.com/kuitang/notesaas/internal/clock"
	"github.com/kuitang/notesaas/internal/config"
	"github.com/kuitang/notesaas/internal/crypto"
	"github.com/kuitang/notesaas/internal/db"
	"github.com/kuitang/notesaas/internal/email"
	"github.com/kuitang/notesaas/internal/entitlement"
	"github.com/kuitang/notesaas/internal/export"
	"github.com/kuitang/notesaas/internal/notes"
	"github.com/kuitang/notesaas/internal/obs"
	"github.com/kuitang/notesaas/internal/ratelimit"
	"github.com/kuitang/notesaas/internal/s3client"
	"github.com/kuitang/notesaas/internal/web"
)

// dbKeyVersion selects the HKDF context for the database key. Bump it only
// together with a re-key migration.
const dbKeyVersion = 1

var logger = obs.Pkg("server")

// app is the wired server: storage, services and the root handler.
type app struct {
	db       *db.DB
	sessions *auth.SessionService
	limiter  *ratelimit.Limiter
	fakeS3   *s3client.Fake
	handler  http.Handler
}

func newApp(ctx context.Context, cfg *config.Config, clk clock.Clock) (*app, error) {
	masterKey, err := crypto.ParseMasterKey(cfg.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	d, err := db.Open(cfg.DatabasePath, crypto.DatabaseKey(masterKey, dbKeyVersion))
	if err != nil {
		return nil, err
	}
	a := &app{db: d}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var mailer email.EmailService
	if cfg.NoEmail {
		mailer = email.NewMockEmailService()
	} else {
		mailer = email.NewResendEmailService(cfg.ResendAPIKey, cfg.ResendFromEmail)
	}

	ent := entitlement.NewResolver(d)
	notesSvc := notes.NewService(d, ent, notes.WithClock(clk), notes.WithTransactor(notes.TransactorFor(d)))
	users := auth.NewUserService(d, mailer, cfg.BaseURL, clk)
	a.sessions = auth.NewSessionService(d, clk, cfg.RequireSecureCookies())

	var fetcher billing.SubscriptionFetcher = billing.StripeFetcher{}
	if cfg.NoStripe {
		fetcher = billing.NewMockFetcher()
	}
	processor := billing.NewProcessor(cfg.StripeWebhookSecret, cfg.BaseURL, d, fetcher, mailer, clk)
	var billingSvc billing.BillingService
	if cfg.NoStripe {
		billingSvc = billing.NewMockService(processor.Reconciler(), clk)
	} else {
		billingSvc = billing.NewService(billing.Config{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			PriceMonthly:  cfg.StripePriceMonthly,
			PriceAnnual:   cfg.StripePriceAnnual,
		})
	}
	customers := billing.NewCustomers(d, billingSvc, clk)

	mux := http.NewServeMux()

	var oidcClient auth.OIDCClient
	if cfg.NoOIDC {
		mock := auth.NewLocalMockOIDCProvider(clk)
		mock.RegisterRoutes(mux)
		oidcClient = mock
	} else {
		oidcClient, err = auth.NewGoogleOIDCClient(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		if err != nil {
			return nil, fmt.Errorf("google oidc: %w", err)
		}
	}
	// New accounts get a provider customer right away so the first webhook
	// can always be matched. Checkout retries this if it failed here.
	onSignIn := func(ctx context.Context, user db.User, _ bool) error {
		_, err := customers.EnsureCustomer(ctx, user.ID)
		return err
	}
	auth.NewHandler(oidcClient, users, a.sessions, onSignIn).RegisterRoutes(mux)

	var store *s3client.Client
	if cfg.NoS3 {
		a.fakeS3, err = s3client.StartFake(ctx, "127.0.0.1:0", cfg.AWSBucketName)
		if err != nil {
			return nil, err
		}
		store = a.fakeS3.Client
	} else {
		store, err = s3client.New(ctx, s3client.Config{
			Endpoint:        cfg.AWSEndpointS3,
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			BucketName:      cfg.AWSBucketName,
		})
		if err != nil {
			return nil, err
		}
	}

	a.limiter = ratelimit.NewLimiter(cfg.RateLimitConfig, clk)
	limit := ratelimit.Middleware(a.limiter, func(r *http.Request) string {
		return auth.GetUserID(r.Context())
	}, ent.IsActive)

	renderer, err := web.NewRenderer(nil)
	if err != nil {
		return nil, err
	}
	web.NewWebHandler(web.Deps{
		Renderer:      renderer,
		Notes:         notesSvc,
		Users:         users,
		Entitlements:  ent,
		Subscriptions: d,
		Billing:       billingSvc,
		Customers:     customers,
		Webhooks:      processor,
		Exporter:      export.NewExporter(notesSvc, store, clk),
		Limit:         limit,
		BaseURL:       cfg.BaseURL,
	}).RegisterRoutes(mux, auth.NewMiddleware(a.sessions))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := d.SQL().PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	a.handler = obs.RequestContextMiddleware(obs.AccessLogMiddleware("http", mux))
	ok = true
	return a, nil
}

// cleanupSessions deletes expired sessions until ctx is done.
func (a *app) cleanupSessions(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.sessions.Cleanup(ctx)
			if err != nil {
				logger.Warn("session_cleanup_failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("sessions_expired", "deleted", n)
			}
		}
	}
}

func (a *app) Close() {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.fakeS3 != nil {
		_ = a.fakeS3.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
