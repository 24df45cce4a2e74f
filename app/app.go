// Package app assembles the payment bridge from configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"student-portal/cache"
	"student-portal/config"
	"student-portal/db"
	"student-portal/http/handlers"
	"student-portal/logger"
	"student-portal/metrics"
	"student-portal/portal"
	"student-portal/services"
	"student-portal/services/kafka"
	"student-portal/services/payment"
	"student-portal/session"

	"github.com/redis/go-redis/v9"
)

const sessionExpiredNotice = "Your session has expired. Please log in again."

// App holds every long-lived component of one student session.
type App struct {
	Config      *config.Config
	DB          *sql.DB
	Store       session.Store
	Nav         *session.Navigation
	Guard       *session.Guard
	Client      *portal.Client
	Heads       *cache.HeadSource
	Provider    payment.Provider
	Initializer *payment.Initializer
	Verifier    *payment.Verifier
	Driver      *payment.Driver
	Attempts    *services.AttemptRepository
	Events      *services.EventPublisher
	Money       *payment.MoneyFormatter

	pool  services.IPool
	redis *redis.Client
}

// New wires the bridge on top of conn. The caller owns conn.
func New(cfg *config.Config, conn *sql.DB) (*App, error) {
	a := &App{Config: cfg, DB: conn}

	pool, err := services.NewPool(cfg.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	a.pool = pool
	a.Events = services.NewEventPublisher(cfg.KafkaTopic, pool)

	a.Store = session.NewSQLStore(conn)
	a.Nav = session.NewNavigation(session.RouteLogin)
	a.Guard = session.NewGuard(a.Store, nil,
		session.WithNavigator(a.Nav),
		session.WithNotifier(session.NotifierFunc(a.sessionExpired)),
	)
	a.Client = portal.New(cfg.PortalBaseURL, cfg.PortalTimeout, a.Guard)

	var headsCache cache.HeadsCache = cache.NewMemoryHeads()
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		headsCache = cache.NewRedisHeads(a.redis)
		logger.Info("Payment heads cached in redis at %s", cfg.RedisAddr)
	}
	a.Heads = cache.NewHeadSource(a.Client, headsCache, cfg.HeadsCacheTTL)

	a.Attempts = services.NewAttemptRepository(conn)
	if a.Provider, err = newProvider(cfg, a.Client, a.Attempts); err != nil {
		a.Close()
		return nil, err
	}

	a.Money = payment.NewMoneyFormatter(cfg.CurrencySymbol)

	observers := []payment.Observer{a.Attempts, a.Events}
	if sender, err := services.NewSMTPSender(cfg); err != nil {
		logger.Info("Receipt e-mails disabled: %v", err)
	} else {
		observers = append(observers, services.NewReceiptNotifier(a.Store, sender, pool))
	}

	var gateways payment.GatewayDirectory
	if a.Provider.Name() == "portal" {
		gateways = a.Client
	}
	a.Initializer = payment.NewInitializer(payment.Deps{
		Store:    a.Store,
		Resolver: payment.NewResolver(a.Heads),
		Provider: a.Provider,
		Gateways: gateways,
		Settings: config.NewSettings(cfg),
		Money:    a.Money,
		Ledger:   a.Attempts,
		Events:   a.Events,
		Scheme:   cfg.DeepLinkScheme,
	})
	a.Verifier = payment.NewVerifier(a.Store, a.Provider, observers...)
	a.Driver = payment.NewDriver(a.Verifier, payment.DriverConfig{
		VerifyDelay: cfg.VerifyDelay,
		MaxPolls:    cfg.MaxPolls,
	})
	a.Driver.OnFinish(a.sessionFinished)

	logger.Info("Payment bridge ready: provider=%s direct_payment=%t default_gateway=%d",
		a.Provider.Name(), cfg.DirectPayment, cfg.DefaultGatewayID)
	return a, nil
}

func newProvider(cfg *config.Config, client *portal.Client, keys payment.SessionKeys) (payment.Provider, error) {
	switch strings.ToLower(cfg.GatewayProvider) {
	case "", "portal":
		return payment.NewPortalProvider(client), nil
	case "razorpay":
		p, err := payment.NewRazorpayProvider(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.Currency, keys)
		if err != nil {
			return nil, fmt.Errorf("razorpay provider: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown gateway provider %q", cfg.GatewayProvider)
	}
}

// sessionExpired runs once per forced logout, before navigation is reset.
func (a *App) sessionExpired(ctx context.Context, reason string) {
	metrics.SessionExpiries.Inc()
	a.Nav.SetNotice(sessionExpiredNotice)
	a.Events.SessionExpired(ctx, reason)
}

func (a *App) sessionFinished(snap payment.SessionSnapshot) {
	a.Events.SessionFinished(snap)
	if snap.State != payment.StateCancel {
		return
	}
	n, err := a.Attempts.MarkCancelled(context.Background(), snap.ApplicationID)
	if err != nil {
		logger.Error("marking attempt cancelled for %s: %v", snap.ApplicationID, err)
		return
	}
	if n > 0 {
		logger.Info("Attempt for application %s marked cancelled", snap.ApplicationID)
	}
}

// Handler builds the HTTP handler set for the bridge.
func (a *App) Handler() *handlers.Handler {
	return handlers.New(handlers.Deps{
		Auth:          a.Client,
		Store:         a.Store,
		Guard:         a.Guard,
		Nav:           a.Nav,
		Heads:         a.Heads,
		Applications:  a.Client,
		Initializer:   a.Initializer,
		Verifier:      a.Verifier,
		Driver:        a.Driver,
		Attempts:      a.Attempts,
		Money:         a.Money,
		WebhookSecret: a.Config.RazorpayWebhookSecret,
		Health:        a.Health,
	})
}

// Health reports the state of the optional dependencies.
func (a *App) Health() map[string]interface{} {
	h := map[string]interface{}{
		"provider":       a.Provider.Name(),
		"kafka":          kafka.IsConnected(),
		"direct_payment": a.Initializer.Settings().DirectPayment(),
		"workers":        a.pool.Running(),
	}
	if err := a.DB.Ping(); err != nil {
		h["store"] = err.Error()
	} else {
		h["store"] = db.DriverOf(a.DB)
	}
	if a.redis != nil {
		if err := a.redis.Ping(context.Background()).Err(); err != nil {
			h["redis"] = err.Error()
		} else {
			h["redis"] = "ok"
		}
	}
	return h
}

// Close releases the pool and the redis client.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Release()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("closing redis: %v", err)
		}
	}
}
