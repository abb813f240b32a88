// cmd/supervisor/wire.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"prestamos/internal/config"
	"prestamos/internal/content"
	"prestamos/internal/dedup"
	"prestamos/internal/delivery"
	"prestamos/internal/inbox"
	"prestamos/internal/lending"
	"prestamos/internal/lifecycle"
	"prestamos/internal/outreach"
	"prestamos/internal/policy"
	"prestamos/internal/store"
)

// app holds the wired components shared by the serve and run commands.
type app struct {
	cfg        config.Config
	logger     *zap.Logger
	store      store.Store
	inbox      *inbox.Inbox
	supervisor lifecycle.Service
	outreach   outreach.Service

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close", zap.Error(err))
		}
	}
}

func build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	pol := policy.Policy{
		ReminderLeadDays:         cfg.ReminderLeadDays,
		GraceDaysBeforeDebt:      cfg.GraceDaysBeforeDebt,
		DebtReminderIntervalDays: cfg.DebtReminderIntervalDays,
	}
	if err := pol.Validate(); err != nil {
		return nil, err
	}

	st, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = st
	a.inbox = inbox.New(st)

	guardOpts := []dedup.Option{
		dedup.WithWindow(cfg.DedupCooldown),
		dedup.WithLookback(cfg.DedupLookback),
		dedup.WithLogger(logger),
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		a.closers = append(a.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			// The record lookback still deduplicates without the cache.
			logger.Warn("redis unavailable, cooldown cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			guardOpts = append(guardOpts, dedup.WithCooldown(dedup.NewRedisCooldown(rdb)))
		}
	}
	guard := dedup.NewGuard(a.inbox, guardOpts...)

	generator, err := a.generator(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	pipeline := delivery.NewPipeline(a.providers(), a.inbox, logger, delivery.WithCallTimeout(cfg.CallTimeout))
	names := make([]string, 0, len(pipeline.Providers()))
	for _, p := range pipeline.Providers() {
		names = append(names, p.Name())
	}
	logger.Info("delivery providers", zap.Strings("chain", names))
	dispatcher := lifecycle.NewDispatcher(guard, generator, pipeline, cfg.CallTimeout, logger)
	repo := lending.NewRepository(st, cfg.Location(), logger)

	a.supervisor = lifecycle.NewService(repo, pol, dispatcher, logger,
		lifecycle.WithLocation(cfg.Location()),
		lifecycle.WithCallTimeout(cfg.CallTimeout),
	)
	a.outreach = outreach.NewService(repo, dispatcher, pipeline, cfg.Location(), logger)
	return a, nil
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	switch a.cfg.StoreBackend {
	case "memory":
		a.logger.Warn("using in-memory store, data is lost on exit")
		return store.NewMemory(), nil
	case "postgres":
		db, err := sql.Open("postgres", a.cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		pg := store.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return pg, nil
	case "firebase":
		if a.cfg.FirebaseURL == "" {
			return nil, errors.New("FIREBASE_DATABASE_URL is required for the firebase store")
		}
		return store.NewFirebase(ctx, a.cfg.FirebaseURL, a.cfg.FirebaseCredentials)
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", a.cfg.StoreBackend)
	}
}

func (a *app) generator(ctx context.Context) (content.Generator, error) {
	if a.cfg.GeminiAPIKey == "" {
		return content.TemplateGenerator{}, nil
	}
	g, err := content.NewGemini(ctx, a.cfg.GeminiAPIKey, a.cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return g, nil
}

// providers builds the chain in configured order. Unconfigured providers are
// skipped, and the log provider is appended when nothing else remains.
func (a *app) providers() []delivery.Provider {
	var chain []delivery.Provider
	for _, name := range a.cfg.ProviderChain {
		switch name {
		case "smtp":
			p, err := delivery.NewSMTP(delivery.SMTPConfig{
				Host:     a.cfg.SMTPHost,
				Port:     a.cfg.SMTPPort,
				Username: a.cfg.SMTPUsername,
				Password: a.cfg.SMTPPassword,
				From:     a.cfg.MailFrom,
			})
			if err != nil {
				a.logger.Warn("smtp provider disabled", zap.Error(err))
				continue
			}
			chain = append(chain, delivery.RateLimited(p, a.cfg.ProviderRatePerSecond))
		case "graph":
			p, err := delivery.NewGraph(delivery.GraphConfig{
				TenantID:     a.cfg.GraphTenantID,
				ClientID:     a.cfg.GraphClientID,
				ClientSecret: a.cfg.GraphClientSecret,
				Sender:       a.cfg.GraphSender,
			})
			if err != nil {
				a.logger.Warn("graph provider disabled", zap.Error(err))
				continue
			}
			chain = append(chain, delivery.RateLimited(p, a.cfg.ProviderRatePerSecond))
		case "log":
			chain = append(chain, delivery.NewLogProvider(a.logger))
		default:
			a.logger.Warn("unknown provider in PROVIDER_CHAIN", zap.String("provider", name))
		}
	}
	if len(chain) == 0 {
		chain = append(chain, delivery.NewLogProvider(a.logger))
	}
	return chain
}
