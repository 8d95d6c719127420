package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ehr/carelink/internal/config"
	"github.com/ehr/carelink/internal/domain/careteam"
	"github.com/ehr/carelink/internal/domain/device"
	"github.com/ehr/carelink/internal/domain/patient"
	"github.com/ehr/carelink/internal/domain/provider"
	"github.com/ehr/carelink/internal/platform/db"
	"github.com/ehr/carelink/internal/platform/middleware"
	"github.com/ehr/carelink/internal/platform/notification"
	"github.com/ehr/carelink/internal/platform/sandbox"
	"github.com/ehr/carelink/internal/platform/store"
	"github.com/ehr/carelink/internal/platform/validate"
	"github.com/ehr/carelink/internal/platform/websocket"
)

// backend is the one persistence handle the process opens. Every repository
// and the transaction runner come from the same backend.
type backend struct {
	patients  patient.PatientRepository
	devices   device.DeviceRepository
	providers provider.ProviderRepository
	links     careteam.LinkRepository
	tx        store.TxRunner
	pinger    db.Pinger
	pool      *pgxpool.Pool // nil for the memory backend
}

func (b *backend) close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Schema:   cfg.DBSchema,
	}
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return memoryBackend(), nil
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, poolConfig(cfg))
		if err != nil {
			return nil, err
		}
		return &backend{
			patients:  patient.NewPatientRepoPG(pool),
			devices:   device.NewDeviceRepoPG(pool),
			providers: provider.NewProviderRepoPG(pool),
			links:     careteam.NewLinkRepoPG(pool),
			tx:        db.NewTxRunner(pool),
			pinger:    pool,
			pool:      pool,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func memoryBackend() *backend {
	mdb := store.NewMemoryDB()
	return &backend{
		patients:  patient.NewPatientRepoMemory(mdb),
		devices:   device.NewDeviceRepoMemory(mdb),
		providers: provider.NewProviderRepoMemory(mdb),
		links:     careteam.NewLinkRepoMemory(mdb),
		tx:        mdb,
		pinger:    mdb,
	}
}

// app holds the wired services and handlers' dependencies.
type app struct {
	patients  *patient.Service
	devices   *device.Service
	providers *provider.Service
	mgr       *careteam.Manager
	query     *careteam.Query
	seeder    *sandbox.Seeder
}

func buildApp(b *backend, logger zerolog.Logger) *app {
	v := validate.New()
	a := &app{
		patients:  patient.NewService(b.patients, b.tx, v, logger),
		devices:   device.NewService(b.devices, b.patients, b.tx, v),
		providers: provider.NewService(b.providers, b.tx, v),
		mgr:       careteam.NewManager(b.patients, b.devices, b.providers, b.links, b.tx, logger),
		query:     careteam.NewQuery(b.patients, b.devices, b.providers, b.links, b.tx),
	}
	a.patients.SetCascader(a.mgr)
	a.providers.SetCascader(a.mgr)
	a.seeder = sandbox.NewSeeder(a.patients, a.devices, a.providers, a.mgr, b.tx, logger)
	return a
}

// deps are the event and rate limiting plumbing: the configured notifier
// plus the websocket hub behind one dispatcher, and the limiter.
type deps struct {
	dispatcher *notification.Dispatcher
	hub        *websocket.Hub
	limiter    middleware.Limiter
	closers    []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func openDeps(cfg *config.Config, logger zerolog.Logger) (*deps, error) {
	d := &deps{hub: websocket.NewHub(logger)}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb = redis.NewClient(opt)
		d.closers = append(d.closers, func() { _ = rdb.Close() })
	}

	rl := middleware.RateLimitConfig{RequestsPerSecond: cfg.RateLimitRPS, BurstSize: cfg.RateLimitBurst}
	if rl.RequestsPerSecond <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}
	if rdb != nil {
		d.limiter = middleware.NewRedisLimiterFromConfig(rdb, rl)
		logger.Info().Msg("rate limiting shared through redis")
	} else {
		d.limiter = middleware.NewTokenBucketLimiter(rl)
	}

	var n notification.Notifier
	switch cfg.Notifier {
	case config.NotifierRedis:
		n = notification.NewRedisNotifier(rdb, cfg.NotifyTopic)
	case config.NotifierMQTT:
		client, err := notification.ConnectMQTT(notification.MQTTOptions{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		})
		if err != nil {
			d.close()
			return nil, err
		}
		d.closers = append(d.closers, func() { client.Disconnect(250) })
		n = notification.NewMQTTNotifier(client, cfg.NotifyTopic)
	case config.NotifierNone:
		n = notification.NopNotifier{}
	default:
		n = notification.NewLogNotifier(logger)
	}
	d.dispatcher = notification.NewDispatcher(notification.Fanout{n, d.hub}, notification.DefaultQueueSize, logger)
	logger.Info().Str("notifier", cfg.Notifier).Msg("notifications enabled")
	return d, nil
}
