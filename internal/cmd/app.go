package cmd

import (
	"context"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/lingoloop/notifier/internal/auth"
	"github.com/lingoloop/notifier/internal/backend"
	"github.com/lingoloop/notifier/internal/changefeed"
	"github.com/lingoloop/notifier/internal/config"
	"github.com/lingoloop/notifier/internal/dedup"
	"github.com/lingoloop/notifier/internal/delivery"
	apperrors "github.com/lingoloop/notifier/internal/errors"
	"github.com/lingoloop/notifier/internal/logger"
	"github.com/lingoloop/notifier/internal/output"
	"github.com/lingoloop/notifier/internal/signals"
	"github.com/lingoloop/notifier/internal/toast"
)

// app holds what every command needs: who the user is and how to reach the data
type app struct {
	identity *auth.Identity
	db       *gorm.DB
	repo     *backend.Repository
	printer  *output.Printer
}

func newApp() (*app, error) {
	token := accessToken
	if token == "" {
		token = config.GetString("auth.access_token")
	}
	id, err := auth.IdentityFromToken(token)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, apperrors.ValidationError("auth.access_token", "no access token; pass --token or set auth.access_token")
	}

	a := &app{identity: id, printer: output.New(os.Stdout, output.ConfiguredFormat())}
	if id.Expired(time.Now()) {
		a.printer.Warning("access token expired at %s; requests may be rejected", id.ExpiresAt.Format(time.RFC3339))
	}

	if config.GetString("source") == "postgres" {
		dbURL := config.GetString("database.url")
		if dbURL == "" {
			return nil, apperrors.ValidationError("database.url", "required when source is postgres")
		}
		db, err := backend.OpenPostgres(dbURL)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.repo = backend.NewRepository(backend.NewGormStore(db))
		return a, nil
	}

	rest := backend.NewRESTClient(backend.RESTConfig{
		BaseURL:     config.GetString("api.base_url"),
		AnonKey:     config.GetString("api.anon_key"),
		AccessToken: id.AccessToken,
		Timeout:     time.Duration(config.GetInt("api.timeout")) * time.Second,
	})
	a.repo = backend.NewRepository(rest)
	return a, nil
}

func (a *app) close() {
	if a.db == nil {
		return
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (a *app) navigator() *terminalNavigator {
	return newTerminalNavigator(config.GetString("app.base_url"), a.printer)
}

// listener builds a listener; source may be nil for one-shot commands
func (a *app) listener(source changefeed.Source, filter dedup.Filter, presenter *toast.Presenter) *delivery.Listener {
	return delivery.NewListener(delivery.Config{
		Source:    source,
		Filter:    filter,
		Repo:      a.repo,
		Bus:       signals.NewBus(),
		Presenter: presenter,
		Navigator: a.navigator(),
		LoadLimit: config.GetInt("notifications.page_size"),
	})
}

// changeSource opens the configured change feed
func (a *app) changeSource(ctx context.Context) (changefeed.Source, error) {
	switch source := config.GetString("source"); source {
	case "postgres":
		sqlDB, err := a.db.DB()
		if err != nil {
			return nil, err
		}
		if err := changefeed.EnsureTrigger(ctx, sqlDB); err != nil {
			return nil, err
		}
		return changefeed.NewPGSource(config.GetString("database.url"), config.GetString("database.channel"))

	case "realtime", "":
		cfg := changefeed.DefaultRealtimeConfig(config.GetString("api.base_url"), config.GetString("api.anon_key"))
		if url := config.GetString("realtime.url"); url != "" {
			cfg.URL = url
		}
		cfg.AccessToken = a.identity.AccessToken
		cfg.HeartbeatInterval = config.GetMillis("realtime.heartbeat_ms")
		cfg.ConnectTimeout = config.GetMillis("realtime.connect_timeout_ms")
		return changefeed.NewRealtimeClient(cfg), nil

	default:
		return nil, apperrors.ValidationError("source", "unknown source "+source+"; use realtime or postgres")
	}
}

// dedupFilter returns the configured duplicate filter and its cleanup
func dedupFilter(ctx context.Context) (dedup.Filter, func(), error) {
	window := config.GetMillis("dedup.window_ms")

	switch config.GetString("dedup.backend") {
	case "redis":
		client, err := dedup.NewRedisClient(ctx, config.GetString("redis.addr"), config.GetString("redis.password"))
		if err != nil {
			return nil, nil, err
		}
		cache := dedup.NewRedisCache(client, window)
		return cache, func() {
			if err := cache.Close(); err != nil {
				logger.WarnWithErr("Closing redis failed", err)
			}
		}, nil
	default:
		cache := dedup.NewCache(dedup.WithWindow(window), dedup.WithTTL(config.GetMillis("dedup.ttl_ms")))
		return cache, func() {}, nil
	}
}
