// Package app wires the session stack shared by the dashboard shell and
// eisctl: credential store, transport interceptor, API client and session
// manager.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/iub-eis/eis/frontend/go-dashboard/internal/api"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/config"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/credentials"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/database"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/session"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/transport"
	"github.com/iub-eis/eis/frontend/go-dashboard/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// App is one running application: exactly one Manager owns the session.
type App struct {
	Config      *config.Config
	Store       credentials.Store
	Interceptor *transport.Interceptor
	Client      *api.Client
	Manager     *session.Manager
	// Redis is set when REDIS_HOST is configured and reachable.
	Redis *redis.Client

	closers []func()
}

// mongoAttempts bounds the startup connection retries.
const mongoAttempts = 3

// New opens the configured credential store and builds the session stack on
// top of it. The interceptor's expiry hook is bound to the manager.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	if cfg.Redis.Host != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			if cfg.Credentials.Backend == config.BackendRedis {
				return nil, fmt.Errorf("connect to redis %s: %w", cfg.Redis.Addr(), err)
			}
			logger.Warnf("app: redis %s unreachable, optional features disabled: %v", cfg.Redis.Addr(), err)
		} else {
			a.Redis = rdb
			a.closers = append(a.closers, func() { _ = rdb.Close() })
			logger.Infof("app: connected to redis %s", cfg.Redis.Addr())
		}
	}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	a.Interceptor = transport.New(store, nil)
	a.Client, err = api.NewClient(cfg.API.BaseURL, a.Interceptor, cfg.API.Timeout)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Manager, err = session.NewManager(ctx, store, a.Client)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Interceptor.OnAuthorizationExpired(a.Manager.Expire)
	return a, nil
}

func (a *App) openStore(ctx context.Context) (credentials.Store, error) {
	cfg := a.Config
	origin := cfg.Credentials.Origin
	switch cfg.Credentials.Backend {
	case config.BackendMemory:
		logger.Warnf("app: memory credential store, the session ends with the process")
		return credentials.NewMemoryStore(), nil

	case config.BackendSQLite:
		db, err := database.OpenSQLite(cfg.Credentials.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open credential database: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		s, err := credentials.NewSQLiteStore(ctx, db, origin)
		if err != nil {
			return nil, err
		}
		logger.Debugf("app: sqlite credential store at %s", cfg.Credentials.SQLitePath)
		return s, nil

	case config.BackendRedis:
		if a.Redis == nil {
			return nil, fmt.Errorf("redis credential store needs REDIS_HOST")
		}
		return credentials.NewRedisStore(a.Redis, cfg.Credentials.RedisPrefix, origin), nil

	case config.BackendMongo:
		var client *mongo.Client
		var err error
		backoff := time.Second
		for attempt := 1; attempt <= mongoAttempts; attempt++ {
			client, err = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
			if err == nil {
				break
			}
			logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, mongoAttempts, err)
			if attempt < mongoAttempts {
				time.Sleep(backoff)
				backoff *= 2
			}
		}
		if err != nil {
			return nil, fmt.Errorf("connect to mongodb: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Disconnect(context.Background()) })
		col := client.Database(cfg.MongoDB.Database).Collection("credentials")
		return credentials.NewMongoStore(col, origin), nil
	}
	return nil, fmt.Errorf("unknown credential backend %q", cfg.Credentials.Backend)
}

// Close releases the store and connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
