package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	appconfig "github.com/wolfman30/dealer-ai-platform/internal/config"
	"github.com/wolfman30/dealer-ai-platform/internal/session"
	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildPostgresPool connects to DATABASE_URL. An empty URL returns nil.
func BuildPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) (*pgxpool.Pool, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("postgres connected")
	return pool, nil
}

// SessionBackend is the selected session store plus its release hook.
type SessionBackend struct {
	Name  string
	Store session.Store
	Close func() error
}

func noopClose() error { return nil }

// BuildSessionStore selects the session store named by SESSION_BACKEND.
// A redis backend whose server cannot be reached falls back to memory so
// a local run still answers.
func BuildSessionStore(ctx context.Context, cfg *appconfig.Config, pool *pgxpool.Pool, dynamo session.DynamoAPI, logger *logging.Logger) (SessionBackend, error) {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.SessionBackend {
	case "", "memory":
		return SessionBackend{Name: "memory", Store: session.NewMemoryStore(), Close: noopClose}, nil
	case "redis":
		client := BuildRedisClient(ctx, cfg, logger, true)
		if client == nil {
			logger.Warn("session backend falling back to memory", "wanted", "redis")
			return SessionBackend{Name: "memory", Store: session.NewMemoryStore(), Close: noopClose}, nil
		}
		store := session.NewRedisStore(client, cfg.SessionTTL, otel.Tracer("dealer.internal.session.redis"))
		return SessionBackend{Name: "redis", Store: store, Close: client.Close}, nil
	case "postgres":
		if pool == nil {
			return SessionBackend{}, fmt.Errorf("bootstrap: postgres session backend requires DATABASE_URL")
		}
		return SessionBackend{Name: "postgres", Store: session.NewPostgresStore(pool), Close: noopClose}, nil
	case "sqlite":
		store, err := session.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return SessionBackend{}, err
		}
		return SessionBackend{Name: "sqlite", Store: store, Close: store.Close}, nil
	case "dynamodb":
		if dynamo == nil || cfg.DynamoSessionTable == "" {
			return SessionBackend{}, fmt.Errorf("bootstrap: dynamodb session backend requires AWS and DYNAMODB_SESSION_TABLE")
		}
		store := session.NewDynamoStore(dynamo, cfg.DynamoSessionTable, cfg.SessionTTL, otel.Tracer("dealer.internal.session.dynamo"))
		return SessionBackend{Name: "dynamodb", Store: store, Close: noopClose}, nil
	default:
		return SessionBackend{}, fmt.Errorf("bootstrap: unknown session backend %q", cfg.SessionBackend)
	}
}
