// internal/bootstrap/bootstrap.go

// Package bootstrap wires configuration into the clients and services shared by the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/nats-io/nats.go"
	"golang.org/x/time/rate"

	"wallace/internal/adapter/search"
	"wallace/internal/adapter/trends"
	"wallace/internal/config"
	"wallace/internal/service/remote"
)

// NewCaller builds the call policy runner from the trends settings
func NewCaller(cfg config.TrendsConfig, logger *slog.Logger) *remote.Caller {
	opts := []remote.CallerOption{remote.WithLogger(logger)}
	if cfg.RequestsPerSecond > 0 {
		opts = append(opts, remote.WithLimiter(rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)))
	}

	return remote.NewCaller(remote.RetryConfig{
		MaxRetries: cfg.MaxRetries,
		Multiplier: cfg.BackoffMultiplier,
		MaxDelay:   cfg.MaxBackoff,
		Strict:     cfg.StrictErrors,
	}, opts...)
}

// NewTrendsClient builds the trends API client
func NewTrendsClient(cfg config.TrendsConfig) *trends.Client {
	return trends.NewClient(cfg.BaseURL, cfg.DeveloperKey, cfg.Timeout)
}

// NewSearchClient builds the custom search client
func NewSearchClient(cfg config.SearchConfig) *search.Client {
	return search.NewClient(cfg.URL, cfg.EngineID, cfg.Key)
}

// InitDatabase opens and pings the postgres pool
func InitDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.MaxLifetime

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return db, nil
}

// InitNATS connects to NATS
func InitNATS(cfg config.NATSConfig, logger *slog.Logger) (*nats.Conn, error) {
	options := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}
