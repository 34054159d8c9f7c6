// Package app wires the portal runtime: config, logging, persistence, and the
// HTTP auth surface.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/oliver-JPS/Portal-com-Login/internal/auth/api"
	"github.com/oliver-JPS/Portal-com-Login/internal/auth/oauth"
	"github.com/oliver-JPS/Portal-com-Login/internal/auth/session"
	"github.com/oliver-JPS/Portal-com-Login/internal/identity"
	"github.com/oliver-JPS/Portal-com-Login/internal/security/password"
)

// App is the portal runtime: it owns the HTTP server, the session service
// lifecycle, and the persistence connections.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool
	redis     *redis.Client

	sessions *session.Service
	auth     *api.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	ctx := context.Background()

	store, dbPool, dbEnabled, err := newIdentityStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			closePool(dbPool)
			return nil, err
		}
		log.Info("redis.enabled")
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		closePool(dbPool)
		closeRedis(redisClient)
		return nil, err
	}

	hasher, err := password.NewBcryptFromEnv()
	if err != nil {
		closePool(dbPool)
		closeRedis(redisClient)
		return nil, err
	}

	issuer, err := session.NewIssuer(sessCfg)
	if err != nil {
		closePool(dbPool)
		closeRedis(redisClient)
		return nil, err
	}

	var lockout session.LockoutPolicy
	if redisClient != nil {
		lockout = session.NewRedisLockout(redisClient, sessCfg.LockoutDuration)
	} else {
		lockout = session.NewStoreLockout(store)
	}

	sessions := session.NewService(sessCfg, store, hasher, lockout, issuer, log)

	apiCfg := api.LoadConfigFromEnv()
	var opts []api.HandlerOption
	if redisClient != nil {
		opts = append(opts, api.WithLoginLimiter(api.NewLoginLimiter(redisClient, apiCfg.LoginIPMax, apiCfg.LoginIPWindow)))
	}

	googleCfg, err := oauth.LoadGoogleConfigFromEnv()
	if err != nil {
		closePool(dbPool)
		closeRedis(redisClient)
		return nil, err
	}
	if googleCfg.Enabled() {
		provider, err := oauth.NewGoogle(ctx, googleCfg, log)
		if err != nil {
			closePool(dbPool)
			closeRedis(redisClient)
			return nil, err
		}
		opts = append(opts, api.WithProvider(provider))
		log.Info("oauth.google.enabled")
	}

	authHandler, err := api.NewHandler(log, apiCfg, sessions, opts...)
	if err != nil {
		closePool(dbPool)
		closeRedis(redisClient)
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		redis:     redisClient,
		sessions:  sessions,
		auth:      authHandler,
	}, nil
}

// Run starts the HTTP server and the token sweeper, and blocks until context
// cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.auth)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.sessions.Start()
	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.sessions.Stop()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		a.sessions.Stop()
		return err
	}

	a.sessions.Stop()
	closeRedis(a.redis)
	closePool(a.dbPool)

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newIdentityStore decides between Postgres-backed persistence and the
// in-memory dev store.
func newIdentityStore(ctx context.Context, cfg Config, log Logger) (identity.Store, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return identity.NewMemoryStore(), nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, err
	}

	store, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store")
	return store, pool, true, nil
}

func closePool(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}

func closeRedis(client *redis.Client) {
	if client != nil {
		_ = client.Close()
	}
}
