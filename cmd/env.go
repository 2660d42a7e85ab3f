package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ecoloop/ecoloop/internal/account"
	"github.com/ecoloop/ecoloop/internal/api"
	"github.com/ecoloop/ecoloop/internal/config"
	"github.com/ecoloop/ecoloop/internal/logger"
	"github.com/ecoloop/ecoloop/internal/quiz"
	"github.com/ecoloop/ecoloop/internal/session"
	"github.com/ecoloop/ecoloop/internal/store"
	"github.com/ecoloop/ecoloop/internal/telemetry"
)

// env is everything a command needs to talk to the backend and the local
// database.
type env struct {
	cfg      config.Config
	log      *logger.Logger
	store    *store.Store
	provider *account.Provider
	client   *api.Client
	shutdown telemetry.Shutdown
}

// loadConfig reads the configuration with the persistent flags applied.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	overrides := map[string]any{}
	if u, _ := cmd.Flags().GetString("api-url"); u != "" {
		overrides["api_url"] = u
	}
	return config.Load(config.LoadOptions{EnvFile: envFile, Overrides: overrides})
}

// openStore opens the local database without the rest of the environment.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	dbPath, err := resolveDBPath(cmd, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

// openEnv builds the logger, tracing, store, API client and account
// provider, and restores the saved session.
func openEnv(cmd *cobra.Command) (*env, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.LogMode, cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Logging disabled:", err)
		log = logger.Nop()
	}

	shutdown, err := telemetry.Init(ctx, log, telemetry.Config{
		ServiceName:  "ecoloop",
		Version:      version,
		TraceFile:    cfg.TraceFile,
		OTLPEndpoint: cfg.OTLPURL,
	})
	if err != nil {
		log.Warn("tracing disabled", "error", err)
		shutdown = func(context.Context) error { return nil }
	}

	dbPath, err := resolveDBPath(cmd, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	provider := account.NewProvider(st.CredentialRepo(),
		account.WithSnapshots(st.SnapshotRepo()),
		account.WithLogger(log),
	)
	client, err := api.New(cfg.APIURL, cfg.RequestTimeout,
		api.WithSession(provider),
		api.WithLogger(log),
		api.WithRetry(api.DefaultRetryConfig()),
	)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("create API client: %w", err)
	}
	provider.Use(client)

	if err := provider.Init(ctx); err != nil {
		// Offline start: the token is kept and the cached dashboard is shown.
		log.Warn("restore session failed", "error", err)
	}

	return &env{
		cfg:      cfg,
		log:      log,
		store:    st,
		provider: provider,
		client:   client,
		shutdown: shutdown,
	}, nil
}

// Close releases the store and flushes logs and traces.
func (e *env) Close() {
	if err := e.shutdown(context.Background()); err != nil {
		e.log.Warn("flush traces failed", "error", err)
	}
	if err := e.store.Close(); err != nil {
		e.log.Warn("close database failed", "error", err)
	}
	e.log.Sync()
}

// sessionConfig maps the client settings onto a level session.
func (e *env) sessionConfig() (session.Config, error) {
	policy, err := quiz.ParsePolicy(e.cfg.PracticeQuestionPolicy)
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		SegmentCount:    e.cfg.SegmentCount,
		SeekTolerance:   e.cfg.SeekTolerance,
		DefaultDuration: e.cfg.DefaultDuration,
		PassRatio:       e.cfg.PracticePassRatio,
		Policy:          policy,
		WatchRewardXP:   e.cfg.WatchRewardXP,
	}, nil
}

// requireLogin fails with a hint when no session is stored.
func (e *env) requireLogin() error {
	if !e.provider.LoggedIn() {
		return errors.New("not logged in, run `ecoloop login` first")
	}
	return nil
}

// apiError turns err into the message the TUI would show.
func apiError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(api.UserMessage(err))
}
