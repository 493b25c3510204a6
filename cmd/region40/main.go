package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"region40-bot/internal/analytics"
	"region40-bot/internal/bot"
	"region40-bot/internal/config"
	"region40-bot/internal/dashboard"
	"region40-bot/internal/intake"
	"region40-bot/internal/modules/audit"
	"region40-bot/internal/modules/autotranslate"
	"region40-bot/internal/onboarding"
	"region40-bot/internal/storage"
	"region40-bot/internal/translate"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:           "region40",
	Short:         "Region 40 Discord onboarding and translation bot",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot(cmd.Context())
	},
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Discord bot",
	Long: `Connects to Discord and runs member onboarding and auto-translation.

When dashboard.enabled is set the admin dashboard is served from the same process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot(cmd.Context())
	},
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve the admin dashboard only",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDashboard(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadBase()
		if err != nil {
			return err
		}
		store, err := storage.New(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", cfg.Database.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(botCmd, dashboardCmd, migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore(cfg config.Config, logger *zap.Logger) (*storage.Store, error) {
	store, err := storage.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	logger.Info("storage ready", zap.String("driver", cfg.Database.Driver))
	return store, nil
}

func runBot(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := config.BuildLogger(cfg.Bot.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()
	for _, warning := range cfg.Warnings {
		logger.Warn("config entry ignored", zap.String("reason", warning))
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	auditLogger := audit.NewLogger(store, logger)
	guard := intake.NewGuard(cfg.DebounceWindow(), nil)
	machine := onboarding.NewMachine(cfg.Rules(), store, guard, auditLogger, logger)

	var translator translate.Translator
	client, err := translate.NewClient(cfg.TranslateClientConfig())
	switch {
	case errors.Is(err, translate.ErrNotConfigured):
		logger.Warn("translation disabled: no API key or access token configured")
	case err != nil:
		return fmt.Errorf("translate client: %w", err)
	default:
		translator = translate.NewCached(client, cfg.TranslateCacheTTL(), nil)
	}
	translateModule := autotranslate.New(store, translator, logger)
	analyticsEngine := analytics.New(store)

	botSvc, err := bot.New(cfg, logger, store, machine, translateModule, auditLogger, analyticsEngine)
	if err != nil {
		return fmt.Errorf("bot init failed: %w", err)
	}
	if err := botSvc.Start(); err != nil {
		return fmt.Errorf("bot start failed: %w", err)
	}
	logger.Info("bot started")

	var dashDone <-chan struct{}
	if cfg.Dashboard.Enabled {
		if cfg.Dashboard.Password == "" {
			logger.Warn("dashboard enabled without ADMIN_PASS; not serving")
		} else {
			dashDone = runInBackground(ctx, "dashboard", dashboard.New(dashboardConfig(cfg), store, logger), logger)
		}
	}

	<-ctx.Done()
	logger.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	botSvc.Close(shutdownCtx)
	if dashDone != nil {
		select {
		case <-dashDone:
		case <-shutdownCtx.Done():
		}
	}
	return nil
}

func runDashboard(ctx context.Context) error {
	cfg, err := config.LoadDashboard()
	if err != nil {
		return err
	}

	logger, err := config.BuildLogger(cfg.Bot.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()
	for _, warning := range cfg.Warnings {
		logger.Warn("config entry ignored", zap.String("reason", warning))
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return dashboard.New(dashboardConfig(cfg), store, logger).Run(ctx)
}

type runner interface {
	Run(ctx context.Context) error
}

// runInBackground runs r until ctx ends. A failure is logged when it
// happens, not at shutdown. The returned channel closes once r returns.
func runInBackground(ctx context.Context, name string, r runner, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := r.Run(ctx); err != nil {
			logger.Error("background service stopped", zap.String("service", name), zap.Error(err))
		}
	}()
	return done
}

func dashboardConfig(cfg config.Config) dashboard.Config {
	return dashboard.Config{
		Addr:     cfg.Dashboard.Addr,
		User:     cfg.Dashboard.User,
		Password: cfg.Dashboard.Password,
		AllowIPs: cfg.Dashboard.AllowIPs,
	}
}
