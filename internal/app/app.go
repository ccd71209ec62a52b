package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"balance-sentinel/internal/alerting"
	"balance-sentinel/internal/chains"
	"balance-sentinel/internal/config"
	"balance-sentinel/internal/pricing"
	"balance-sentinel/internal/scheduler"
	"balance-sentinel/internal/service"
	"balance-sentinel/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newOracle() pricing.Oracle {
	return pricing.NewClient(pricing.Options{
		BaseURL:   a.Config.Pricing.BaseURL,
		Timeout:   a.Config.Pricing.RequestTimeout,
		UserAgent: a.Config.Pricing.UserAgent,
	}, a.Logger)
}

func (a *App) newReaders() (*chains.EVMReader, *chains.SolanaReader) {
	evm := chains.NewEVMReader(chains.EVMOptions{Timeout: a.Config.Monitor.RPCTimeout}, a.Logger)
	solana := chains.NewSolanaReader(chains.SolanaOptions{Timeout: a.Config.Monitor.RPCTimeout}, a.Logger)
	return evm, solana
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (storage.StateStore, func(), error) {
	switch a.Config.State.Backend {
	case "postgres":
		pool, err := storage.NewPool(ctx, a.Config.State.Database)
		if err != nil {
			return nil, nil, err
		}
		store, err := storage.NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	case "file":
		store, err := storage.NewFileStore(a.Config.State.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown state backend %q", a.Config.State.Backend)
	}
}

func (a *App) newService(sched *scheduler.Scheduler, store storage.StateStore) (*service.Service, func()) {
	evm, solana := a.newReaders()
	svc := service.New(a.Config, sched, a.newOracle(), evm, solana, store, a.newNotifier(), a.Logger)
	return svc, evm.Close
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc, closeReaders := a.newService(sched, store)
	defer closeReaders()

	a.Logger.Info().
		Int("chains", len(a.Config.Chains)).
		Bool("solana", a.Config.Solana.Enabled).
		Dur("interval", a.Config.Scheduler.Interval).
		Msg("starting balance monitor")

	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("monitor terminated with error")
		return err
	}

	a.Logger.Info().Msg("balance monitor stopped")
	return nil
}

// CheckOnce runs exactly one check cycle and returns its outcome.
func (a *App) CheckOnce(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	svc, closeReaders := a.newService(nil, store)
	defer closeReaders()

	return svc.RunCycle(ctx, time.Now().UTC())
}

// ExportOptions hold parameters for exporting the latest snapshot.
type ExportOptions struct {
	CSVPath string
	PNGPath string
}
