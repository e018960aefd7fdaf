package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"matpulse/internal/alerting"
	"matpulse/internal/config"
	"matpulse/internal/index"
	"matpulse/internal/scheduler"
	"matpulse/internal/service"
	"matpulse/internal/storage"
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

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// newNotifiers builds one transport per enabled channel.
func (a *App) newNotifiers() map[alerting.Channel]alerting.Notifier {
	notifiers := make(map[alerting.Channel]alerting.Notifier)
	timeout := a.Config.Alerting.SendTimeout

	if cfg := a.Config.Alerting.Email; cfg.Enabled {
		notifiers[alerting.ChannelEmail] = alerting.NewMailRelayNotifier(
			cfg.RelayURL, cfg.APIKey, cfg.From, cfg.Subject, timeout, a.Logger)
	}
	if cfg := a.Config.Alerting.Telegram; cfg.Enabled {
		notifiers[alerting.ChannelTelegram] = alerting.NewTelegramNotifier(
			cfg.BotToken, cfg.APIBase, timeout, a.Logger)
	}
	if cfg := a.Config.Alerting.WhatsApp; cfg.Enabled {
		notifiers[alerting.ChannelWhatsApp] = alerting.NewWhatsAppNotifier(
			cfg.GatewayURL, cfg.Token, timeout, a.Logger)
	}
	return notifiers
}

func (a *App) newEvaluator(store *storage.Store) *alerting.Evaluator {
	return alerting.NewEvaluator(
		store,
		store,
		store,
		store,
		a.newNotifiers(),
		a.Config.Alerting.SendTimeout,
		a.Logger,
	)
}

func (a *App) newCalculator(store *storage.Store) *index.Calculator {
	return index.New(store, store, a.Config.Index.Weights, a.Config.IndexWindow(), a.Logger)
}

// Run executes the long-running scheduled service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn must be configured for the scheduled service")
	}
	defer closeStore()

	svc := service.New(a.newEvaluator(store), a.newCalculator(store), a.Logger)

	sched := scheduler.New(a.Config.Scheduler.JobTimeout, a.Logger)
	if a.Config.Alerting.Enabled {
		if err := sched.Add(ctx, scheduler.Job{
			Name: "alert-pass",
			Spec: a.Config.Scheduler.AlertCron,
			Run:  svc.RunAlertPass,
		}); err != nil {
			return err
		}
	} else {
		a.Logger.Warn().Msg("alerting disabled; only the index job is scheduled")
	}
	if err := sched.Add(ctx, scheduler.Job{
		Name: "index-pass",
		Spec: a.Config.Scheduler.IndexCron,
		Run:  svc.RunIndexPass,
	}); err != nil {
		return err
	}

	a.serveMetrics(ctx)

	a.Logger.Info().Msg("starting scheduled service")
	err = sched.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("scheduled service stopped")
	return nil
}

// serveMetrics exposes the prometheus endpoint when configured.
func (a *App) serveMetrics(ctx context.Context) {
	addr := a.Config.Metrics.Addr
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		a.Logger.Info().Str("addr", addr).Msg("metrics listener started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("metrics listener failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}

// EvaluateAlerts runs a single alert pass outside the scheduler, for
// cron-style external triggering.
func (a *App) EvaluateAlerts(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn must be configured to evaluate alerts")
	}
	defer closeStore()

	svc := service.New(a.newEvaluator(store), nil, a.Logger)
	return svc.RunAlertPass(ctx)
}

// ExportOptions hold parameters for exporting composite index history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// DeliveriesOptions configure the deliveries command.
type DeliveriesOptions struct {
	Limit int
}

// ComputeIndexOptions configure index computation. Either a single date
// or an inclusive from/exclusive to range.
type ComputeIndexOptions struct {
	Date *time.Time
	From *time.Time
	To   *time.Time
}

// ForecastOptions configure the forecast command.
type ForecastOptions struct {
	MaterialID string
	Lookback   int
}
