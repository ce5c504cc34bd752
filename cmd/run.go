package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/seat-scheduler/internal/config"
	"github.com/example/seat-scheduler/internal/credential"
	"github.com/example/seat-scheduler/internal/crypto"
	"github.com/example/seat-scheduler/internal/db"
	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/gate"
	"github.com/example/seat-scheduler/internal/libyy"
	"github.com/example/seat-scheduler/internal/metrics"
	"github.com/example/seat-scheduler/internal/migrate"
	"github.com/example/seat-scheduler/internal/notify"
	"github.com/example/seat-scheduler/internal/runs"
	"github.com/example/seat-scheduler/internal/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var skipGate bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Wait for the window, then claim a seat (or check out / rebook, per mode)",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := opts.logger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			v, err := opts.viper()
			if err != nil {
				return err
			}
			if err := v.BindPFlag("metrics_addr", cmd.Flags().Lookup("metrics-addr")); err != nil {
				return err
			}
			if err := v.BindPFlag("database_url", cmd.Flags().Lookup("database-url")); err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runSeats(ctx, cfg, log, skipGate)
		},
	}

	cmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address, e.g. :9102")
	cmd.Flags().String("database-url", "", "record the run in this postgres database")
	cmd.Flags().BoolVar(&skipGate, "skip-gate", false, "start claiming immediately instead of waiting for 19:20")
	return cmd
}

func runSeats(ctx context.Context, cfg config.Config, log *zap.Logger, skipGate bool) error {
	codec, err := crypto.New([]byte(cfg.AESKey), []byte(cfg.AESIV))
	if err != nil {
		return fmt.Errorf("codec: %w", err)
	}
	m := metrics.New()
	client := libyy.New(codec, libyy.Options{
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.RequestTimeout,
		MaxRetries: cfg.MaxRetries,
		Rate:       cfg.RequestRate,
		Log:        log,
	})

	cache := credential.New(client, cfg.Username, cfg.Password)
	cache.Log = log
	cache.Metrics = m

	now := func() time.Time { return time.Now().In(cfg.Location) }
	s := &scheduler.Scheduler{
		Claimer: client,
		Catalog: client,
		Members: client,
		Spaces:  client,
		Creds:   cache,
		Signal:  scheduler.NewSignal(),
		Report:  &scheduler.Report{},
		Metrics: m,
		Log:     log,
		Now:     now,
	}

	var waiter scheduler.Waiter
	if !skipGate {
		waiter = &gate.Gate{Location: cfg.Location, Now: now, Log: log.Named("gate")}
	}

	if cfg.MetricsAddr != "" {
		mctx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			if err := metrics.Serve(mctx, cfg.MetricsAddr, m, log); err != nil {
				log.Warn("metrics: server stopped", zap.Error(err))
			}
		}()
	}

	plan := scheduler.Plan{Mode: cfg.Mode, Scope: cfg.Scope, Targets: cfg.Targets()}
	if cfg.DatabaseURL != "" {
		finish := startLedger(ctx, cfg, plan, s, log)
		defer func() { finish(err) }()
	}

	o := &scheduler.Orchestrator{
		Scheduler: s,
		Gate:      waiter,
		Notifier: &notify.Multi{
			Sinks: []reservation.Notifier{
				&notify.Bark{URL: cfg.BarkURL, Extra: cfg.BarkExtra},
				&notify.Telegram{Token: cfg.TelegramToken, Channel: cfg.ChannelID},
			},
			Log: log,
		},
		Log: log,
	}
	err = o.Run(ctx, plan)
	return err
}

// startLedger records the run in Postgres and wires the attempt recorder. A
// database that cannot be reached is logged and the run goes on without it.
// The returned func closes the run with its final error.
func startLedger(ctx context.Context, cfg config.Config, plan scheduler.Plan, s *scheduler.Scheduler, log *zap.Logger) func(error) {
	log = log.Named("ledger")
	noop := func(error) {}

	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Warn("ledger: disabled", zap.Error(err))
		return noop
	}
	if err := d.Ping(ctx); err != nil {
		log.Warn("ledger: disabled, ping failed", zap.Error(err))
		d.Close()
		return noop
	}
	if err := migrate.Up(ctx, d); err != nil {
		log.Warn("ledger: disabled, migrate failed", zap.Error(err))
		d.Close()
		return noop
	}

	repo := runs.NewRepo(d)
	names := make([]string, 0, len(plan.Targets))
	for _, t := range plan.Targets {
		names = append(names, t.Name())
	}
	started := time.Now().In(cfg.Location)
	id, err := repo.Begin(ctx, runs.Run{
		UserHash:  runs.Fingerprint(cfg.Username),
		Mode:      string(plan.Mode),
		Scope:     string(plan.Scope),
		Day:       plan.Scope.Day(started),
		Targets:   names,
		StartedAt: started,
	})
	if err != nil {
		log.Warn("ledger: disabled, begin failed", zap.Error(err))
		d.Close()
		return noop
	}
	ledger := runs.NewLedger(repo, id, 0, log)
	s.Recorder = ledger
	log.Info("ledger: recording run", zap.String("run", id))

	return func(runErr error) {
		defer d.Close()
		ledger.Close()

		status := runs.StatusDone
		var lastErr *string
		switch {
		case runErr == nil:
		case errors.Is(runErr, context.Canceled):
			status = runs.StatusInterrupted
		default:
			status = runs.StatusFailed
		}
		if runErr != nil {
			msg := runErr.Error()
			lastErr = &msg
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := repo.Finish(fctx, id, status, s.Report.String(), lastErr); err != nil {
			log.Warn("ledger: finish failed", zap.String("run", id), zap.Error(err))
		}
	}
}
