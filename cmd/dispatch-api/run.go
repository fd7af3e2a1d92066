package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	apiserver "github.com/fieldval/dispatch-engine/internal/api_server"
	"github.com/fieldval/dispatch-engine/internal/config"
	"github.com/fieldval/dispatch-engine/internal/dispatch"
	"github.com/fieldval/dispatch-engine/internal/matcher"
	"github.com/fieldval/dispatch-engine/internal/notify"
	"github.com/fieldval/dispatch-engine/internal/sla"
	"github.com/fieldval/dispatch-engine/internal/store"
	"github.com/fieldval/dispatch-engine/pkg/log"
	jitterbug "github.com/lthibault/jitterbug/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultSweepInterval = 5 * time.Minute

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the dispatch engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			zap.S().Fatalf("reading configuration: %v", err)
		}

		logLvl, err := zap.ParseAtomicLevel(cfg.Service.LogLevel)
		if err != nil {
			logLvl = zap.NewAtomicLevelAt(zap.InfoLevel)
		}

		logger := log.InitLog(logLvl)
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("starting dispatch engine")
		defer zap.S().Info("dispatch engine stopped")

		zap.S().Info("initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalf("initializing data store: %v", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if err := s.InitialMigration(); err != nil {
			zap.S().Fatalf("running initial migration: %v", err)
		}

		producer := notify.NewProducer(&notify.ZapSender{}, s.Notification())
		defer func() { _ = producer.Close() }()

		m, err := matcher.New(s, matcher.DefaultWeights(),
			matcher.WithParallelism(cfg.Service.MatchParallelism))
		if err != nil {
			zap.S().Fatalf("building matcher: %v", err)
		}
		orchestrator := dispatch.New(s, m, producer)

		monitor := sla.New(s, producer,
			sla.WithBatchSize(cfg.Service.SweepBatchSize),
			sla.WithAdminEmails(cfg.Service.NotifyAdminEmails),
		)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		go runSweepLoop(ctx, monitor, cfg.Service.SweepInterval)

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				zap.S().Fatalf("creating listener: %s", err)
			}

			metricsServer := apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener, orchestrator)
			if err := metricsServer.Run(ctx); err != nil {
				zap.S().Fatalf("error running metrics server: %s", err)
			}
		}()

		<-ctx.Done()
		return nil
	},
}

func runSweepLoop(ctx context.Context, monitor *sla.Monitor, interval string) {
	d, err := time.ParseDuration(interval)
	if err != nil || d <= 0 {
		d = defaultSweepInterval
	}

	ticker := jitterbug.New(d, &jitterbug.Norm{Stdev: 30 * time.Millisecond, Mean: 0})
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := monitor.CheckAndEscalate(ctx); err != nil {
				zap.S().Named("sla_monitor").Errorf("sweep failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
