package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/deptfile/file-management/internal/audit"
	auditpg "github.com/deptfile/file-management/internal/audit/postgres"
	"github.com/deptfile/file-management/internal/idempotency"
	idempg "github.com/deptfile/file-management/internal/idempotency/postgres"
	"github.com/deptfile/file-management/internal/pipeline"
	pipelinepg "github.com/deptfile/file-management/internal/pipeline/postgres"
	"github.com/deptfile/file-management/internal/storage"
	"github.com/deptfile/file-management/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start and manage background workers such as the idempotency record sweeper.`,
}

var idempotencyWorkerCmd = &cobra.Command{
	Use:   "idempotency",
	Short: "Start the idempotency record sweeper",
	Long:  `Periodically deletes expired idempotency records so replay storage stays bounded.`,
	Run: func(cmd *cobra.Command, args []string) {
		startIdempotencySweeper()
	},
}

var pipelineWorkerCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Start the file safety pipeline recovery worker",
	Long:  `Runs the checksum/scan pool against files still awaiting a scan verdict. Jobs enqueued by a server that crashed or shut down land back here.`,
	Run: func(cmd *cobra.Command, args []string) {
		startPipelineWorker()
	},
}

var (
	sweepInterval   time.Duration
	rescanInterval  time.Duration
	rescanBatchSize int
)

func startPipelineWorker() {
	cfg, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)
	lg := logger.LoggerWrapper()

	_, gormDB, err := initDB(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize database: %v\n", err)
		os.Exit(1)
	}

	disks, err := storage.NewRegistry(cfg.Storage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize storage: %v\n", err)
		os.Exit(1)
	}

	store := pipelinepg.NewFileStoreRepository(gormDB)
	audits := audit.NewService(auditpg.NewAuditRepository(gormDB), lg)

	var scanner pipeline.Scanner = pipeline.NoopScanner{}
	if cfg.Antivirus.Enabled {
		scanner = pipeline.NewClamdScanner(cfg.Antivirus.Address, cfg.Antivirus.Timeout, disks, lg)
	}
	processor := pipeline.NewProcessor(store, disks, scanner, audits,
		cfg.Storage.QuarantinePrefix, cfg.Antivirus.FailOpen, lg)
	pool := pipeline.NewPool(processor, pipeline.Config{
		Workers:     cfg.Pipeline.Workers,
		QueueSize:   cfg.Pipeline.QueueSize,
		MaxAttempts: cfg.Pipeline.MaxAttempts,
		BaseBackoff: time.Duration(cfg.Pipeline.BaseBackoffMS) * time.Millisecond,
	}, lg)

	lg.Info("pipeline recovery worker started",
		"interval", rescanInterval, "batch_size", rescanBatchSize)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(rescanInterval)
	defer ticker.Stop()

	requeue := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		ids, err := store.PendingScans(ctx, rescanBatchSize)
		if err != nil {
			lg.Error("failed to list pending scans", "error", err)
			return
		}
		for _, id := range ids {
			pool.EnqueueUploaded(id)
		}
		if len(ids) > 0 {
			lg.Info("re-enqueued pending files", "count", len(ids))
		}
	}

	requeue()
	for {
		select {
		case <-ticker.C:
			requeue()
		case sig := <-sigChan:
			lg.Info("received signal, stopping pipeline worker", "signal", sig)
			pool.Shutdown()
			return
		}
	}
}

func startIdempotencySweeper() {
	cfg, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)
	lg := logger.LoggerWrapper()

	_, gormDB, err := initDB(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize database: %v\n", err)
		os.Exit(1)
	}

	guard := idempotency.NewGuard(idempg.NewIdempotencyRepository(gormDB), cfg.Idempotency.RecordTTL(), lg)

	lg.Info("idempotency sweeper started", "interval", sweepInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	sweep := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		removed, err := guard.Sweep(ctx)
		if err != nil {
			lg.Error("idempotency sweep failed", "error", err)
			return
		}
		lg.Info("idempotency sweep complete", "removed", removed)
	}

	sweep()
	for {
		select {
		case <-ticker.C:
			sweep()
		case sig := <-sigChan:
			lg.Info("received signal, stopping sweeper", "signal", sig)
			return
		}
	}
}

func init() {
	idempotencyWorkerCmd.Flags().DurationVar(&sweepInterval, "interval", time.Hour, "Time between sweeps")
	pipelineWorkerCmd.Flags().DurationVar(&rescanInterval, "interval", 5*time.Minute, "Time between pending-scan sweeps")
	pipelineWorkerCmd.Flags().IntVar(&rescanBatchSize, "batch-size", 200, "Maximum files re-enqueued per sweep")
	workerCmd.AddCommand(idempotencyWorkerCmd)
	workerCmd.AddCommand(pipelineWorkerCmd)
}
