package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/deptfile/file-management/internal"
	"github.com/deptfile/file-management/internal/audit"
	auditpg "github.com/deptfile/file-management/internal/audit/postgres"
	"github.com/deptfile/file-management/internal/auth"
	authpg "github.com/deptfile/file-management/internal/auth/postgres"
	"github.com/deptfile/file-management/internal/authz"
	authzpg "github.com/deptfile/file-management/internal/authz/postgres"
	"github.com/deptfile/file-management/internal/department"
	departmentpg "github.com/deptfile/file-management/internal/department/postgres"
	"github.com/deptfile/file-management/internal/file"
	filepg "github.com/deptfile/file-management/internal/file/postgres"
	"github.com/deptfile/file-management/internal/folder"
	folderpg "github.com/deptfile/file-management/internal/folder/postgres"
	"github.com/deptfile/file-management/internal/idempotency"
	idempg "github.com/deptfile/file-management/internal/idempotency/postgres"
	"github.com/deptfile/file-management/internal/pipeline"
	pipelinepg "github.com/deptfile/file-management/internal/pipeline/postgres"
	"github.com/deptfile/file-management/internal/sharing"
	sharingpg "github.com/deptfile/file-management/internal/sharing/postgres"
	"github.com/deptfile/file-management/internal/storage"
	"github.com/deptfile/file-management/internal/transport/rest"
	"github.com/deptfile/file-management/internal/user"
	userpg "github.com/deptfile/file-management/internal/user/postgres"
	"github.com/deptfile/file-management/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func startHTTPServer() {
	cfg, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)
	lg := logger.LoggerWrapper()

	db, gormDB, err := initDB(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize database: %v\n", err)
		os.Exit(1)
	}

	disks, err := storage.NewRegistry(cfg.Storage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize storage: %v\n", err)
		os.Exit(1)
	}

	// Repositories
	auditRepo := auditpg.NewAuditRepository(gormDB)
	authzRepo := authzpg.NewAuthzRepository(gormDB)
	authRepo := authpg.NewAuthRepository(gormDB)
	userRepo := userpg.NewUserRepository(gormDB)
	departmentRepo := departmentpg.NewDepartmentRepository(gormDB)
	folderRepo := folderpg.NewFolderRepository(gormDB)
	fileRepo := filepg.NewFileRepository(gormDB)
	sharingRepo := sharingpg.NewSharingRepository(gormDB)
	idemRepo := idempg.NewIdempotencyRepository(gormDB)
	pipelineStore := pipelinepg.NewFileStoreRepository(gormDB)

	// Core services
	auditService := audit.NewService(auditRepo, lg)
	engine := authz.NewEngine(authzRepo, authzRepo, lg)

	var scanner pipeline.Scanner = pipeline.NoopScanner{}
	if cfg.Antivirus.Enabled {
		scanner = pipeline.NewClamdScanner(cfg.Antivirus.Address, cfg.Antivirus.Timeout, disks, lg)
	}
	processor := pipeline.NewProcessor(pipelineStore, disks, scanner, auditService,
		cfg.Storage.QuarantinePrefix, cfg.Antivirus.FailOpen, lg)
	pool := pipeline.NewPool(processor, pipeline.Config{
		Workers:     cfg.Pipeline.Workers,
		QueueSize:   cfg.Pipeline.QueueSize,
		MaxAttempts: cfg.Pipeline.MaxAttempts,
		BaseBackoff: time.Duration(cfg.Pipeline.BaseBackoffMS) * time.Millisecond,
	}, lg)

	guard := idempotency.NewGuard(idemRepo, cfg.Idempotency.RecordTTL(), lg)

	tokenGen := auth.NewJWTTokenGenerator(cfg.Security)
	authService := auth.NewService(authRepo, tokenGen, auditService, lg)
	userService := user.NewService(userRepo, auditService, cfg.Security.BCryptCost, lg)
	departmentService := department.NewService(departmentRepo, auditService, lg)
	folderService := folder.NewService(folderRepo, disks, engine, auditService, lg)
	sharingService := sharing.NewService(sharingRepo, authzRepo, authzRepo, departmentRepo, engine, auditService, lg)
	fileService := file.NewService(fileRepo, authzRepo, disks, pool, engine, auditService, lg)

	handlers := rest.Handlers{
		Auth:       auth.NewHandler(authService),
		User:       user.NewHandler(userService),
		Department: department.NewHandler(departmentService),
		Folder:     folder.NewHandler(folderService),
		File:       file.NewHandler(fileService, sharingService),
		Sharing:    sharing.NewHandler(sharingService),
		Audit:      audit.NewHandler(auditService),
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, db.DB, disks, handlers, authService, guard, lg)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	lg.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		lg.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			lg.Error("server shutdown error", "error", err)
		}
		pool.Shutdown()
		if err := db.Close(); err != nil {
			lg.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			lg.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	lg.Info("server stopped")
}

// initDB opens the shared connection pool once and hands the same pool to
// both the raw sql surface (health checks, goose) and GORM.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, *gorm.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	if cfg.ConnMaxLifetime > 0 {
		dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// TranslateError maps driver unique-violation errors onto
	// gorm.ErrDuplicatedKey, which the idempotency store relies on to turn a
	// lost insert race into a conflict instead of an internal error.
	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: dbConn.DB}), &gorm.Config{TranslateError: true})
	if err != nil {
		_ = dbConn.Close()
		return nil, nil, fmt.Errorf("failed to open gorm connection: %w", err)
	}

	return dbConn, gormDB, nil
}
