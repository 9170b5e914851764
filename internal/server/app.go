// Package server wires the vault engine together: configuration, the
// metadata database, the blob store, the services, the download route and
// the background sweep.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/cryptox"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/dbx"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/logging"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/blobstore"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/config"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/httpapi"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/metrics"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/repositories/repomanager"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/services"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/tasks"
)

const (
	dbConnectTimeout = time.Minute
	shutdownTimeout  = 15 * time.Second
	sweepJobName     = "sweep-expired-files"
)

// Services groups the engine operations a transport calls into.
type Services struct {
	Accounts *services.AccountService
	Quota    *services.QuotaService
	Folders  *services.FolderService
	Files    *services.FileService
	Links    *services.LinkService
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	registry *prometheus.Registry
	runner   *tasks.Runner
	server   *http.Server
	Services Services
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogFormat, c.LogLevel, os.Stdout)
	if err != nil {
		return nil, err
	}

	if err := c.ResolveMasterPassword(os.Stderr); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	vault, err := cryptox.NewSingleKeyVault(c.MasterPassword, c.KDFIterations)
	if err != nil {
		return nil, fmt.Errorf("key vault init error: %w", err)
	}

	store, err := newBlobStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	db, err := dbx.OpenWithRetry(ctx, "pgx", c.DatabaseDSN, dbConnectTimeout, func(err error, next time.Duration) {
		logger.Warn(ctx, "database not ready, retrying", "error", err, "retry_in", next)
	})
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	app := &App{config: c, logger: logger, db: db, registry: registry}
	app.Services = newServices(db, rm, vault, store, m, c, logger)
	app.runner = newRunner(app.Services.Files, c.SweepInterval, logger)
	app.server = &http.Server{
		Addr:              c.HTTPAddr,
		Handler:           httpapi.Routes(httpapi.NewHandler(app.Services.Files, logger), registry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return app, nil
}

func newServices(db *sql.DB, rm repomanager.RepositoryManager, vault services.KeyVault, store blobstore.Store,
	m *metrics.Metrics, c *config.Config, logger logging.Logger) Services {
	accounts := services.NewAccountService(db, rm, c.DefaultLimitBytes)
	quota := services.NewQuotaService(db, rm)
	links := services.NewLinkService(db, rm, c.LinkTTL, c.PublicBaseURL).WithMetrics(m)
	files := services.NewFileService(db, rm, vault, store, quota, links, logger).WithMetrics(m)
	folders := services.NewFolderService(db, rm, files, c.MaxFolderDepth, logger)

	return Services{Accounts: accounts, Quota: quota, Folders: folders, Files: files, Links: links}
}

func newBlobStore(ctx context.Context, c *config.Config) (blobstore.Store, error) {
	switch c.StorageBackend {
	case config.StorageFS:
		return blobstore.NewFSStore(c.StoragePath)
	case config.StorageS3:
		return blobstore.NewS3Store(ctx, blobstore.S3Options{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

func newRunner(files *services.FileService, interval time.Duration, logger logging.Logger) *tasks.Runner {
	r := tasks.New(logger)
	r.Register(tasks.Job{
		Name:     sweepJobName,
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := files.SweepExpired(ctx)
			return err
		},
	})
	return r
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := app.server.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.server.Addr)
	if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until a signal arrives or ctx is cancelled, then stops the
// background jobs and closes the database.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	app.runner.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	<-ctx.Done()
	wg.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.runner.Stop(stopCtx); err != nil {
		app.logger.Warn(stopCtx, "background jobs did not stop in time", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(stopCtx, "db close error", "error", err)
	}
	app.logger.Info(stopCtx, "App stopped")
}
