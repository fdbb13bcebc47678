// Package server wires the stores, services and HTTP API together and runs
// them until the process is signalled.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/userkeeper/internal/cryptox"
	"github.com/dmitrijs2005/userkeeper/internal/dbx"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/config"
	"github.com/dmitrijs2005/userkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/userkeeper/internal/server/services"
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	closers      []func(context.Context) error
	registration *services.RegistrationService
	lookup       *services.LookupService
}

// package-level seams for tests
var (
	openDB         = dbx.Open
	newRepoManager = repomanager.NewPostgresRepositoryManager
)

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{config: c, logger: logger}
	app.closers = append(app.closers, func(context.Context) error { return db.Close() })

	rm := newRepoManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	pictures, err := app.newProfileRepository(ctx)
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	usersRepo := rm.Users(db)
	hasher := cryptox.NewBcryptHasher(c.BcryptCost)

	app.registration = services.NewRegistrationService(usersRepo, pictures, hasher, c.StoreTimeout, logger)
	app.lookup = services.NewLookupService(usersRepo, pictures, c.StoreTimeout, logger)

	return app, nil
}

func (app *App) newProfileRepository(ctx context.Context) (profiles.Repository, error) {
	switch app.config.BlobBackend {
	case config.BlobBackendMongo:
		client, err := profiles.ConnectMongo(ctx, app.config.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("mongo init error: %w", err)
		}
		app.closers = append(app.closers, client.Disconnect)
		return profiles.NewMongoRepository(client, app.config.MongoDatabase), nil

	case config.BlobBackendS3:
		client, err := profiles.NewS3Client(ctx, profiles.S3Options{
			Region:       app.config.S3Region,
			User:         app.config.S3RootUser,
			Password:     app.config.S3RootPassword,
			BaseEndpoint: app.config.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
		return profiles.NewS3Repository(client, app.config.S3Bucket), nil

	default:
		return nil, fmt.Errorf("unknown blob backend %q", app.config.BlobBackend)
	}
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

	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.registration, app.lookup, app.config.MaxPictureBytes)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](ctx); err != nil {
			app.logger.Error(ctx, "close failed", "error", err)
		}
	}
	app.closers = nil
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.Background())
	app.logger.Info(ctx, "App stopped")
}
