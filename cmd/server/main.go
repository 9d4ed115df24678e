package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"github.com/franckalain/traypositions/internal/config"
	"github.com/franckalain/traypositions/internal/database"
	"github.com/franckalain/traypositions/internal/ingest"
	"github.com/franckalain/traypositions/internal/ml"
	"github.com/franckalain/traypositions/internal/server"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", config.GetConfigPath(), "path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	logger, err := newLogger(cfg.Server.Debug)
	if err != nil {
		log.Fatal("Failed to create logger: ", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize ML service
	model, err := ml.NewModel(cfg)
	if err != nil {
		logger.Fatal("Failed to create ML model", zap.Error(err))
	}
	if err := model.Load(ctx); err != nil {
		logger.Fatal("Failed to load ML model", zap.Error(err))
	}

	retry := ml.DefaultRetryPolicy()
	if cfg.Retry.Attempts > 0 {
		retry.Attempts = cfg.Retry.Attempts
	}
	if cfg.Retry.Backoff > 0 {
		retry.Backoff = cfg.Retry.Backoff.Std()
	}
	analyzer := ml.NewAnalyzer(model, retry, logger.Named("analyzer"))

	opts := server.Options{
		Mode:     cfg.Ingest.Mode,
		APIToken: cfg.Server.APIToken,
	}

	var rehoster server.Rehoster
	if cfg.Ingest.Mode == config.ModeRehost {
		storage, staticDir, err := newStorage(ctx, cfg)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
		if staticDir != "" {
			opts.StaticDir = staticDir
			opts.PublicPath = cfg.Storage.PublicPath
		}

		// Initialize upload registry
		db, err := database.NewSQLiteDB(cfg.Database.Path)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		rehoster = ingest.NewRehoster(storage, db, ingest.RehostOptions{
			ForceHTTPS:      cfg.Ingest.ForceHTTPS,
			VerifyReachable: cfg.Ingest.VerifyReachable,
			ProbeClient:     &http.Client{Timeout: cfg.Ingest.ProbeTimeout.Std()},
		}, logger.Named("ingest"))

		sweeper := ingest.NewSweeper(storage, db, cfg.Retention.TTL.Std(), cfg.Retention.Interval.Std(), logger.Named("sweeper"))
		go sweeper.Run(ctx)
	}

	// Initialize and start server
	srv := server.New(analyzer, rehoster, opts, logger.Named("http"))
	if err := srv.Start(cfg.Server.Port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newStorage returns the rehost backend and, for local storage, the directory
// the server must expose
func newStorage(ctx context.Context, cfg *config.Config) (ingest.Storage, string, error) {
	switch cfg.Storage.Type {
	case config.StorageS3:
		s3cfg := cfg.Storage.S3
		storage, err := ingest.NewS3Storage(ctx, ingest.S3Config{
			Bucket:        s3cfg.Bucket,
			Region:        s3cfg.Region,
			Endpoint:      s3cfg.Endpoint,
			AccessKey:     s3cfg.AccessKey,
			SecretKey:     s3cfg.SecretKey,
			PublicBaseURL: s3cfg.PublicBaseURL,
		})
		return storage, "", err
	default:
		storage, err := ingest.NewLocalStorage(cfg.Storage.UploadDir, cfg.Server.BaseURL, cfg.Storage.PublicPath)
		if err != nil {
			return nil, "", err
		}
		return storage, storage.Dir(), nil
	}
}
