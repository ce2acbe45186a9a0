package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bananaforge/internal/backend"
	"bananaforge/internal/configstore"
	"bananaforge/internal/http/handlers"
	"bananaforge/internal/http/httpapi"
	"bananaforge/internal/imagesource"
	"bananaforge/internal/infra"
	"bananaforge/internal/infra/credentials"
	"bananaforge/internal/orchestrator"
	"bananaforge/internal/promptsource"
	"bananaforge/internal/registry"
	"bananaforge/internal/sink"
	"bananaforge/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	sql := infra.NewSQLRunner(dbpool, logger)
	creds := credentials.NewStore(sql)
	configs := configstore.NewStore(sql)
	runs := registry.NewStore(sql)

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize local storage")
	}

	var remote storage.RemoteStore
	if cfg.RemoteBucket != "" {
		s3store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          cfg.RemoteBucket,
			Region:          cfg.RemoteRegion,
			Endpoint:        cfg.RemoteEndpoint,
			AccessKeyID:     cfg.RemoteAccessKeyID,
			SecretAccessKey: cfg.RemoteSecretAccessKey,
			ForcePathStyle:  cfg.RemoteForcePathStyle,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize remote storage")
		}
		remote = s3store
	} else {
		logger.Warn().Msg("no remote bucket configured, remote saves disabled")
	}

	prompts := newPromptSource(ctx, cfg, creds, logger)
	generator := newGenerator(ctx, cfg, creds, logger)

	orc := orchestrator.New(orchestrator.Options{
		Prompts: prompts,
		Images:  imagesource.NewSelector(remote, logger),
		Backend: generator,
		Sink: sink.New(sink.Options{
			Files:         files,
			Remote:        remote,
			SQL:           sql,
			DefaultFolder: cfg.DefaultTargetFolderID,
			Logger:        logger,
		}),
		Configs:    configs,
		Models:     configs,
		Logger:     logger,
		Categories: cfg.Categories,
		Defaults: orchestrator.Defaults{
			Resolution:     cfg.DefaultResolution,
			AspectRatio:    cfg.DefaultAspectRatio,
			ModelVersion:   cfg.DefaultModelVersion,
			DuplicateCount: cfg.DefaultDuplicateCount,
			TargetFolderID: cfg.DefaultTargetFolderID,
		},
		Parallelism:   cfg.Parallelism,
		RetryAttempts: cfg.RetryAttempts,
		RetryBackoff:  cfg.RetryBackoff,
	})

	runnerCtx, cancelRunner := context.WithCancel(ctx)
	defer cancelRunner()
	runner := orchestrator.NewRunner(orc, runs, logger, cfg.RunQueueSize, cfg.Parallelism)
	runner.Start(runnerCtx)

	app := &handlers.App{
		Runner: runner,
		Runs:   runs,
		Tokens: creds,
		Logger: logger,
	}
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(cfg, app))

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	// Queued runs get a grace period to finish before workers are cut off.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelDrain()
	if err := runner.Shutdown(drainCtx); err != nil {
		logger.Error().Err(err).Msg("runner shutdown incomplete, interrupting workers")
		cancelRunner()
	}
	logger.Info().Msg("server stopped")
}

// newPromptSource prefers an OpenAI-backed source, with the database token
// winning over the environment. Without any key it degrades to static
// templates.
func newPromptSource(ctx context.Context, cfg *infra.Config, creds *credentials.Store, logger infra.Logger) promptsource.Source {
	key, err := creds.OpenAIKey(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read openai key from store")
	}
	if key == "" {
		key = cfg.OpenAIAPIKey
	}
	if key == "" {
		logger.Warn().Msg("no openai key configured, using static prompt templates")
		return promptsource.NewStaticSource()
	}

	src, err := promptsource.NewOpenAISource(promptsource.OpenAIOptions{
		APIKey:  key,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize prompt source")
	}
	return src
}

func newGenerator(ctx context.Context, cfg *infra.Config, creds *credentials.Store, logger infra.Logger) backend.Generator {
	token, err := creds.ReplicateToken(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read replicate token from store")
	}
	if token == "" {
		token = cfg.ReplicateAPIToken
	}

	client, err := backend.NewReplicateClient(backend.ReplicateOptions{
		Token:     token,
		BaseURL:   cfg.ReplicateBaseURL,
		Logger:    logger,
		RateLimit: cfg.BackendRateLimit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize generation backend")
	}
	return client
}
