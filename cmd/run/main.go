package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"bananaforge/internal/backend"
	"bananaforge/internal/configstore"
	"bananaforge/internal/domain"
	"bananaforge/internal/imagesource"
	"bananaforge/internal/infra"
	"bananaforge/internal/infra/credentials"
	"bananaforge/internal/orchestrator"
	"bananaforge/internal/promptsource"
	"bananaforge/internal/sink"
	"bananaforge/internal/storage"
)

// listFlag collects repeated flag values.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

func main() {
	_ = godotenv.Load()

	var (
		category     = flag.String("category", "", "prompt category; random configured category when empty")
		minCount     = flag.Int("min-count", -1, "minimum generated prompt count")
		maxCount     = flag.Int("max-count", -1, "maximum generated prompt count")
		mode         = flag.String("mode", "", "prompt mode: standard or random")
		resolution   = flag.String("resolution", "", "output resolution override")
		aspectRatio  = flag.String("aspect-ratio", "", "output aspect ratio override")
		modelVersion = flag.String("model", "", "model version override")
		saveRemotely = flag.Bool("save-remotely", false, "mirror results to the remote store")
		targetFolder = flag.String("target-folder", "", "remote folder for stored results")
		spawn        = flag.Bool("spawn-duplicates", false, "duplicate one prompt max-count times")
		prefix       = flag.String("random-image-prefix", "", "mark consumed source images with this prefix")
	)
	var prompts, imageURLs, sourceFolders, prefixFolders listFlag
	flag.Var(&prompts, "prompt", "verbatim prompt, repeatable")
	flag.Var(&imageURLs, "image-url", "input image URL, repeatable")
	flag.Var(&sourceFolders, "source-folder", "remote folder to pick input images from, repeatable")
	flag.Var(&prefixFolders, "prefix-folder", "folder where consumed images get the prefix, repeatable")
	flag.Parse()

	req := domain.JobRequest{
		SaveRemotely:          *saveRemotely,
		TargetFolderID:        *targetFolder,
		Category:              *category,
		Resolution:            *resolution,
		AspectRatio:           *aspectRatio,
		Mode:                  domain.Mode(*mode),
		ModelVersion:          *modelVersion,
		ImageURLs:             imageURLs,
		Prompts:               prompts,
		SourceFolderIDs:       sourceFolders,
		SpawnDuplicates:       *spawn,
		RandomImagePrefix:     *prefix,
		PrefixTargetFolderIDs: prefixFolders,
	}
	if *minCount >= 0 {
		req.MinCount = minCount
	}
	if *maxCount >= 0 {
		req.MaxCount = maxCount
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	sql := infra.NewSQLRunner(dbpool, logger)
	creds := credentials.NewStore(sql)
	configs := configstore.NewStore(sql)

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
	}

	orc := orchestrator.New(orchestrator.Options{
		Prompts: newPromptSource(ctx, cfg, creds, logger),
		Images:  imagesource.NewSelector(remote, logger),
		Backend: newGenerator(ctx, cfg, creds, logger),
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

	outcome := orc.Run(ctx, uuid.NewString(), req)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(outcome); err != nil {
		logger.Fatal().Err(err).Msg("failed to encode outcome")
	}
	if domain.StateForOutcome(outcome) == domain.RunStateFailed {
		os.Exit(1)
	}
}

func newPromptSource(ctx context.Context, cfg *infra.Config, creds *credentials.Store, logger infra.Logger) promptsource.Source {
	key, err := creds.OpenAIKey(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read openai key from store")
	}
	if key == "" {
		key = cfg.OpenAIAPIKey
	}
	if key == "" {
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
