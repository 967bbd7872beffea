package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codebuildervaibhav/speech-coach/internal/analysis"
	"github.com/codebuildervaibhav/speech-coach/internal/auth"
	"github.com/codebuildervaibhav/speech-coach/internal/cleanup"
	"github.com/codebuildervaibhav/speech-coach/internal/config"
	"github.com/codebuildervaibhav/speech-coach/internal/handlers"
	"github.com/codebuildervaibhav/speech-coach/internal/logging"
	"github.com/codebuildervaibhav/speech-coach/internal/queue"
	"github.com/codebuildervaibhav/speech-coach/internal/recorder"
	"github.com/codebuildervaibhav/speech-coach/internal/recordings"
	"github.com/codebuildervaibhav/speech-coach/internal/storage"
	"github.com/codebuildervaibhav/speech-coach/internal/transcription"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := "config/config.yaml"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger, logBuffer, logSink := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	// Ensure directories exist
	for _, dir := range []string{cfg.Storage.TempDir, cfg.Storage.OutputDir} {
		if err := cleanup.EnsureDir(dir); err != nil {
			logger.Fatal().Err(err).Msg("Failed to create directory")
		}
	}

	logger.Info().Msg("Initializing components...")

	// Media storage: Supabase when configured, local disk otherwise
	var media storage.MediaStore
	if cfg.SupabaseEnabled() {
		key := cfg.Supabase.ServiceKey
		if key == "" {
			key = cfg.Supabase.AnonKey
		}
		media = storage.NewSupabaseStore(storage.SupabaseConfig{
			URL:    cfg.Supabase.URL,
			Bucket: cfg.Supabase.Bucket,
			Key:    key,
		})
		logger.Info().Str("bucket", cfg.Supabase.Bucket).Msg("Supabase storage enabled")
	} else {
		local, err := storage.NewLocalStore(cfg.Storage.MediaDir, cfg.Server.PublicURL+"/media")
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize media storage")
		}
		media = local
		logger.Warn().Str("dir", cfg.Storage.MediaDir).Msg("Supabase not configured - storing media locally")
	}

	keySupabaseURL := ""
	if cfg.Supabase.ServiceKey != "" {
		keySupabaseURL = cfg.Supabase.URL
	}
	keys := storage.NewKeyStore(storage.KeyStoreConfig{
		Static: map[string]string{
			storage.KeyElevenLabs: cfg.Keys.ElevenLabs,
			storage.KeyAnthropic:  cfg.Keys.Anthropic,
		},
		SupabaseURL: keySupabaseURL,
		ServiceKey:  cfg.Supabase.ServiceKey,
		TTL:         cfg.Keys.CacheTTL,
		Logger:      logger,
	})

	transcriber, err := transcription.New(transcription.Options{
		Provider:     cfg.Transcription.Provider,
		BaseURL:      cfg.Transcription.BaseURL,
		Model:        cfg.Transcription.Model,
		Language:     cfg.Transcription.Language,
		SegmentGap:   cfg.Transcription.SegmentGap,
		Timeout:      cfg.Transcription.Timeout,
		WhisperModel: cfg.Transcription.WhisperModel,
		TempDir:      cfg.Storage.TempDir,
		Keys:         keys,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize transcriber")
	}

	analyzer := analysis.NewClaudeAnalyzer(analysis.Config{
		BaseURL:     cfg.Analysis.BaseURL,
		Model:       cfg.Analysis.Model,
		MaxTokens:   cfg.Analysis.MaxTokens,
		Temperature: *cfg.Analysis.Temperature,
		Timeout:     cfg.Analysis.Timeout,
		MaxRetries:  cfg.Analysis.MaxRetries,
		Keys:        keys,
		Logger:      logger,
	})

	// Database
	db, err := storage.NewMetadataDB(cfg.Storage.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	opts := recordings.Options{
		Store:        db,
		Media:        media,
		Transcriber:  transcriber,
		Analyzer:     analyzer,
		Reports:      storage.NewReportWriter(cfg.Storage.OutputDir),
		MaxFileSize:  int64(cfg.Limits.MaxFileSizeMB) << 20,
		WarnFileSize: int64(cfg.Limits.WarnFileSizeMB) << 20,
		ExtractAudio: cfg.Transcription.ExtractAudio,
		TempDir:      cfg.Storage.TempDir,
		Samples:      cfg.Demo.SampleRecordings,
		Logger:       logger,
	}

	// Google Drive client (optional - may fail if credentials not set up)
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); err == nil {
		driveClient, err := storage.NewDriveClient(context.Background(),
			cfg.GoogleDrive.CredentialsFile,
			cfg.GoogleDrive.TokenFile,
			cfg.GoogleDrive.FolderName,
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Google Drive not available - reports will only be saved locally")
		} else {
			opts.Drive = driveClient
			logger.Info().Str("folder", cfg.GoogleDrive.FolderName).Msg("Google Drive integration enabled")
		}
	} else {
		logger.Info().Msg("Google Drive credentials not found - saving locally only")
	}

	svc := recordings.NewService(opts)

	// Worker pool
	workerPool := queue.NewWorkerPool(cfg.Workers.Count, cfg.Workers.QueueSize, svc.Processor(), logger)
	svc.SetQueue(workerPool)
	workerPool.Start()

	registry := recorder.NewRegistry(recorder.Config{
		MaxDuration: cfg.Recorder.MaxDuration,
		MaxBytes:    cfg.Limits.MaxFileSizeMB << 20,
	})

	// Cleanup scheduler
	scheduler := cleanup.NewScheduler(cfg.Cleanup.Interval, logger)
	scheduler.Add("temp_files", cleanup.TempFiles(cfg.Storage.TempDir, cfg.Cleanup.MaxAge, logger))
	scheduler.Add("recorder_sessions", func() int { return registry.Sweep(cfg.Recorder.IdleTimeout) })
	scheduler.Add("finished_jobs", workerPool.Prune)
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start cleanup scheduler")
	}

	authSvc := newAuthService(cfg, logger)

	app := handlers.NewApp(handlers.AppConfig{
		BodyLimit: (cfg.Limits.MaxFileSizeMB + 1) << 20,
		AccessLog: logSink,
		Logger:    logger,
	})
	if local, ok := media.(*storage.LocalStore); ok {
		app.Static("/media", local.Root())
	}
	handlers.Register(app, handlers.Deps{
		Auth:       authSvc,
		Recordings: svc,
		Recorder:   registry,
		Keys:       keys,
		Logs:       logBuffer,
		Supabase:   cfg.SupabaseEnabled(),
		Logger:     logger,
	})

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		logger.Info().Msg("Shutting down gracefully...")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	addr := cfg.Addr()
	logger.Info().
		Str("addr", addr).
		Str("public_url", cfg.Server.PublicURL).
		Str("transcription", cfg.Transcription.Provider).
		Bool("drive", svc.DriveEnabled()).
		Msg("Server starting")

	if err := app.Listen(addr); err != nil {
		logger.Error().Err(err).Msg("Server failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	scheduler.Stop(ctx)
	workerPool.Stop()
	logger.Info().Msg("Server stopped")
}

// newAuthService wires hosted Supabase auth and the local admin login
func newAuthService(cfg *config.Config, logger zerolog.Logger) *auth.Service {
	opts := auth.Options{
		Admin: auth.Admin{
			Email:        cfg.Auth.Admin.Email,
			PasswordHash: cfg.Auth.Admin.PasswordHash,
		},
		RedirectURL: cfg.Server.PublicURL + "/dashboard",
		Logger:      logging.Component(logger, "auth"),
	}

	var fetcher auth.UserFetcher
	if cfg.SupabaseEnabled() {
		client := auth.NewSupabaseClient(cfg.Supabase.URL, cfg.Supabase.AnonKey)
		opts.Provider = client
		fetcher = client
	} else {
		logger.Warn().Msg("Supabase auth not configured - only the admin login is available")
	}

	if cfg.Supabase.JWTSecret != "" || fetcher != nil {
		opts.Verifier = auth.NewVerifier(cfg.Supabase.JWTSecret, fetcher)
	}
	if cfg.Supabase.JWTSecret != "" {
		opts.Issuer = auth.NewIssuer(cfg.Supabase.JWTSecret, cfg.Auth.SessionTTL)
	}
	return auth.NewService(opts)
}
