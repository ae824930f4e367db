package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"subgen/internal/config"
	"subgen/internal/fetch"
	"subgen/internal/httpapi"
	"subgen/internal/media"
	"subgen/internal/pipeline"
	"subgen/internal/storage"
	"subgen/internal/transcribe"
	"subgen/internal/translate"
	"subgen/internal/userstore"
	"subgen/pkg/log"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "subgend",
		Short:         "Subtitle generation daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), configFlag)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	return rootCmd
}

func runDaemon(ctx context.Context, configPath string) error {
	// a .env next to the binary is convenient in containers; absence is fine
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log.InitLogger(log.ParseLevel(cfg.System.LogLevel))

	if err := os.MkdirAll(cfg.System.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	lockPath := cfg.System.LockFile
	if lockPath == "" {
		lockPath = filepath.Join(cfg.System.DataDir, "subgen.lock")
	}
	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another instance is already running (lock %s)", lockPath)
	}
	defer fileLock.Unlock()

	store, err := userstore.NewSQLiteStore(filepath.Join(cfg.System.DataDir, "subgen.db"))
	if err != nil {
		return fmt.Errorf("open user store: %w", err)
	}
	defer store.Close()

	transcriber, err := transcribe.NewClient(&transcribe.Config{
		APIURL:       cfg.Transcriber.APIURL,
		APIToken:     cfg.Transcriber.APIToken,
		PollInterval: cfg.Transcriber.PollInterval(),
		PollTimeout:  cfg.Transcriber.PollTimeout(),
	})
	if err != nil {
		return fmt.Errorf("build transcription client: %w", err)
	}

	var translator pipeline.Translator
	if cfg.Translator.APIURL != "" && cfg.Translator.APIKey != "" {
		client, err := translate.NewClient(&translate.Config{
			APIURL: cfg.Translator.APIURL,
			APIKey: cfg.Translator.APIKey,
		})
		if err != nil {
			return fmt.Errorf("build translation client: %w", err)
		}
		translator = client
	} else {
		log.Warn("Translation service not configured, translated jobs will be rejected")
	}

	uploader := storage.NewHTTPUploader(cfg.Storage.Endpoint, cfg.Storage.PublicURL, cfg.Storage.Token)

	var registrar pipeline.DisplayRegistrar
	if cfg.Display.Endpoint != "" {
		registrar = pipeline.NewHTTPDisplayRegistrar(cfg.Display.Endpoint, cfg.Display.ResultBase, cfg.Display.Token)
	}

	orchestrator, err := pipeline.NewOrchestrator(pipeline.Config{
		WorkRoot:      cfg.Pipeline.WorkRoot,
		WatermarkPath: cfg.Media.WatermarkPath,
		CreditText:    cfg.Pipeline.CreditText,
	}, pipeline.Deps{
		Messenger:   newDaemonMessenger(uploader),
		Fetcher:     fetch.NewFetcher(),
		Transcriber: transcriber,
		Translator:  translator,
		Uploader:    uploader,
		Registrar:   registrar,
		NewEncoder: func(mediaPath string) pipeline.Encoder {
			return media.NewFFmpegWithCommands(cfg.Media.FFmpegPath, cfg.Media.FFprobePath, mediaPath)
		},
		Store: store,
	})
	if err != nil {
		return err
	}

	janitor := pipeline.NewJanitor(cfg.Pipeline.WorkRoot, cfg.Pipeline.JanitorMaxAge())
	if err := janitor.Start(cfg.Pipeline.JanitorSchedule); err != nil {
		return err
	}
	defer janitor.Stop()

	server := httpapi.NewServer(orchestrator, store, httpapi.WithCORSOrigin(cfg.Server.CORSOrigin))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Listening on %s", cfg.Server.HTTPAddr)
		serveErr <- server.ListenAndServe(cfg.Server.HTTPAddr)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
