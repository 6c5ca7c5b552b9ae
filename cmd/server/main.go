package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/relaxr-go/api"
	"github.com/yourusername/relaxr-go/api/handlers"
	"github.com/yourusername/relaxr-go/internal/app"
	"github.com/yourusername/relaxr-go/internal/domain"
	"github.com/yourusername/relaxr-go/internal/infrastructure"
	"github.com/yourusername/relaxr-go/pkg/logger"
)

const (
	shutdownTimeout = 30 * time.Second
	sourceTimeout   = 60 * time.Second
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "relaxr-server",
	Short: "Relaxr server - converts YouTube videos into tagged MP3 files",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := app.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return runServer(config)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./configs, ~/.relaxr or /etc/relaxr)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(config *domain.Config) error {
	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	// Category logs (jobs, error) for the logs endpoint
	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Download.LogsDir,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize category logs: %w", err)
	}
	defer multiLog.Close()

	log.Info("Starting Relaxr server",
		zap.String("version", handlers.Version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("store", config.Store.DSN),
		zap.Int("max_concurrent_jobs", config.Download.MaxConcurrentJobs))

	if config.Download.TempDir != "" {
		if err := os.MkdirAll(config.Download.TempDir, 0755); err != nil {
			return fmt.Errorf("failed to create temp directory: %w", err)
		}
	}

	repo, err := infrastructure.NewSQLiteJobRepository(config.Store.DSN)
	if err != nil {
		return fmt.Errorf("failed to initialize job store: %w", err)
	}
	defer repo.Close()

	source := infrastructure.NewYouTubeSource(&http.Client{Timeout: sourceTimeout}, log)
	transcoder := infrastructure.NewFFmpegTranscoder(&config.Transcoder, config.Download.LogsDir, multiLog, log)
	dialogs := infrastructure.NewDialogService(&config.Dialog, log)
	notifier := infrastructure.NewNotificationService(&config.Notification, log)
	opener := infrastructure.NewFileOpener(log)

	pipeline := app.NewPipeline(transcoder, dialogs, config.Download.TempDir, config.Download.MusicDir, log)
	hub := app.NewEventHub(log)
	service := app.NewConversionService(repo, source, pipeline, hub, notifier, multiLog,
		config.Download.MaxConcurrentJobs, log)
	prefs := app.NewPreferences(config.Download.DefaultSaveDir)
	dispatcher := app.NewDispatcher(service, prefs, dialogs, opener, log)

	router := api.SetupRouter(api.Dependencies{
		Service:    service,
		Dispatcher: dispatcher,
		Events:     hub,
		Logger:     log,
		MultiLog:   multiLog,
		LogsDir:    config.Download.LogsDir,
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := shutdown(shutdownCtx, service, server); err != nil {
			log.Error("Shutdown incomplete", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		return err
	}

	log.Info("Server exited")
	return nil
}

// shutdown cancels running jobs before draining HTTP handlers, since a
// blocking convert request returns only when its job ends.
func shutdown(ctx context.Context, service *app.ConversionService, server *http.Server) error {
	var err error
	if serr := service.Shutdown(ctx); serr != nil {
		err = multierr.Append(err, fmt.Errorf("conversion service: %w", serr))
	}
	if serr := server.Shutdown(ctx); serr != nil {
		err = multierr.Append(err, fmt.Errorf("http server: %w", serr))
	}
	return err
}
