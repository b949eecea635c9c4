// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/socialsync/socialsync/internal/api/rest"
	"github.com/socialsync/socialsync/internal/app/ingest"
	"github.com/socialsync/socialsync/internal/app/recommend"
	"github.com/socialsync/socialsync/internal/infra/config"
	"github.com/socialsync/socialsync/internal/infra/lastfm"
	"github.com/socialsync/socialsync/internal/infra/logger"
	"github.com/socialsync/socialsync/internal/infra/spotify"
	"github.com/socialsync/socialsync/internal/infra/store"
)

var (
	app        = kingpin.New("socialsync-server", "socialsync recommendation server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	st, err := store.Open(store.Config{DSN: cfg.Database.DSN()})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	if err := st.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	// Per-user Spotify clients: each tag has its own refresh token
	// written by the auth tool.
	factory := func(ctx context.Context, tag string) (ingest.MusicClient, error) {
		token, err := spotify.LoadUserToken(cfg.Spotify.TokenDir, tag)
		if err != nil {
			return nil, err
		}
		return spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RefreshToken: token,
		})
	}

	var tagger ingest.GenreTagger
	if cfg.Lastfm.APIKey != "" {
		lfm, err := lastfm.New(lastfm.Config{APIKey: cfg.Lastfm.APIKey})
		if err != nil {
			return fmt.Errorf("failed to create last.fm client: %w", err)
		}
		tagger = lfm
		zlog.Info().Msg("Last.fm genre fallback enabled")
	}

	ingestSvc, err := ingest.New(factory, st, tagger, cfg.Ingest.RecentPlayLimit)
	if err != nil {
		return fmt.Errorf("failed to create ingest service: %w", err)
	}

	engine, err := recommend.New(st, cfg.Recommend.Settings)
	if err != nil {
		return fmt.Errorf("failed to create recommendation engine: %w", err)
	}

	api := rest.NewServer(engine, ingestSvc)

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(api.Handler(), &http2.Server{}),
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	// Give the server a moment to start before running hooks
	time.Sleep(100 * time.Millisecond)
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
