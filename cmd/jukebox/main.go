// Package main provides the jukebox daemon entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	apiconnect "github.com/osa030/punjabibox/internal/api/connect"
	"github.com/osa030/punjabibox/internal/app/catalog"
	"github.com/osa030/punjabibox/internal/app/library"
	"github.com/osa030/punjabibox/internal/app/liked"
	"github.com/osa030/punjabibox/internal/app/notification"
	"github.com/osa030/punjabibox/internal/app/playback"
	"github.com/osa030/punjabibox/internal/app/playlist"
	"github.com/osa030/punjabibox/internal/app/search"
	"github.com/osa030/punjabibox/internal/app/upload"
	"github.com/osa030/punjabibox/internal/infra/audio"
	"github.com/osa030/punjabibox/internal/infra/config"
	"github.com/osa030/punjabibox/internal/infra/logger"
	"github.com/osa030/punjabibox/internal/infra/store"
)

const shutdownTimeout = 10 * time.Second

var (
	app        = kingpin.New("jukebox", "Punjabi jukebox daemon")
	configPath = app.Flag("config", "Path to config file").Default("config/jukebox.yaml").Envar("JUKEBOX_CONFIG").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (overrides log.output)").String()

	checkConfigCmd = app.Command("check-config", "Validate the config file and exit")
)

func init() {
	app.Command("start", "Start the daemon (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	if command == checkConfigCmd.FullCommand() {
		printConfigSummary(cfg)
		return
	}

	closer, err := initLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	zlog.Info().Msgf("Loaded config from %s", *configPath)

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Daemon error: %v", err)
		closer.Close()
		os.Exit(1)
	}
}

func initLogger(cfg *config.Config) (io.Closer, error) {
	loggerConfig := logger.Config{
		Output: cfg.Log.Output,
		Level:  cfg.Log.Level,
		File:   cfg.Log.File,
	}
	// Command-line flags win over the config file
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	return logger.Init(loggerConfig)
}

// run executes the daemon. Using a separate function ensures deferred
// cleanup runs before the process exits.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lib, cleanup, err := buildLibrary(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	lib.Start(ctx)
	status := lib.CatalogStatus()
	if status.Available {
		zlog.Info().Msgf("Catalog loaded: %d songs", status.Count)
	} else {
		zlog.Warn().Msgf("Catalog unavailable: %s", status.Error)
	}

	if cfg.Server.AdminToken == "" {
		zlog.Warn().Msg("Admin token not configured, admin endpoints are open on the local address")
	}

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewLibraryServiceHandler(apiconnect.NewLibraryService(lib)))
	mux.Handle(apiconnect.NewAdminServiceHandler(
		apiconnect.NewAdminService(lib),
		connect.WithInterceptors(apiconnect.NewAdminAuthInterceptor(cfg.Server.AdminToken)),
	))

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", cfg.Server.Addr)
	}
	zlog.Info().Msgf("Starting server: addr=%s", ln.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server error")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zlog.Info().Msg("Shutting down...")

		// Close the library first so Watch streams return
		lib.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Error().Msgf("Failed to shutdown server: %v", err)
		}
		return nil
	})

	// Execute startup hook once the listener is bound
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	err = g.Wait()
	zlog.Info().Msg("Server stopped")
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")
	return err
}

// buildLibrary wires the catalog source, local collections, search and
// playback into a library service.
func buildLibrary(ctx context.Context, cfg *config.Config) (*library.Service, func(), error) {
	backend, err := newBackend(cfg.Storage)
	if err != nil {
		return nil, nil, err
	}

	source, closeSource, err := catalog.NewSourceFromConfig(ctx, cfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create catalog source")
	}
	storage, err := catalog.NewStorageFromConfig(cfg)
	if err != nil {
		closeSource()
		return nil, nil, errors.Wrap(err, "failed to create audio storage")
	}
	zlog.Info().Msgf("Catalog source: %s (uploads enabled: %v)", cfg.Catalog.Source, storage != nil)

	output := audio.NewOutput(audio.Config{
		SampleRate:  cfg.Playback.SampleRate,
		BufferSize:  time.Duration(cfg.Playback.BufferMs) * time.Millisecond,
		HTTPTimeout: time.Duration(cfg.Playback.HTTPTimeoutSec) * time.Second,
	})

	lib := library.New(library.Deps{
		Source:  source,
		Storage: storage,
		Playlists: playlist.NewManager(backend, playlist.Config{
			DefaultCoverURL: cfg.Playlists.DefaultCoverURL,
			CreatedBy:       cfg.Playlists.CreatedBy,
		}),
		Liked:        liked.NewManager(backend),
		Search:       search.NewEngine(cfg.Debounce()),
		Playback:     playback.NewController(output, playback.Config{TrailSize: cfg.Playback.TrailSize}),
		Notification: notification.NewManager(),
		Prober:       audio.ProbeDuration,
		Upload: upload.Config{
			MaxBytes:   int64(cfg.Upload.MaxSizeMB) << 20,
			MaxMinutes: cfg.Upload.MaxMinutes,
		},
		FetchTimeout: cfg.FetchTimeout(),
	})

	cleanup := func() {
		lib.Close()
		closeSource()
	}
	return lib, cleanup, nil
}

func newBackend(cfg config.StorageConfig) (store.Backend, error) {
	if cfg.Backend == "memory" {
		zlog.Warn().Msg("Using in-memory storage, likes and playlists are not persisted")
		return store.NewMemoryBackend(), nil
	}
	backend, err := store.NewFileBackend(cfg.DataDir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open data dir %s", cfg.DataDir)
	}
	zlog.Info().Msgf("Data dir: %s", backend.Dir())
	return backend, nil
}

// printConfigSummary prints the effective configuration without secrets.
func printConfigSummary(cfg *config.Config) {
	fmt.Println("Config OK")
	fmt.Printf("  Server:      %s (admin token set: %v)\n", cfg.Server.Addr, cfg.Server.AdminToken != "")
	fmt.Printf("  Storage:     %s %s\n", cfg.Storage.Backend, cfg.Storage.DataDir)
	fmt.Printf("  Catalog:     %s (timeout %s)\n", cfg.Catalog.Source, cfg.FetchTimeout())
	fmt.Printf("  Uploads:     %v (max %d MB)\n", cfg.Supabase.Enabled(), cfg.Upload.MaxSizeMB)
	fmt.Printf("  Search:      debounce %s\n", cfg.Debounce())
	fmt.Printf("  Log:         %s %s\n", cfg.Log.Level, cfg.Log.Output)
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
