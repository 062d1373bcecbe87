package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tachora/tachora/internal/access"
	"github.com/tachora/tachora/internal/api"
	"github.com/tachora/tachora/internal/blob"
	"github.com/tachora/tachora/internal/config"
	"github.com/tachora/tachora/internal/discord"
	"github.com/tachora/tachora/internal/ingest"
	"github.com/tachora/tachora/internal/note"
	"github.com/tachora/tachora/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Connect to Discord and start relaying messages (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tachora status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// backends holds the storage chosen by config. close releases whatever
// needs releasing; it is never nil.
type backends struct {
	blobs ingest.BlobSink
	notes ingest.NoteStore
	close func() error
}

func openBackends(cfg config.Config) (backends, error) {
	b := backends{close: func() error { return nil }}

	switch cfg.Blob.Backend {
	case config.BlobDir:
		b.blobs = blob.NewDirSink(cfg.Blob.Dir, cfg.Blob.BaseURL)
	default:
		sink, err := blob.NewAzureSink(cfg.Blob.ConnectionString, cfg.Blob.Container)
		if err != nil {
			return backends{}, fmt.Errorf("creating blob client: %w", err)
		}
		b.blobs = sink
	}

	switch cfg.Metadata.Backend {
	case config.MetadataSQLite:
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return backends{}, fmt.Errorf("opening storage: %w", err)
		}
		b.notes = store
		b.close = store.Close
	default:
		store, err := storage.NewCosmosStore(cfg.Metadata.Endpoint, cfg.Metadata.Key,
			cfg.Metadata.Database, cfg.Metadata.Container, cfg.Metadata.PartitionKey)
		if err != nil {
			return backends{}, fmt.Errorf("creating cosmos client: %w", err)
		}
		b.notes = store
	}

	return b, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "tachora version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	guard := access.ParseAllowlist(cfg.Access.AllowedUsers)
	if guard.Len() == 0 {
		printWarning("allowlist is empty; every sender will be refused")
	}
	slog.Info("access allowlist loaded", "users", guard.Len())

	stores, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()
	slog.Info("storage ready", "blob", cfg.Blob.Backend, "metadata", cfg.Metadata.Backend)

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}

	handler := ingest.NewHandler(ingest.Deps{
		Guard:     guard,
		Blobs:     stores.blobs,
		Notes:     stores.notes,
		Responder: discord.NewResponder(session),
		Builder:   note.NewBuilder(nil, nil),
		Logger:    logger,
	})
	bot := discord.New(session, handler, discord.Options{
		MaxAttachmentBytes: int64(cfg.Discord.MaxAttachmentBytes),
		HTTPClient:         &http.Client{Timeout: 60 * time.Second},
		Logger:             logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: api.NewRouter(api.Status{
			Version:         version,
			BlobBackend:     cfg.Blob.Backend,
			MetadataBackend: cfg.Metadata.Backend,
			AllowedUsers:    guard.Len(),
		}),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(gctx)
	})
	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "tachora listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	st, err := fetchStatus(client, fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port))
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		printStatus("Server", "running on port %d (version %s)", cfg.Server.Port, st.Version)
	}

	printStatus("Blob backend", "%s", cfg.Blob.Backend)
	printStatus("Metadata backend", "%s", cfg.Metadata.Backend)
	printStatus("Allowed users", "%d", access.ParseAllowlist(cfg.Access.AllowedUsers).Len())
	return nil
}

func fetchStatus(client *http.Client, baseURL string) (api.Status, error) {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return api.Status{}, fmt.Errorf("server not reachable, is tachora running? (%w)", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return api.Status{}, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	var st api.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return api.Status{}, fmt.Errorf("decoding status: %w", err)
	}
	return st, nil
}
