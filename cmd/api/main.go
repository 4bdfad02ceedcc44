package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/jordanmt/career-compass/backend/internal/auth"
	"github.com/jordanmt/career-compass/backend/internal/blob"
	"github.com/jordanmt/career-compass/backend/internal/config"
	"github.com/jordanmt/career-compass/backend/internal/handler"
	chathandler "github.com/jordanmt/career-compass/backend/internal/handler/chat"
	"github.com/jordanmt/career-compass/backend/internal/model/persona"
	"github.com/jordanmt/career-compass/backend/internal/ratelimit"
	"github.com/jordanmt/career-compass/backend/internal/service/agent"
	memoryservice "github.com/jordanmt/career-compass/backend/internal/service/memory"
	"github.com/jordanmt/career-compass/backend/internal/service/routing"
	"github.com/jordanmt/career-compass/backend/internal/service/tools"
	"github.com/jordanmt/career-compass/backend/internal/service/turn"
	"github.com/jordanmt/career-compass/backend/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	if !cfg.AI.Enabled() {
		log.Fatal("ark credentials missing: provide ARK_API_KEY + ARK_MODEL, or the AK/SK pair")
	}

	// Persona graph is validated here; a dangling hand-off edge fails fast.
	registry, err := persona.NewRegistry(persona.Seed())
	if err != nil {
		log.Fatalf("invalid persona registry: %v", err)
	}

	store, err := openStore(cfg.Storage)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer store.Close()

	blobStore, err := blob.NewLocalStore(cfg.Blob.Dir, cfg.Blob.BaseURL)
	if err != nil {
		log.Fatalf("failed to open blob storage: %v", err)
	}

	toolRegistry := tools.NewRegistry(blobStore)
	provider, err := agent.NewArkProvider(ctx, cfg.AI, registry, toolRegistry)
	if err != nil {
		log.Fatalf("failed to initialize chat models: %v", err)
	}
	log.Println("chat models initialized for all personas")

	memorySvc := memoryservice.NewService(store, cfg.Limits.MemoryCap)
	adapter := agent.New(registry, provider, toolRegistry)
	router := routing.New(registry)
	turns := turn.NewManager(registry, router, adapter, store, memorySvc, cfg.Limits.TurnTimeout)

	limiter := ratelimit.NewDailyQuota()
	defer limiter.Close()

	httpHandler := handler.NewRouter(handler.Deps{
		Registry: registry,
		Turns:    turns,
		Store:    store,
		Verifier: auth.NewVerifier(cfg.Auth.JWTSecret),
		Limiter:  limiter,
		Quotas: chathandler.Quotas{
			Guest:   cfg.Limits.GuestDailyMessages,
			Regular: cfg.Limits.RegularDailyMessages,
		},
		Blobs: blobStore,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return memorySvc.Run(ctx) })
	g.Go(func() error { return runServer(ctx, cfg.Server, httpHandler) })
	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func openStore(cfg config.StorageConfig) (storage.Store, error) {
	if cfg.SQLitePath == "" {
		log.Println("SQLITE_PATH not set, using in-memory storage")
		return storage.NewMemoryStore(), nil
	}
	return storage.OpenSQLite(cfg.SQLitePath)
}

func runServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("career-compass backend listening on %s", serverCfg.Addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
