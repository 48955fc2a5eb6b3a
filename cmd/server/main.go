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

	"github.com/david/bid-filter/internal/api"
	"github.com/david/bid-filter/internal/config"
	"github.com/david/bid-filter/internal/dataset"
	"github.com/david/bid-filter/internal/db"
	"github.com/david/bid-filter/internal/models"
	"github.com/david/bid-filter/internal/persist"
	"github.com/david/bid-filter/internal/profile"
	"github.com/david/bid-filter/internal/session"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if cfg.NeedsDatabase() {
		pool, err = db.Connect(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()

		if cfg.Database.Migrate {
			if err := db.ApplyMigrations(ctx, pool); err != nil {
				log.Fatalf("Migration failed: %v", err)
			}
		}
	}

	var store *db.Store
	if pool != nil {
		store = db.NewStore(pool)
	}

	records, err := loadRecords(ctx, cfg, store)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}
	catalog := dataset.NewCatalog(records)
	log.Printf("Loaded %d opportunities from %s source", catalog.Len(), cfg.Dataset.Source)

	durables, err := durableFactory(cfg, pool)
	if err != nil {
		log.Fatalf("Failed to set up durable storage: %v", err)
	}

	opts := session.Options{
		MaxKeywords: cfg.Filters.MaxKeywords,
		ActionDelay: cfg.Gate.ActionDelay(),
		ApplyDelay:  cfg.Gate.ApplyDelay(),
		CurrentKey:  cfg.Filters.CurrentKey,
		PresetKey:   cfg.Filters.PresetKey,
		IdleTTL:     cfg.Sessions.IdleTTL(),
		MaxLive:     cfg.Sessions.MaxLive,
	}
	if store != nil && cfg.Dataset.Source == config.SourcePostgres {
		opts.Mirror = store
	}
	registry := session.NewRegistry(catalog, durables, opts)
	go registry.Run(ctx, cfg.Sessions.SweepInterval())
	go reloadOnHangup(ctx, cfg, store, catalog)

	issuer, err := profile.NewIssuer(cfg.Profile.Secret, cfg.Profile.TTL())
	if err != nil {
		log.Fatalf("Failed to set up profiles: %v", err)
	}

	srv := api.NewServer(registry, issuer, api.Options{CORSOrigins: cfg.Server.CORSOrigins})

	go func() {
		log.Printf("Server starting on port %s...", cfg.Server.Port)
		if err := srv.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Print("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// loadRecords reads the configured dataset. A postgres source with an empty
// table is seeded from the embedded sample when seed_if_empty is set.
func loadRecords(ctx context.Context, cfg *config.Config, store *db.Store) ([]models.Opportunity, error) {
	var loader dataset.Loader
	if store != nil {
		loader = store
	}
	records, err := dataset.Load(ctx, cfg.Dataset.Source, cfg.Dataset.Path, loader)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 || cfg.Dataset.Source != config.SourcePostgres || !cfg.Database.SeedIfEmpty {
		return records, nil
	}

	seed, err := dataset.LoadEmbedded()
	if err != nil {
		return nil, err
	}
	if err := store.UpsertOpportunities(ctx, seed); err != nil {
		return nil, err
	}
	log.Printf("Seeded %d sample opportunities", len(seed))
	return store.LoadOpportunities(ctx)
}

// reloadOnHangup reloads the dataset into the shared catalog on SIGHUP.
func reloadOnHangup(ctx context.Context, cfg *config.Config, store *db.Store, catalog *dataset.Catalog) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			records, err := loadRecords(ctx, cfg, store)
			if err != nil {
				log.Printf("Dataset reload failed: %v", err)
				continue
			}
			catalog.Replace(records)
			log.Printf("Reloaded %d opportunities", len(records))
		}
	}
}

func durableFactory(cfg *config.Config, pool *pgxpool.Pool) (session.DurableFactory, error) {
	switch cfg.Durable.Backend {
	case config.BackendMemory:
		return session.MemoryDurables(), nil
	case config.BackendFile:
		if err := os.MkdirAll(cfg.Durable.Dir, 0o755); err != nil {
			return nil, err
		}
		return session.FileDurables(cfg.Durable.Dir), nil
	case config.BackendPostgres:
		snapshots := db.NewSnapshotStore(pool)
		return func(id uuid.UUID) (persist.DurableChannel, error) {
			return snapshots.ForProfile(id), nil
		}, nil
	}
	return nil, errors.New("unknown durable backend " + cfg.Durable.Backend)
}
