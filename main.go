package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"resumekit/internal/blocktype"
	"resumekit/internal/config"
	"resumekit/internal/domain"
	"resumekit/internal/gateway"
	mcpserver "resumekit/internal/mcp"
	"resumekit/internal/service"
	"resumekit/internal/storage"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	// MCP owns stdout; log to stderr.
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	// ── Persistence ──
	var (
		gw   domain.PersistenceGateway
		docs *storage.DocumentStore
	)
	if cfg.Driver == "" {
		db, err := storage.New(cfg.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("open local store")
		}
		defer db.Close()
		gw = storage.NewGateway(db)
		docs = storage.NewDocumentStore(db)
	} else {
		remote, err := gateway.New(cfg.GatewayConfig(), cfg.DBPassword)
		if err != nil {
			log.Fatal().Err(err).Str("driver", cfg.Driver).Msg("open remote gateway")
		}
		if cfg.Driver == string(gateway.DriverPostgres) {
			if err := gateway.EnsurePostgresSchema(ctx, remote); err != nil {
				log.Fatal().Err(err).Msg("ensure postgres schema")
			}
		}
		gw = remote
		// Document CRUD stays on the embedded store even with a remote
		// gateway; only block and link state is remote.
		db, err := storage.New(cfg.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("open local store")
		}
		defer db.Close()
		docs = storage.NewDocumentStore(db)
	}

	// ── Type registry ──
	// All registrations complete before any composition operation is served;
	// a missing type here is a configuration error, not a runtime one.
	registry := blocktype.NewBuiltinRegistry(log)
	if cfg.OverridesPath != "" {
		if err := blocktype.ApplyOverrides(registry, cfg.OverridesPath); err != nil {
			log.Fatal().Err(err).Str("path", cfg.OverridesPath).Msg("apply descriptor overrides")
		}
	}
	if ok, missing := registry.AllRegistered(domain.AllBlockTypes); !ok {
		log.Fatal().Interface("missing", missing).Msg("block types missing from registry")
	}

	// ── Services ──
	emitter := service.NopEmitter{}
	compositions := service.NewCompositionService(registry, gw, emitter, log, cfg.MaxBlocksPerDocument)
	blocks := service.NewBlockService(registry, gw, compositions, nil, emitter, log)

	reconciler, err := service.NewReconciler(compositions, cfg.ReconcileSpec, log)
	if err != nil {
		log.Fatal().Err(err).Msg("configure reconciler")
	}
	reconciler.Start()
	defer reconciler.Stop()

	if cfg.OverridesPath != "" {
		watcher, err := blocktype.NewOverrideWatcher(registry, cfg.OverridesPath, log)
		if err != nil {
			log.Fatal().Err(err).Msg("watch descriptor overrides")
		}
		watcher.Start()
		defer watcher.Stop()
	}

	// ── MCP ──
	srv := mcpserver.New(mcpserver.Deps{
		Emitter:      emitter,
		Registry:     registry,
		Blocks:       blocks,
		Compositions: compositions,
		Documents:    docs,
	})

	log.Info().Int("types", len(registry.List())).Msg("resumekit engine ready, serving MCP on stdio")
	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("mcp server exited")
	}
}
