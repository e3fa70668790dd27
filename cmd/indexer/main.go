package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hirepulse/visitor-telemetry/internal/adapters/database"
	"github.com/hirepulse/visitor-telemetry/internal/adapters/search"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/clients/postgres"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/clients/typesense"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/observability"
	"github.com/hirepulse/visitor-telemetry/pkg/config"
)

const pageSize = 500

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete the visitors collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-indexer", cfg.Env)

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatal().Err(err).Str("interval", intervalValue).Msg("invalid interval")
		}
		if interval <= 0 {
			log.Fatal().Msg("interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, cfg, reset); err != nil {
			log.Error().Err(err).Msg("reindex failed")
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Info().Dur("next_in", interval).Msg("reindex complete")

		select {
		case <-ctx.Done():
			log.Info().Msg("reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, cfg *config.Config, reset bool) error {
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}
	index := search.NewTypesenseAdapter(tsClient)

	if reset {
		log.Info().Msg("reset requested, deleting visitors collection")
		if err := index.DropCollection(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to delete collection")
		}
	}
	if err := index.InitSchema(ctx); err != nil {
		return err
	}

	return reindex(ctx, database.NewVisitorAdapter(pgClient), index)
}

// reindex pages through every visitor, most recently seen first, and upserts it into the index
func reindex(ctx context.Context, visitors repositories.VisitorRepository, index repositories.VisitorSearchRepository) error {
	indexed, failed := 0, 0
	for offset := 0; ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, total, err := visitors.List(ctx, repositories.VisitorFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("failed to list visitors at offset %d: %w", offset, err)
		}

		for _, v := range page {
			if err := index.Index(ctx, v); err != nil {
				failed++
				log.Warn().Err(err).Str("visitor_id", v.VisitorID).Msg("failed to index visitor")
				continue
			}
			indexed++
		}

		if len(page) < pageSize || offset+len(page) >= total {
			break
		}
	}

	log.Info().Int("indexed", indexed).Int("failed", failed).Msg("indexing complete")
	return nil
}
