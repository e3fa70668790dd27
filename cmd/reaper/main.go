package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hirepulse/visitor-telemetry/internal/adapters/events"
	"github.com/hirepulse/visitor-telemetry/internal/adapters/presence"
	"github.com/hirepulse/visitor-telemetry/internal/application/services"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/clients/redis"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/observability"
	"github.com/hirepulse/visitor-telemetry/pkg/config"
)

// reaper runs a single presence sweep against the shared Redis register,
// for deployments that schedule it externally instead of inside the API.
func main() {
	timeout := flag.Duration("timeout", time.Minute, "upper bound for the sweep")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-reaper", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Redis client")
	}
	defer redisClient.Close()

	eventBus := events.NewRedisEventBus(redisClient)
	defer eventBus.Close()

	presenceService := services.NewPresenceService(
		presence.NewRedisRegister(redisClient),
		nil,
		nil,
		services.Options{StoreTimeout: cfg.Tracking.StoreTimeout()},
	)
	presenceService.SetEventBus(eventBus)

	result, err := presenceService.Reap(ctx)
	if err != nil {
		log.Error().Err(err).Msg("presence sweep failed")
		os.Exit(1)
	}

	log.Info().
		Int("marked_idle", result.MarkedIdle).
		Int("expired", result.Expired).
		Int("failed", result.Failed).
		Msg("presence sweep complete")
}
