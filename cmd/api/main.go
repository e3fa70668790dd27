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

	"github.com/rs/zerolog/log"

	"github.com/hirepulse/visitor-telemetry/internal/adapters/cache"
	"github.com/hirepulse/visitor-telemetry/internal/adapters/database"
	"github.com/hirepulse/visitor-telemetry/internal/adapters/enrichment"
	"github.com/hirepulse/visitor-telemetry/internal/adapters/events"
	"github.com/hirepulse/visitor-telemetry/internal/adapters/memory"
	"github.com/hirepulse/visitor-telemetry/internal/adapters/presence"
	"github.com/hirepulse/visitor-telemetry/internal/adapters/search"
	"github.com/hirepulse/visitor-telemetry/internal/api/handlers"
	"github.com/hirepulse/visitor-telemetry/internal/api/middleware"
	"github.com/hirepulse/visitor-telemetry/internal/api/routes"
	"github.com/hirepulse/visitor-telemetry/internal/application/services"
	"github.com/hirepulse/visitor-telemetry/internal/domain/providers"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/clients/postgres"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/clients/redis"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/clients/typesense"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/observability"
	"github.com/hirepulse/visitor-telemetry/pkg/config"
)

// stores groups the durable repositories of whichever backend is configured
type stores struct {
	visitors  repositories.VisitorRepository
	sessions  repositories.SessionRepository
	pageViews repositories.PageViewRepository
	events    repositories.VisitorEventRepository
	forms     repositories.FormSubmissionRepository
	// live is only set by the memory backend; postgres deployments keep presence in Redis.
	live repositories.LiveVisitorRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			observability.EnableOTelLogs(cfg.OTEL.ServiceName)
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	checks := map[string]handlers.Pinger{}

	var st stores
	switch cfg.Tracking.StoreBackend {
	case "memory":
		mem := memory.NewStore()
		st = stores{
			visitors:  mem.Visitors(),
			sessions:  mem.Sessions(),
			pageViews: mem.PageViews(),
			events:    mem.Events(),
			forms:     mem.Forms(),
			live:      mem.LiveVisitors(),
		}
		log.Warn().Msg("using in-memory visitor store; data is lost on restart")
	default:
		if cfg.Database.Migrate {
			if err := postgres.Migrate(cfg.Database.DatabaseURL()); err != nil {
				log.Fatal().Err(err).Msg("failed to run database migrations")
			}
		}
		pgClient, err := postgres.NewClient(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
		}
		defer pgClient.Close()
		checks["postgres"] = pgClient

		st = stores{
			visitors:  database.NewVisitorAdapter(pgClient),
			sessions:  database.NewSessionAdapter(pgClient),
			pageViews: database.NewPageViewAdapter(pgClient),
			events:    database.NewVisitorEventAdapter(pgClient),
			forms:     database.NewFormSubmissionAdapter(pgClient),
		}
	}

	// Redis backs presence, the analytics cache and the event bus. Without it the
	// process falls back to in-process equivalents, which only work for a single replica.
	var (
		cacheProvider providers.CacheProvider
		eventBus      providers.EventBus
	)
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable; presence and events are process-local")
	} else {
		defer redisClient.Close()
		checks["redis"] = redisClient
		st.live = presence.NewRedisRegister(redisClient)
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
	}
	if st.live == nil {
		st.live = memory.NewStore().LiveVisitors()
	}
	if eventBus == nil {
		eventBus = events.NewMemoryEventBus()
	}

	enrichmentProvider := enrichment.NewProvider(cfg.GeoIP.DBPath)
	defer enrichmentProvider.Close()

	opts := services.Options{
		StoreTimeout:      cfg.Tracking.StoreTimeout(),
		EnrichmentTimeout: cfg.Tracking.EnrichmentTimeout(),
		RecentLimit:       cfg.Tracking.RecentActivityLimit,
		HeartbeatStep:     cfg.Presence.HeartbeatStep(),
	}

	identityService := services.NewIdentityService(st.visitors, enrichmentProvider, opts)
	identityService.SetMetrics(metrics)
	sessionService := services.NewSessionService(st.sessions, enrichmentProvider, opts)
	sessionService.SetMetrics(metrics)
	activityService := services.NewActivityService(st.pageViews, st.events, st.forms, identityService, opts)
	activityService.SetMetrics(metrics)
	presenceService := services.NewPresenceService(st.live, st.visitors, enrichmentProvider, opts)
	presenceService.SetMetrics(metrics)
	presenceService.SetEventBus(eventBus)
	analyticsService := services.NewAnalyticsService(st.visitors, st.sessions, st.pageViews, st.forms, opts)
	analyticsService.SetMetrics(metrics)
	if cacheProvider != nil {
		analyticsService.SetCache(cacheProvider, cfg.Tracking.AnalyticsCacheTTLSeconds)
	}
	queryService := services.NewVisitorQueryService(st.visitors, st.sessions, st.pageViews, st.events, st.forms, opts)

	if cfg.Typesense.Enabled {
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable; visitor search disabled")
		} else {
			adapter := search.NewTypesenseAdapter(tsClient)
			if err := adapter.InitSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to init Typesense schema")
			}
			identityService.SetSearch(adapter)
			queryService.SetSearch(adapter)
		}
	}

	reaper := services.NewPresenceReaper(presenceService, cfg.Presence.ReapSchedule)
	if err := reaper.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start presence reaper")
	}

	router := routes.NewRouter(
		handlers.NewTrackingHandler(identityService, sessionService, activityService),
		handlers.NewPresenceHandler(presenceService),
		handlers.NewVisitorHandler(queryService, identityService),
		handlers.NewAnalyticsHandler(analyticsService),
		handlers.NewHealthHandler(checks),
		handlers.NewSSEHandler(eventBus),
		routes.Config{
			Visitors:       st.visitors,
			AllowedOrigins: middleware.ParseOrigins(cfg.Server.AllowedOrigins),
			Metrics:        metrics,
		},
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router.SetupRoutes(),
		ReadTimeout: 15 * time.Second,
		// Presence streams are long lived, so writes are bounded per event rather than per response.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Str("store", cfg.Tracking.StoreBackend).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	reaper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Closing the bus first ends open presence streams so Shutdown does not wait on them.
	if err := eventBus.Close(); err != nil {
		log.Error().Err(err).Msg("error closing event bus")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	log.Info().Msg("server stopped")
}
