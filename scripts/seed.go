package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hirepulse/visitor-telemetry/internal/adapters/database"
	"github.com/hirepulse/visitor-telemetry/internal/application/services"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/clients/postgres"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/observability"
	"github.com/hirepulse/visitor-telemetry/pkg/config"
)

type demoVisitor struct {
	ip        string
	userAgent string
	source    string
	pages     []string
	// form is submitted after the pages are viewed; empty means the visitor stays anonymous.
	formEmail string
	formName  string
}

var demoVisitors = []demoVisitor{
	{
		ip:        "102.89.34.12",
		userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		source:    "google",
		pages:     []string{"/", "/pricing", "/features"},
	},
	{
		ip:        "41.58.200.7",
		userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
		source:    "linkedin",
		pages:     []string{"/careers", "/careers/backend-engineer"},
		formEmail: "amaka@example.com",
		formName:  "Amaka Obi",
	},
	{
		ip:        "197.210.54.90",
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0 Safari/537.36",
		source:    "newsletter",
		pages:     []string{"/blog/hiring-at-scale", "/pricing", "/contact"},
		formEmail: "tunde@acme.io",
		formName:  "Tunde Bello",
	},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("seed", "development")

	if err := postgres.Migrate(cfg.Database.DatabaseURL()); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				form_submissions,
				visitor_events,
				page_views,
				visitor_sessions,
				visitors
		`)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to reset tables")
		}
	}

	opts := services.Options{}
	visitors := database.NewVisitorAdapter(pgClient)
	identity := services.NewIdentityService(visitors, nil, opts)
	sessions := services.NewSessionService(database.NewSessionAdapter(pgClient), nil, opts)
	activity := services.NewActivityService(
		database.NewPageViewAdapter(pgClient),
		database.NewVisitorEventAdapter(pgClient),
		database.NewFormSubmissionAdapter(pgClient),
		identity,
		opts,
	)

	for _, d := range demoVisitors {
		visitorID := uuid.NewString()
		sessionID := uuid.NewString()
		started := time.Now().UTC()

		if _, err := identity.TrackVisitor(ctx, services.TrackVisitorCommand{
			VisitorID: visitorID,
			Page:      d.pages[0],
			IPAddress: d.ip,
			UserAgent: d.userAgent,
			UTMSource: d.source,
		}); err != nil {
			log.Error().Err(err).Str("visitor_id", visitorID).Msg("failed to track visitor")
			continue
		}

		for _, page := range d.pages {
			if _, err := activity.TrackPageView(ctx, services.TrackPageViewCommand{
				VisitorID: visitorID,
				URL:       "https://hirepulse.example" + page,
			}); err != nil {
				log.Error().Err(err).Str("page", page).Msg("failed to track page view")
			}
		}

		if d.formEmail != "" {
			if _, err := activity.TrackFormSubmission(ctx, services.TrackFormCommand{
				VisitorID: visitorID,
				FormType:  "contact",
				Page:      d.pages[len(d.pages)-1],
				Email:     d.formEmail,
				Name:      d.formName,
			}); err != nil {
				log.Error().Err(err).Msg("failed to track form submission")
			}
		}

		end := started.Add(time.Duration(len(d.pages)) * 45 * time.Second)
		if _, err := sessions.TrackSession(ctx, services.TrackSessionCommand{
			VisitorID: visitorID,
			SessionID: sessionID,
			IPAddress: d.ip,
			UserAgent: d.userAgent,
			EntryPage: d.pages[0],
			ExitPage:  d.pages[len(d.pages)-1],
			EndTime:   &end,
		}); err != nil {
			log.Error().Err(err).Msg("failed to track session")
		}

		log.Info().Str("visitor_id", visitorID).Int("pages", len(d.pages)).Bool("lead", d.formEmail != "").Msg("seeded visitor")
	}

	log.Info().Int("visitors", len(demoVisitors)).Msg("seeding complete")
}
