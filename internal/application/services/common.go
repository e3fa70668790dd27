package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/go-playground/validator/v10"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	"github.com/hirepulse/visitor-telemetry/internal/domain/providers"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/observability"
	apperrors "github.com/hirepulse/visitor-telemetry/pkg/errors"
)

const (
	// LeadScoreIncrement is added to a visitor's lead score for every qualifying form submission.
	LeadScoreIncrement = 10

	DefaultStoreTimeout      = 3 * time.Second
	DefaultEnrichmentTimeout = 500 * time.Millisecond
	DefaultRecentLimit       = 20
	DefaultHeartbeatStep     = 5 * time.Second
)

// Options carries the tuning shared by the ingestion and query services.
type Options struct {
	Clock             quartz.Clock
	StoreTimeout      time.Duration
	EnrichmentTimeout time.Duration
	RecentLimit       int
	HeartbeatStep     time.Duration
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = quartz.NewReal()
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = DefaultStoreTimeout
	}
	if o.EnrichmentTimeout <= 0 {
		o.EnrichmentTimeout = DefaultEnrichmentTimeout
	}
	if o.RecentLimit <= 0 {
		o.RecentLimit = DefaultRecentLimit
	}
	if o.HeartbeatStep <= 0 {
		o.HeartbeatStep = DefaultHeartbeatStep
	}
	return o
}

func (o Options) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.StoreTimeout)
}

func (o Options) now() time.Time {
	return o.Clock.Now().UTC()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateCommand rejects a command before any store access.
func validateCommand(cmd any) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError(err.Error())
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", fe.Field()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		case "min", "gte":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return apperrors.NewValidationError(strings.Join(messages, "; "))
}

// enricher bounds calls into the enrichment provider. Failures and timeouts
// degrade to whatever facts are available and are only logged.
type enricher struct {
	provider providers.EnrichmentProvider
	timeout  time.Duration
}

func (e enricher) enrich(ctx context.Context, ip, userAgent string) entities.EnrichmentFacts {
	if e.provider == nil || (ip == "" && userAgent == "") {
		return entities.EnrichmentFacts{}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type result struct {
		facts entities.EnrichmentFacts
		err   error
	}
	done := make(chan result, 1)
	go func() {
		facts, err := e.provider.Enrich(ctx, ip, userAgent)
		done <- result{facts, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(r.err).Msg("enrichment unavailable, continuing with partial facts")
		}
		return r.facts
	case <-ctx.Done():
		observability.LoggerFromContext(ctx).Warn().
			Err(apperrors.NewEnrichmentUnavailableError("enrichment timed out", ctx.Err())).
			Msg("enrichment unavailable, continuing without facts")
		return entities.EnrichmentFacts{}
	}
}
