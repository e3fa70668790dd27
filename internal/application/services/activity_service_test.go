package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	apperrors "github.com/hirepulse/visitor-telemetry/pkg/errors"
)

func TestTrackPageView_PathDerivation(t *testing.T) {
	tests := []struct {
		name string
		cmd  TrackPageViewCommand
		want string
	}{
		{"from url", TrackPageViewCommand{VisitorID: "v1", URL: "https://acme.io/jobs/42?ref=x"}, "/jobs/42"},
		{"explicit path wins", TrackPageViewCommand{VisitorID: "v1", URL: "https://acme.io/jobs", Path: "/custom"}, "/custom"},
		{"bare host", TrackPageViewCommand{VisitorID: "v1", URL: "https://acme.io"}, "/"},
		{"unparseable", TrackPageViewCommand{VisitorID: "v1", URL: "://bad url"}, "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			pv, err := f.activity.TrackPageView(context.Background(), tt.cmd)

			require.NoError(t, err)
			assert.Equal(t, tt.want, pv.Path)
			assert.NotEmpty(t, pv.ID)
			assert.True(t, pv.CreatedAt.Equal(base))
		})
	}
}

func TestTrackEvent_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.activity.TrackEvent(context.Background(), TrackEventCommand{VisitorID: "v1", Page: "/home"})

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "eventType is required")
}

func TestTrackEvent_KeepsMetadata(t *testing.T) {
	f := newFixture(t)
	value := 2.5

	evt, err := f.activity.TrackEvent(context.Background(), TrackEventCommand{
		VisitorID: "v1", EventType: "click", Page: "/jobs", EventValue: &value,
		Metadata: entities.JSONMap{"button": "apply"},
	})

	require.NoError(t, err)
	assert.Equal(t, "apply", evt.Metadata["button"])
	assert.Equal(t, 2.5, *evt.EventValue)
}

type failingEscalator struct{}

func (failingEscalator) EscalateToLead(ctx context.Context, visitorID string, contact entities.ContactFields) (*entities.Visitor, error) {
	return nil, apperrors.NewStoreError("visitor upsert failed", errors.New("connection reset"))
}

func TestTrackFormSubmission_EscalationFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	activity := NewActivityService(f.store.PageViews(), f.store.Events(), f.store.Forms(), failingEscalator{}, Options{Clock: f.clock})

	_, err := activity.TrackFormSubmission(context.Background(), TrackFormCommand{VisitorID: "v1", FormType: "contact", Page: "/", Email: "a@b.com"})

	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
}
