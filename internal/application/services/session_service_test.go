package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hirepulse/visitor-telemetry/pkg/errors"
)

func TestTrackSession_CloseComputesDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.sessions.TrackSession(ctx, TrackSessionCommand{VisitorID: "v1", SessionID: "s1", EntryPage: "/home", UserAgent: testUA})
	require.NoError(t, err)
	assert.True(t, s.IsActive)
	assert.Zero(t, s.PageViews)
	assert.Nil(t, s.Duration)
	assert.Equal(t, "desktop", s.Device)

	f.clock.Advance(30 * time.Second)
	s, err = f.sessions.TrackSession(ctx, TrackSessionCommand{VisitorID: "v1", SessionID: "s1", EntryPage: "/home", ExitPage: "/jobs"})
	require.NoError(t, err)
	assert.Equal(t, 1, s.PageViews)
	assert.Equal(t, "/jobs", s.ExitPage)

	end := base.Add(125 * time.Second)
	s, err = f.sessions.TrackSession(ctx, TrackSessionCommand{
		VisitorID: "v1", SessionID: "s1", EntryPage: "/home", EndTime: &end, IsActive: ptr(false),
	})
	require.NoError(t, err)
	require.NotNil(t, s.Duration)
	assert.Equal(t, 125, *s.Duration)
	assert.False(t, s.IsActive)
	assert.Equal(t, "/jobs", s.ExitPage, "omitted exit page keeps the previous value")
	assert.Equal(t, "/home", s.EntryPage)
}

func TestTrackSession_EndTimeNeverMovesBackward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	late := base.Add(10 * time.Minute)
	early := base.Add(2 * time.Minute)

	_, err := f.sessions.TrackSession(ctx, TrackSessionCommand{VisitorID: "v1", SessionID: "s1", EntryPage: "/home", EndTime: &late})
	require.NoError(t, err)
	s, err := f.sessions.TrackSession(ctx, TrackSessionCommand{VisitorID: "v1", SessionID: "s1", EntryPage: "/home", EndTime: &early})
	require.NoError(t, err)

	require.NotNil(t, s.EndTime)
	assert.True(t, s.EndTime.Equal(late))
	assert.Equal(t, 600, *s.Duration)
}

func TestTrackSession_EndBeforeStartClampsToZero(t *testing.T) {
	f := newFixture(t)

	before := base.Add(-time.Minute)
	s, err := f.sessions.TrackSession(context.Background(), TrackSessionCommand{VisitorID: "v1", SessionID: "s1", EntryPage: "/home", EndTime: &before})

	require.NoError(t, err)
	assert.Equal(t, 0, *s.Duration)
}

func TestTrackSession_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.sessions.TrackSession(context.Background(), TrackSessionCommand{VisitorID: "v1", EntryPage: "/home"})

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "sessionId is required")
}
