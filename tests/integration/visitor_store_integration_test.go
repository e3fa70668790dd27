//go:build integration

package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirepulse/visitor-telemetry/internal/adapters/database"
	"github.com/hirepulse/visitor-telemetry/internal/application/services"
	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
)

func TestVisitorAdapter_ConcurrentUpsertsSerialize(t *testing.T) {
	client := newTestPostgresClient(t)
	visitors := database.NewVisitorAdapter(client)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	created := make(chan bool, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			page := fmt.Sprintf("/page-%d", i)
			_, isNew, err := visitors.Upsert(ctx, "v-concurrent",
				func() (*entities.Visitor, error) {
					now := time.Now().UTC()
					return &entities.Visitor{
						ID:           uuid.NewString(),
						VisitorID:    "v-concurrent",
						Type:         entities.VisitorTypeAnonymous,
						Status:       entities.VisitorStatusActive,
						TotalVisits:  1,
						PagesVisited: []string{page},
						FirstVisit:   now,
						LastVisit:    now,
					}, nil
				},
				func(v *entities.Visitor) error {
					v.TotalVisits++
					v.AppendPage(page)
					return nil
				},
			)
			assert.NoError(t, err)
			created <- isNew
		}(i)
	}
	wg.Wait()
	close(created)

	creations := 0
	for c := range created {
		if c {
			creations++
		}
	}
	assert.Equal(t, 1, creations)

	stored, err := visitors.GetByVisitorID(ctx, "v-concurrent")
	require.NoError(t, err)
	assert.Equal(t, writers, stored.TotalVisits)
	assert.Len(t, stored.PagesVisited, writers)
}

func TestTrackingFlow_FormEscalatesToLead(t *testing.T) {
	client := newTestPostgresClient(t)
	ctx := context.Background()

	visitors := database.NewVisitorAdapter(client)
	opts := services.Options{}
	identity := services.NewIdentityService(visitors, nil, opts)
	activity := services.NewActivityService(
		database.NewPageViewAdapter(client),
		database.NewVisitorEventAdapter(client),
		database.NewFormSubmissionAdapter(client),
		identity,
		opts,
	)
	queries := services.NewVisitorQueryService(
		visitors,
		database.NewSessionAdapter(client),
		database.NewPageViewAdapter(client),
		database.NewVisitorEventAdapter(client),
		database.NewFormSubmissionAdapter(client),
		opts,
	)

	_, err := identity.TrackVisitor(ctx, services.TrackVisitorCommand{
		VisitorID: "v-lead",
		Page:      "/pricing",
		UTMSource: "newsletter",
	})
	require.NoError(t, err)

	_, err = activity.TrackPageView(ctx, services.TrackPageViewCommand{VisitorID: "v-lead", URL: "https://example.com/pricing"})
	require.NoError(t, err)

	_, err = activity.TrackFormSubmission(ctx, services.TrackFormCommand{
		VisitorID: "v-lead",
		FormType:  "contact",
		Page:      "/contact",
		Email:     "Lead@Example.com",
		Name:      "Ada",
	})
	require.NoError(t, err)

	detail, err := queries.GetVisitor(ctx, "v-lead")
	require.NoError(t, err)
	assert.Equal(t, entities.VisitorTypeLead, detail.Visitor.Type)
	assert.Equal(t, entities.VisitorStatusConverted, detail.Visitor.Status)
	assert.Equal(t, services.LeadScoreIncrement, detail.Visitor.LeadScore)
	assert.Equal(t, "lead@example.com", detail.Visitor.Email)
	assert.Equal(t, "newsletter", detail.Visitor.UTMSource)
	assert.Len(t, detail.PageViews, 1)
	assert.Equal(t, "/pricing", detail.PageViews[0].Path)
	assert.Len(t, detail.FormSubmissions, 1)

	page, err := queries.ListVisitors(ctx, services.ListVisitorsQuery{Type: entities.VisitorTypeLead})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestSessionAdapter_EndTimeNeverMovesBackward(t *testing.T) {
	client := newTestPostgresClient(t)
	ctx := context.Background()
	sessions := services.NewSessionService(database.NewSessionAdapter(client), nil, services.Options{})

	start := time.Now().UTC().Truncate(time.Second)
	later := start.Add(10 * time.Minute)
	earlier := start.Add(2 * time.Minute)

	_, err := sessions.TrackSession(ctx, services.TrackSessionCommand{VisitorID: "v-s", SessionID: "s-1", EntryPage: "/"})
	require.NoError(t, err)
	_, err = sessions.TrackSession(ctx, services.TrackSessionCommand{VisitorID: "v-s", SessionID: "s-1", EntryPage: "/", EndTime: &later})
	require.NoError(t, err)
	session, err := sessions.TrackSession(ctx, services.TrackSessionCommand{VisitorID: "v-s", SessionID: "s-1", EntryPage: "/", EndTime: &earlier})
	require.NoError(t, err)

	require.NotNil(t, session.EndTime)
	assert.True(t, session.EndTime.Equal(later))
}

func TestActivityAdapters_EqualTimestampsKeepInsertOrder(t *testing.T) {
	client := newTestPostgresClient(t)
	ctx := context.Background()
	pageViews := database.NewPageViewAdapter(client)
	forms := database.NewFormSubmissionAdapter(client)

	at := time.Now().UTC().Truncate(time.Second)
	paths := []string{"/c", "/a", "/b"}
	for _, path := range paths {
		require.NoError(t, pageViews.Create(ctx, &entities.PageView{
			ID: uuid.NewString(), VisitorID: "v-tie", URL: "https://x.io" + path, Path: path, CreatedAt: at,
		}))
		require.NoError(t, forms.Create(ctx, &entities.FormSubmission{
			ID: uuid.NewString(), VisitorID: "v-tie", FormType: "contact", Page: path, CreatedAt: at,
		}))
	}

	views, err := pageViews.ListBetween(ctx, at, at)
	require.NoError(t, err)
	require.Len(t, views, 3)
	for i, pv := range views {
		assert.Equal(t, paths[i], pv.Path)
	}

	submitted, err := forms.ListBetween(ctx, at, at)
	require.NoError(t, err)
	require.Len(t, submitted, 3)
	for i, form := range submitted {
		assert.Equal(t, paths[i], form.Page)
	}

	recent, err := pageViews.ListByVisitor(ctx, "v-tie", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "/b", recent[0].Path, "latest insert is newest")
}

func TestVisitorAdapter_ListFilters(t *testing.T) {
	client := newTestPostgresClient(t)
	visitors := database.NewVisitorAdapter(client)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	for i, v := range []entities.Visitor{
		{VisitorID: "a", Type: entities.VisitorTypeLead, Status: entities.VisitorStatusConverted, Country: "Nigeria", Email: "a@corp.com"},
		{VisitorID: "b", Type: entities.VisitorTypeAnonymous, Status: entities.VisitorStatusActive, Country: "Ghana"},
		{VisitorID: "c", Type: entities.VisitorTypeIdentified, Status: entities.VisitorStatusActive, Country: "Nigeria", Email: "c@corp.com"},
	} {
		v := v
		v.ID = uuid.NewString()
		v.TotalVisits = 1
		v.FirstVisit = base.Add(time.Duration(i) * time.Minute)
		v.LastVisit = v.FirstVisit
		_, _, err := visitors.Upsert(ctx, v.VisitorID, func() (*entities.Visitor, error) { return &v, nil }, nil)
		require.NoError(t, err)
	}

	list, total, err := visitors.List(ctx, repositories.VisitorFilter{Country: "Nigeria", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].VisitorID)

	list, _, err = visitors.List(ctx, repositories.VisitorFilter{Email: "CORP", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, _, err = visitors.List(ctx, repositories.VisitorFilter{VisitorIDs: []string{}, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, list)
}
