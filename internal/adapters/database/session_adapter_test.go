package database

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
)

func sessionRow(sessionID string, pageViews int, endTime interface{}, duration interface{}) []driver.Value {
	return []driver.Value{
		"6c7e1a2b-2222-4b4b-8888-000000000001", sessionID, "v1", "/home", "",
		testTime, endTime, duration, pageViews, true,
		"desktop", "Chrome", "Mac OS X", "203.0.113.7", testTime, testTime,
	}
}

func TestSessionAdapter_UpsertUpdatesAndRecomputesDuration(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := NewSessionAdapter(client)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "visitor_sessions" WHERE .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(columnNames(sessionColumns)).
			AddRow(sessionRow("s1", 2, nil, nil)...))
	mock.ExpectExec(`UPDATE "visitor_sessions" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	session, created, err := adapter.Upsert(context.Background(), "s1",
		func() (*entities.VisitorSession, error) { return nil, nil },
		func(s *entities.VisitorSession) error {
			s.PageViews++
			s.Close(s.StartTime.Add(125 * time.Second))
			return nil
		},
	)

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 3, session.PageViews)
	require.NotNil(t, session.Duration)
	assert.Equal(t, 125, *session.Duration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionAdapter_ScansClosedSession(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := NewSessionAdapter(client)

	end := testTime.Add(90 * time.Second)
	mock.ExpectQuery(`SELECT .* FROM "visitor_sessions" WHERE .*ORDER BY "start_time" DESC, "id" ASC`).
		WillReturnRows(sqlmock.NewRows(columnNames(sessionColumns)).
			AddRow(sessionRow("s1", 4, end, 90)...).
			AddRow(sessionRow("s0", 1, nil, nil)...))

	sessions, err := adapter.ListByVisitor(context.Background(), "v1", 20)

	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.True(t, sessions[0].IsClosed())
	assert.Equal(t, 90, *sessions[0].Duration)
	assert.False(t, sessions[1].IsClosed())
	assert.Nil(t, sessions[1].Duration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPageViewAdapter_CreateAndListBetween(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := NewPageViewAdapter(client)

	mock.ExpectExec(`INSERT INTO "page_views"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM "page_views" WHERE .*BETWEEN.*ORDER BY "created_at" ASC, "seq" ASC`).
		WillReturnRows(sqlmock.NewRows(columnNames(pageViewColumns)).
			AddRow("p1", "v1", "https://x.io/a", "/a", "A", "", nil, 80, 0, testTime).
			AddRow("p2", "v1", "https://x.io/b", "/b", "B", "", 12, nil, 3, testTime))

	err := adapter.Create(context.Background(), &entities.PageView{
		ID: "p1", VisitorID: "v1", URL: "https://x.io/a", Path: "/a", CreatedAt: testTime,
	})
	require.NoError(t, err)

	views, err := adapter.ListBetween(context.Background(), testTime.Add(-time.Hour), testTime)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Nil(t, views[0].TimeOnPage)
	assert.Equal(t, 80, *views[0].ScrollDepth)
	assert.Equal(t, 12, *views[1].TimeOnPage)
	assert.Equal(t, 3, views[1].Clicks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFormSubmissionAdapter_ScansCustomFields(t *testing.T) {
	client, mock := setupMockClient(t)
	adapter := NewFormSubmissionAdapter(client)

	mock.ExpectQuery(`SELECT .* FROM "form_submissions" WHERE .*ORDER BY "created_at" DESC, "seq" DESC LIMIT`).
		WillReturnRows(sqlmock.NewRows(columnNames(formSubmissionColumns)).
			AddRow("f1", "v1", "contact", "", "/home", "a@b.com", "", "", "", "hi",
				[]byte(`{"role":"cto"}`), false, testTime))

	forms, err := adapter.ListByVisitor(context.Background(), "v1", 20)

	require.NoError(t, err)
	require.Len(t, forms, 1)
	assert.True(t, forms[0].IsLead())
	assert.Equal(t, entities.JSONMap{"role": "cto"}, forms[0].CustomFields)
	assert.NoError(t, mock.ExpectationsWereMet())
}
