package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/clients/postgres"
	apperrors "github.com/hirepulse/visitor-telemetry/pkg/errors"
)

const sessionsTable = "visitor_sessions"

var sessionColumns = []interface{}{
	"id", "session_id", "visitor_id", "entry_page", "exit_page",
	"start_time", "end_time", "duration", "page_views", "is_active",
	"device", "browser", "os", "ip_address", "created_at", "updated_at",
}

// SessionAdapter implements the SessionRepository interface
type SessionAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSessionAdapter creates a new session adapter
func NewSessionAdapter(client *postgres.Client) repositories.SessionRepository {
	return &SessionAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Upsert creates or updates a session under a row lock
func (a *SessionAdapter) Upsert(
	ctx context.Context,
	sessionID string,
	create repositories.CreateFunc[entities.VisitorSession],
	update repositories.UpdateFunc[entities.VisitorSession],
) (*entities.VisitorSession, bool, error) {
	return upsert[entities.VisitorSession](ctx, a.client, a, sessionID, create, update)
}

func (a *SessionAdapter) lock(ctx context.Context, tx *sql.Tx, sessionID string) (*entities.VisitorSession, error) {
	query, args, err := a.db.From(sessionsTable).Prepared(true).
		Select(sessionColumns...).
		Where(goqu.Ex{"session_id": sessionID}).
		ForUpdate(exp.Wait).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build session lock query", err)
	}

	session, err := scanSession(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("failed to lock session", err)
	}
	return session, nil
}

func (a *SessionAdapter) insertIfAbsent(ctx context.Context, tx *sql.Tx, session *entities.VisitorSession) (bool, error) {
	record := sessionRecord(session)
	record["id"] = session.ID
	record["session_id"] = session.SessionID
	record["visitor_id"] = session.VisitorID
	record["start_time"] = session.StartTime
	record["created_at"] = session.CreatedAt

	query, args, err := a.db.Insert(sessionsTable).Prepared(true).
		Rows(record).
		OnConflict(goqu.DoNothing()).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build session insert query", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, storeError("failed to create session", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, storeError("failed to get rows affected", err)
	}
	return rowsAffected == 1, nil
}

func (a *SessionAdapter) write(ctx context.Context, tx *sql.Tx, session *entities.VisitorSession) error {
	query, args, err := a.db.Update(sessionsTable).Prepared(true).
		Set(sessionRecord(session)).
		Where(goqu.Ex{"session_id": session.SessionID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build session update query", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return storeError("failed to update session", err)
	}
	return nil
}

// ListByVisitor returns the most recent sessions of a visitor
func (a *SessionAdapter) ListByVisitor(ctx context.Context, visitorID string, limit int) ([]*entities.VisitorSession, error) {
	ds := a.db.From(sessionsTable).Prepared(true).
		Select(sessionColumns...).
		Where(goqu.Ex{"visitor_id": visitorID}).
		Order(goqu.C("start_time").Desc(), goqu.C("id").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return queryAll(ctx, a.client.DB(), query, args, scanSession)
}

// ListStartedBetween returns sessions started in [start, end]
func (a *SessionAdapter) ListStartedBetween(ctx context.Context, start, end time.Time) ([]*entities.VisitorSession, error) {
	query, args, err := a.db.From(sessionsTable).Prepared(true).
		Select(sessionColumns...).
		Where(goqu.C("start_time").Between(goqu.Range(start, end))).
		Order(goqu.C("start_time").Asc(), goqu.C("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return queryAll(ctx, a.client.DB(), query, args, scanSession)
}

func sessionRecord(s *entities.VisitorSession) goqu.Record {
	return goqu.Record{
		"entry_page": s.EntryPage,
		"exit_page":  s.ExitPage,
		"end_time":   nullTime(s.EndTime),
		"duration":   nullInt(s.Duration),
		"page_views": s.PageViews,
		"is_active":  s.IsActive,
		"device":     s.Device,
		"browser":    s.Browser,
		"os":         s.OS,
		"ip_address": s.IPAddress,
		"updated_at": s.UpdatedAt,
	}
}

func scanSession(row rowScanner) (*entities.VisitorSession, error) {
	s := &entities.VisitorSession{}
	var endTime sql.NullTime
	var duration sql.NullInt64

	err := row.Scan(
		&s.ID, &s.SessionID, &s.VisitorID, &s.EntryPage, &s.ExitPage,
		&s.StartTime, &endTime, &duration, &s.PageViews, &s.IsActive,
		&s.Device, &s.Browser, &s.OS, &s.IPAddress, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.EndTime = timePtr(endTime)
	s.Duration = intPtr(duration)
	return s, nil
}
