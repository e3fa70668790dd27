package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/clients/postgres"
	apperrors "github.com/hirepulse/visitor-telemetry/pkg/errors"
)

const (
	pageViewsTable       = "page_views"
	visitorEventsTable   = "visitor_events"
	formSubmissionsTable = "form_submissions"
)

var pageViewColumns = []interface{}{
	"id", "visitor_id", "url", "path", "title", "referrer",
	"time_on_page", "scroll_depth", "clicks", "created_at",
}

var visitorEventColumns = []interface{}{
	"id", "visitor_id", "event_type", "event_category", "event_label",
	"event_value", "page", "element", "metadata", "created_at",
}

var formSubmissionColumns = []interface{}{
	"id", "visitor_id", "form_type", "form_name", "page",
	"email", "name", "phone", "company", "message",
	"custom_fields", "is_processed", "created_at",
}

// appendOnly is shared by the immutable activity tables. Their seq column
// is assigned on insert and orders rows that share a created_at.
type appendOnly struct {
	client *postgres.Client
	db     *goqu.Database
}

func newAppendOnly(client *postgres.Client) appendOnly {
	return appendOnly{client: client, db: goqu.New("postgres", client.DB())}
}

func (a appendOnly) insert(ctx context.Context, table string, record goqu.Record) error {
	query, args, err := a.db.Insert(table).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return storeError("failed to insert into "+table, err)
	}
	return nil
}

func (a appendOnly) recentQuery(table string, columns []interface{}, visitorID string, limit int) (string, []interface{}, error) {
	ds := a.db.From(table).Prepared(true).
		Select(columns...).
		Where(goqu.Ex{"visitor_id": visitorID}).
		Order(goqu.C("created_at").Desc(), goqu.C("seq").Desc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	return ds.ToSQL()
}

func (a appendOnly) betweenQuery(table string, columns []interface{}, start, end time.Time) (string, []interface{}, error) {
	return a.db.From(table).Prepared(true).
		Select(columns...).
		Where(goqu.C("created_at").Between(goqu.Range(start, end))).
		Order(goqu.C("created_at").Asc(), goqu.C("seq").Asc()).
		ToSQL()
}

// PageViewAdapter implements the PageViewRepository interface
type PageViewAdapter struct {
	appendOnly
}

// NewPageViewAdapter creates a new page view adapter
func NewPageViewAdapter(client *postgres.Client) repositories.PageViewRepository {
	return &PageViewAdapter{newAppendOnly(client)}
}

// Create inserts a page view
func (a *PageViewAdapter) Create(ctx context.Context, pv *entities.PageView) error {
	return a.insert(ctx, pageViewsTable, goqu.Record{
		"id":           pv.ID,
		"visitor_id":   pv.VisitorID,
		"url":          pv.URL,
		"path":         pv.Path,
		"title":        pv.Title,
		"referrer":     pv.Referrer,
		"time_on_page": nullInt(pv.TimeOnPage),
		"scroll_depth": nullInt(pv.ScrollDepth),
		"clicks":       pv.Clicks,
		"created_at":   pv.CreatedAt,
	})
}

// ListByVisitor returns the most recent page views of a visitor
func (a *PageViewAdapter) ListByVisitor(ctx context.Context, visitorID string, limit int) ([]*entities.PageView, error) {
	query, args, err := a.recentQuery(pageViewsTable, pageViewColumns, visitorID, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}
	return queryAll(ctx, a.client.DB(), query, args, scanPageView)
}

// ListBetween returns page views created in [start, end]
func (a *PageViewAdapter) ListBetween(ctx context.Context, start, end time.Time) ([]*entities.PageView, error) {
	query, args, err := a.betweenQuery(pageViewsTable, pageViewColumns, start, end)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}
	return queryAll(ctx, a.client.DB(), query, args, scanPageView)
}

func scanPageView(row rowScanner) (*entities.PageView, error) {
	pv := &entities.PageView{}
	var timeOnPage, scrollDepth sql.NullInt64

	err := row.Scan(
		&pv.ID, &pv.VisitorID, &pv.URL, &pv.Path, &pv.Title, &pv.Referrer,
		&timeOnPage, &scrollDepth, &pv.Clicks, &pv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	pv.TimeOnPage = intPtr(timeOnPage)
	pv.ScrollDepth = intPtr(scrollDepth)
	return pv, nil
}

// VisitorEventAdapter implements the VisitorEventRepository interface
type VisitorEventAdapter struct {
	appendOnly
}

// NewVisitorEventAdapter creates a new visitor event adapter
func NewVisitorEventAdapter(client *postgres.Client) repositories.VisitorEventRepository {
	return &VisitorEventAdapter{newAppendOnly(client)}
}

// Create inserts a behavioral event
func (a *VisitorEventAdapter) Create(ctx context.Context, evt *entities.VisitorEvent) error {
	return a.insert(ctx, visitorEventsTable, goqu.Record{
		"id":             evt.ID,
		"visitor_id":     evt.VisitorID,
		"event_type":     evt.EventType,
		"event_category": evt.EventCategory,
		"event_label":    evt.EventLabel,
		"event_value":    nullFloat(evt.EventValue),
		"page":           evt.Page,
		"element":        evt.Element,
		"metadata":       evt.Metadata,
		"created_at":     evt.CreatedAt,
	})
}

// ListByVisitor returns the most recent events of a visitor
func (a *VisitorEventAdapter) ListByVisitor(ctx context.Context, visitorID string, limit int) ([]*entities.VisitorEvent, error) {
	query, args, err := a.recentQuery(visitorEventsTable, visitorEventColumns, visitorID, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}
	return queryAll(ctx, a.client.DB(), query, args, scanVisitorEvent)
}

func scanVisitorEvent(row rowScanner) (*entities.VisitorEvent, error) {
	evt := &entities.VisitorEvent{}
	var value sql.NullFloat64

	err := row.Scan(
		&evt.ID, &evt.VisitorID, &evt.EventType, &evt.EventCategory, &evt.EventLabel,
		&value, &evt.Page, &evt.Element, &evt.Metadata, &evt.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	evt.EventValue = floatPtr(value)
	return evt, nil
}

// FormSubmissionAdapter implements the FormSubmissionRepository interface
type FormSubmissionAdapter struct {
	appendOnly
}

// NewFormSubmissionAdapter creates a new form submission adapter
func NewFormSubmissionAdapter(client *postgres.Client) repositories.FormSubmissionRepository {
	return &FormSubmissionAdapter{newAppendOnly(client)}
}

// Create inserts a form submission
func (a *FormSubmissionAdapter) Create(ctx context.Context, form *entities.FormSubmission) error {
	return a.insert(ctx, formSubmissionsTable, goqu.Record{
		"id":            form.ID,
		"visitor_id":    form.VisitorID,
		"form_type":     form.FormType,
		"form_name":     form.FormName,
		"page":          form.Page,
		"email":         form.Email,
		"name":          form.Name,
		"phone":         form.Phone,
		"company":       form.Company,
		"message":       form.Message,
		"custom_fields": form.CustomFields,
		"is_processed":  form.IsProcessed,
		"created_at":    form.CreatedAt,
	})
}

// ListByVisitor returns the most recent form submissions of a visitor
func (a *FormSubmissionAdapter) ListByVisitor(ctx context.Context, visitorID string, limit int) ([]*entities.FormSubmission, error) {
	query, args, err := a.recentQuery(formSubmissionsTable, formSubmissionColumns, visitorID, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}
	return queryAll(ctx, a.client.DB(), query, args, scanFormSubmission)
}

// ListBetween returns form submissions created in [start, end]
func (a *FormSubmissionAdapter) ListBetween(ctx context.Context, start, end time.Time) ([]*entities.FormSubmission, error) {
	query, args, err := a.betweenQuery(formSubmissionsTable, formSubmissionColumns, start, end)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}
	return queryAll(ctx, a.client.DB(), query, args, scanFormSubmission)
}

func scanFormSubmission(row rowScanner) (*entities.FormSubmission, error) {
	form := &entities.FormSubmission{}

	err := row.Scan(
		&form.ID, &form.VisitorID, &form.FormType, &form.FormName, &form.Page,
		&form.Email, &form.Name, &form.Phone, &form.Company, &form.Message,
		&form.CustomFields, &form.IsProcessed, &form.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return form, nil
}
