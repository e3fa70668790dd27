package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/clients/postgres"
	apperrors "github.com/hirepulse/visitor-telemetry/pkg/errors"
)

const visitorsTable = "visitors"

var visitorColumns = []interface{}{
	"id", "visitor_id", "visitor_type", "status",
	"email", "name", "phone", "company", "position",
	"ip_address", "country", "city", "region", "timezone",
	"device", "os", "browser", "browser_version", "screen_resolution",
	"referrer", "utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"total_visits", "total_page_views", "lead_score", "pages_visited",
	"first_visit", "last_visit", "created_at", "updated_at",
}

// VisitorAdapter implements the VisitorRepository interface
type VisitorAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewVisitorAdapter creates a new visitor adapter
func NewVisitorAdapter(client *postgres.Client) repositories.VisitorRepository {
	return &VisitorAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Upsert creates or updates a visitor under a row lock
func (a *VisitorAdapter) Upsert(
	ctx context.Context,
	visitorID string,
	create repositories.CreateFunc[entities.Visitor],
	update repositories.UpdateFunc[entities.Visitor],
) (*entities.Visitor, bool, error) {
	return upsert[entities.Visitor](ctx, a.client, a, visitorID, create, update)
}

func (a *VisitorAdapter) lock(ctx context.Context, tx *sql.Tx, visitorID string) (*entities.Visitor, error) {
	query, args, err := a.db.From(visitorsTable).Prepared(true).
		Select(visitorColumns...).
		Where(goqu.Ex{"visitor_id": visitorID}).
		ForUpdate(exp.Wait).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build visitor lock query", err)
	}

	visitor, err := scanVisitor(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("failed to lock visitor", err)
	}
	return visitor, nil
}

func (a *VisitorAdapter) insertIfAbsent(ctx context.Context, tx *sql.Tx, visitor *entities.Visitor) (bool, error) {
	record := visitorRecord(visitor)
	record["id"] = visitor.ID
	record["visitor_id"] = visitor.VisitorID
	record["created_at"] = visitor.CreatedAt

	query, args, err := a.db.Insert(visitorsTable).Prepared(true).
		Rows(record).
		OnConflict(goqu.DoNothing()).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build visitor insert query", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, storeError("failed to create visitor", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, storeError("failed to get rows affected", err)
	}
	return rowsAffected == 1, nil
}

func (a *VisitorAdapter) write(ctx context.Context, tx *sql.Tx, visitor *entities.Visitor) error {
	query, args, err := a.db.Update(visitorsTable).Prepared(true).
		Set(visitorRecord(visitor)).
		Where(goqu.Ex{"visitor_id": visitor.VisitorID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build visitor update query", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return storeError("failed to update visitor", err)
	}
	return nil
}

// GetByVisitorID retrieves a visitor by its client-generated id
func (a *VisitorAdapter) GetByVisitorID(ctx context.Context, visitorID string) (*entities.Visitor, error) {
	query, args, err := a.db.From(visitorsTable).Prepared(true).
		Select(visitorColumns...).
		Where(goqu.Ex{"visitor_id": visitorID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	visitor, err := scanVisitor(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("visitor %s not found", visitorID))
	}
	if err != nil {
		return nil, storeError("failed to get visitor", err)
	}
	return visitor, nil
}

// GetByVisitorIDs retrieves multiple visitors
func (a *VisitorAdapter) GetByVisitorIDs(ctx context.Context, visitorIDs []string) ([]*entities.Visitor, error) {
	if len(visitorIDs) == 0 {
		return []*entities.Visitor{}, nil
	}

	query, args, err := a.db.From(visitorsTable).Prepared(true).
		Select(visitorColumns...).
		Where(goqu.Ex{"visitor_id": visitorIDs}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return queryAll(ctx, a.client.DB(), query, args, scanVisitor)
}

// List retrieves visitors with filters
func (a *VisitorAdapter) List(ctx context.Context, filter repositories.VisitorFilter) ([]*entities.Visitor, int, error) {
	if filter.VisitorIDs != nil && len(filter.VisitorIDs) == 0 {
		return []*entities.Visitor{}, 0, nil
	}

	ds := a.db.From(visitorsTable).Prepared(true).Where(visitorConditions(filter)...)

	countQuery, countArgs, err := ds.Select(goqu.COUNT(goqu.Star())).ToSQL()
	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var total int
	if err := a.client.DB().QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, storeError("failed to count visitors", err)
	}

	listDS := ds.Select(visitorColumns...).Order(goqu.C("last_visit").Desc(), goqu.C("id").Asc())
	if filter.Limit > 0 {
		listDS = listDS.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		listDS = listDS.Offset(uint(filter.Offset))
	}

	query, args, err := listDS.ToSQL()
	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to build list query", err)
	}

	visitors, err := queryAll(ctx, a.client.DB(), query, args, scanVisitor)
	if err != nil {
		return nil, 0, err
	}
	return visitors, total, nil
}

// UpdateStatus sets the engagement status of a visitor
func (a *VisitorAdapter) UpdateStatus(ctx context.Context, visitorID string, status entities.VisitorStatus, updatedAt time.Time) error {
	query, args, err := a.db.Update(visitorsTable).Prepared(true).
		Set(goqu.Record{"status": string(status), "updated_at": updatedAt.UTC()}).
		Where(goqu.Ex{"visitor_id": visitorID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build status update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return storeError("failed to update visitor status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("visitor %s not found", visitorID))
	}
	return nil
}

// ListFirstSeenBetween returns visitors first seen in [start, end]
func (a *VisitorAdapter) ListFirstSeenBetween(ctx context.Context, start, end time.Time) ([]*entities.Visitor, error) {
	query, args, err := a.db.From(visitorsTable).Prepared(true).
		Select(visitorColumns...).
		Where(goqu.C("first_visit").Between(goqu.Range(start, end))).
		Order(goqu.C("first_visit").Asc(), goqu.C("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return queryAll(ctx, a.client.DB(), query, args, scanVisitor)
}

func visitorConditions(filter repositories.VisitorFilter) []exp.Expression {
	conds := []exp.Expression{}
	if filter.Type != "" {
		conds = append(conds, goqu.Ex{"visitor_type": string(filter.Type)})
	}
	if filter.Status != "" {
		conds = append(conds, goqu.Ex{"status": string(filter.Status)})
	}
	if filter.Email != "" {
		conds = append(conds, goqu.C("email").ILike("%"+filter.Email+"%"))
	}
	if filter.Country != "" {
		conds = append(conds, goqu.Ex{"country": filter.Country})
	}
	if len(filter.VisitorIDs) > 0 {
		conds = append(conds, goqu.Ex{"visitor_id": filter.VisitorIDs})
	}
	return conds
}

// visitorRecord holds every column that may change after creation.
func visitorRecord(v *entities.Visitor) goqu.Record {
	pages := v.PagesVisited
	if pages == nil {
		pages = []string{}
	}

	return goqu.Record{
		"visitor_type":      string(v.Type),
		"status":            string(v.Status),
		"email":             v.Email,
		"name":              v.Name,
		"phone":             v.Phone,
		"company":           v.Company,
		"position":          v.Position,
		"ip_address":        v.IPAddress,
		"country":           v.Country,
		"city":              v.City,
		"region":            v.Region,
		"timezone":          v.Timezone,
		"device":            v.Device,
		"os":                v.OS,
		"browser":           v.Browser,
		"browser_version":   v.BrowserVersion,
		"screen_resolution": v.ScreenResolution,
		"referrer":          v.Referrer,
		"utm_source":        v.UTMSource,
		"utm_medium":        v.UTMMedium,
		"utm_campaign":      v.UTMCampaign,
		"utm_term":          v.UTMTerm,
		"utm_content":       v.UTMContent,
		"total_visits":      v.TotalVisits,
		"total_page_views":  v.TotalPageViews,
		"lead_score":        v.LeadScore,
		"pages_visited":     pq.StringArray(pages),
		"first_visit":       v.FirstVisit,
		"last_visit":        v.LastVisit,
		"updated_at":        v.UpdatedAt,
	}
}

func scanVisitor(row rowScanner) (*entities.Visitor, error) {
	v := &entities.Visitor{}
	var pages pq.StringArray

	err := row.Scan(
		&v.ID, &v.VisitorID, &v.Type, &v.Status,
		&v.Email, &v.Name, &v.Phone, &v.Company, &v.Position,
		&v.IPAddress, &v.Country, &v.City, &v.Region, &v.Timezone,
		&v.Device, &v.OS, &v.Browser, &v.BrowserVersion, &v.ScreenResolution,
		&v.Referrer, &v.UTMSource, &v.UTMMedium, &v.UTMCampaign, &v.UTMTerm, &v.UTMContent,
		&v.TotalVisits, &v.TotalPageViews, &v.LeadScore, &pages,
		&v.FirstVisit, &v.LastVisit, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.PagesVisited = []string(pages)
	return v, nil
}
