package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
	tsclient "github.com/hirepulse/visitor-telemetry/internal/infrastructure/clients/typesense"
)

const collectionName = "visitors"

// Fields searched by free-text visitor queries, in priority order.
const queryBy = "email,name,company,visitor_id,city,country"

// TypesenseAdapter implements visitor search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ repositories.VisitorSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// InitSchema ensures the collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	if _, err := a.client.Client().Collection(collectionName).Retrieve(ctx); err == nil {
		return nil
	}

	schema := &api.CollectionSchema{
		Name: collectionName,
		Fields: []api.Field{
			{Name: "visitor_id", Type: "string"},
			{Name: "email", Type: "string", Optional: pointer.True()},
			{Name: "name", Type: "string", Optional: pointer.True()},
			{Name: "company", Type: "string", Optional: pointer.True()},
			{Name: "city", Type: "string", Optional: pointer.True()},
			{Name: "country", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "visitor_type", Type: "string", Facet: pointer.True()},
			{Name: "status", Type: "string", Facet: pointer.True()},
			{Name: "lead_score", Type: "int32"},
			{Name: "last_visit", Type: "int64"},
		},
		DefaultSortingField: pointer.String("last_visit"),
	}

	if _, err := a.client.Client().Collections().Create(ctx, schema); err != nil {
		return fmt.Errorf("failed to create typesense collection: %w", err)
	}

	return nil
}

// DropCollection deletes the visitor collection so the next InitSchema starts clean
func (a *TypesenseAdapter) DropCollection(ctx context.Context) error {
	if _, err := a.client.Client().Collection(collectionName).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete typesense collection: %w", err)
	}
	return nil
}

// Index indexes a visitor
func (a *TypesenseAdapter) Index(ctx context.Context, visitor *entities.Visitor) error {
	document := buildVisitorDocument(visitor)
	if document == nil {
		return nil
	}

	if _, err := a.client.Client().Collection(collectionName).Documents().Upsert(ctx, document); err != nil {
		return fmt.Errorf("failed to index visitor: %w", err)
	}

	return nil
}

// Search returns the ids of visitors matching query
func (a *TypesenseAdapter) Search(ctx context.Context, query string, limit int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 250
	}

	params := &api.SearchCollectionParams{
		Q:       pointer.String(query),
		QueryBy: pointer.String(queryBy),
		PerPage: pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(collectionName).Documents().Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search visitors: %w", err)
	}

	return hitVisitorIDs(result), nil
}

func buildVisitorDocument(visitor *entities.Visitor) map[string]interface{} {
	if visitor == nil || visitor.VisitorID == "" {
		return nil
	}

	return map[string]interface{}{
		"id":           visitor.VisitorID,
		"visitor_id":   visitor.VisitorID,
		"email":        visitor.Email,
		"name":         visitor.Name,
		"company":      visitor.Company,
		"city":         visitor.City,
		"country":      visitor.Country,
		"visitor_type": string(visitor.Type),
		"status":       string(visitor.Status),
		"lead_score":   visitor.LeadScore,
		"last_visit":   visitor.LastVisit.Unix(),
	}
}

func hitVisitorIDs(result *api.SearchResult) []string {
	if result == nil || result.Hits == nil {
		return nil
	}

	ids := make([]string, 0, len(*result.Hits))
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		if id, ok := (*hit.Document)["visitor_id"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
