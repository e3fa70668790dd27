package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/typesense/typesense-go/v2/typesense/api"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
)

func TestBuildVisitorDocument(t *testing.T) {
	lastVisit := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	visitor := &entities.Visitor{
		VisitorID:     "v-123",
		Type:          entities.VisitorTypeLead,
		Status:        entities.VisitorStatusConverted,
		ContactFields: entities.ContactFields{Email: "ada@example.com", Name: "Ada", Company: "Acme"},
		City:          "Lagos",
		Country:       "NG",
		LeadScore:     20,
		LastVisit:     lastVisit,
	}

	doc := buildVisitorDocument(visitor)
	require.NotNil(t, doc)

	assert.Equal(t, "v-123", doc["id"])
	assert.Equal(t, "ada@example.com", doc["email"])
	assert.Equal(t, "LEAD", doc["visitor_type"])
	assert.Equal(t, "CONVERTED", doc["status"])
	assert.Equal(t, 20, doc["lead_score"])
	assert.Equal(t, lastVisit.Unix(), doc["last_visit"])
}

func TestBuildVisitorDocumentNil(t *testing.T) {
	assert.Nil(t, buildVisitorDocument(nil))
	assert.Nil(t, buildVisitorDocument(&entities.Visitor{}))
}

func TestHitVisitorIDs(t *testing.T) {
	first := map[string]interface{}{"visitor_id": "v1"}
	second := map[string]interface{}{"visitor_id": "v2"}
	broken := map[string]interface{}{"visitor_id": 42}

	hits := []api.SearchResultHit{
		{Document: &first},
		{Document: nil},
		{Document: &broken},
		{Document: &second},
	}

	ids := hitVisitorIDs(&api.SearchResult{Hits: &hits})

	assert.Equal(t, []string{"v1", "v2"}, ids)
	assert.Nil(t, hitVisitorIDs(nil))
}
