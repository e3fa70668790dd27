//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirepulse/visitor-telemetry/internal/adapters/search"
	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
)

func TestTypesenseAdapter(t *testing.T) {
	client := newTestTypesenseClient(t)
	adapter := search.NewTypesenseAdapter(client)
	ctx := context.Background()

	_ = adapter.DropCollection(ctx)
	require.NoError(t, adapter.InitSchema(ctx))
	t.Cleanup(func() { _ = adapter.DropCollection(context.Background()) })

	visitor := &entities.Visitor{
		VisitorID: "v-search-1",
		Type:      entities.VisitorTypeLead,
		Status:    entities.VisitorStatusConverted,
		Email:     "grace@hopper.dev",
		Name:      "Grace Hopper",
		Company:   "Navy",
		Country:   "United States",
		LeadScore: 10,
		LastVisit: time.Now().UTC(),
	}
	require.NoError(t, adapter.Index(ctx, visitor))

	// Typesense indexes asynchronously.
	time.Sleep(time.Second)

	ids, err := adapter.Search(ctx, "hopper", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"v-search-1"}, ids)

	ids, err = adapter.Search(ctx, "nobody-matches-this", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
