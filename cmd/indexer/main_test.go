package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirepulse/visitor-telemetry/internal/adapters/memory"
	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
)

type recordingIndex struct {
	indexed []string
	failOn  string
}

func (r *recordingIndex) Index(_ context.Context, v *entities.Visitor) error {
	if v.VisitorID == r.failOn {
		return errors.New("boom")
	}
	r.indexed = append(r.indexed, v.VisitorID)
	return nil
}

func (r *recordingIndex) Search(context.Context, string, int) ([]string, error) {
	return nil, nil
}

func TestReindex_PagesThroughEveryVisitor(t *testing.T) {
	ctx := context.Background()
	visitors := memory.NewStore().Visitors()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	n := pageSize + 7
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("v-%04d", i)
		seen := base.Add(time.Duration(i) * time.Second)
		_, _, err := visitors.Upsert(ctx, id, func() (*entities.Visitor, error) {
			return &entities.Visitor{VisitorID: id, FirstVisit: seen, LastVisit: seen, TotalVisits: 1}, nil
		}, nil)
		require.NoError(t, err)
	}

	index := &recordingIndex{failOn: "v-0003"}
	require.NoError(t, reindex(ctx, visitors, index))

	assert.Len(t, index.indexed, n-1)
	assert.Equal(t, fmt.Sprintf("v-%04d", n-1), index.indexed[0])
	assert.NotContains(t, index.indexed, "v-0003")
}

func TestReindex_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := reindex(ctx, memory.NewStore().Visitors(), &recordingIndex{})
	assert.ErrorIs(t, err, context.Canceled)
}
