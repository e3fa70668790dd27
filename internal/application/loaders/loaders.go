package loaders

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// Loaders contains the request-scoped batch loaders
type Loaders struct {
	// VisitorLoader loads durable visitors by visitor id. Unknown ids load as nil without error.
	VisitorLoader *dataloader.Loader[string, *entities.Visitor]
}

// NewLoaders creates a new instance of Loaders
func NewLoaders(visitorRepo repositories.VisitorRepository) *Loaders {
	return &Loaders{
		VisitorLoader: dataloader.NewBatchedLoader(func(ctx context.Context, keys []string) []*dataloader.Result[*entities.Visitor] {
			results := make([]*dataloader.Result[*entities.Visitor], len(keys))
			visitors, err := visitorRepo.GetByVisitorIDs(ctx, keys)

			byID := make(map[string]*entities.Visitor, len(visitors))
			if err == nil {
				for _, v := range visitors {
					byID[v.VisitorID] = v
				}
			}

			for i, key := range keys {
				if err != nil {
					results[i] = &dataloader.Result[*entities.Visitor]{Error: err}
				} else {
					results[i] = &dataloader.Result[*entities.Visitor]{Data: byID[key]}
				}
			}
			return results
		}),
	}
}

// For returns the loaders attached to ctx, or nil
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}
