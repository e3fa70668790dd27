package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
	"github.com/hirepulse/visitor-telemetry/internal/infrastructure/clients/postgres"
	apperrors "github.com/hirepulse/visitor-telemetry/pkg/errors"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// keyedTable is a table with a unique client-generated key that supports
// row-locked read-modify-write.
type keyedTable[T any] interface {
	// lock selects the row FOR UPDATE; a missing row yields (nil, nil).
	lock(ctx context.Context, tx *sql.Tx, key string) (*T, error)
	// insertIfAbsent inserts with ON CONFLICT DO NOTHING and reports whether a row was written.
	insertIfAbsent(ctx context.Context, tx *sql.Tx, record *T) (bool, error)
	// write persists every mutable column of record.
	write(ctx context.Context, tx *sql.Tx, record *T) error
}

// upsert runs create or update for key inside one transaction. The row lock
// serializes concurrent writers of the same key; a writer that loses the insert
// race falls through to the update path against the winner's row.
func upsert[T any](
	ctx context.Context,
	client *postgres.Client,
	table keyedTable[T],
	key string,
	create repositories.CreateFunc[T],
	update repositories.UpdateFunc[T],
) (*T, bool, error) {
	var (
		result  *T
		created bool
	)

	err := runInTx(ctx, client, func(tx *sql.Tx) error {
		existing, err := table.lock(ctx, tx, key)
		if err != nil {
			return err
		}

		if existing == nil {
			record, err := create()
			if err != nil {
				return err
			}

			inserted, err := table.insertIfAbsent(ctx, tx, record)
			if err != nil {
				return err
			}
			if inserted {
				result, created = record, true
				return nil
			}

			existing, err = table.lock(ctx, tx, key)
			if err != nil {
				return err
			}
			if existing == nil {
				return apperrors.NewStoreError("row vanished after insert conflict", nil)
			}
		}

		if err := update(existing); err != nil {
			return err
		}
		if err := table.write(ctx, tx, existing); err != nil {
			return err
		}
		result = existing
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return result, created, nil
}

func runInTx(ctx context.Context, client *postgres.Client, fn func(tx *sql.Tx) error) error {
	tx, err := client.BeginTx(ctx)
	if err != nil {
		return storeError("failed to begin transaction", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeError("failed to commit transaction", err)
	}
	return nil
}

func queryAll[T any](ctx context.Context, db *sql.DB, query string, args []interface{}, scan func(rowScanner) (*T, error)) ([]*T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("query failed", err)
	}
	defer rows.Close()

	results := []*T{}
	for rows.Next() {
		record, err := scan(rows)
		if err != nil {
			return nil, storeError("failed to scan row", err)
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("error iterating rows", err)
	}
	return results, nil
}

// storeError classifies a driver failure as retryable.
func storeError(message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		message += ": timed out"
	}
	return apperrors.NewStoreError(message, err)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	i := int(ni.Int64)
	return &i
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}
