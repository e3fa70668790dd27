package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
	redisclient "github.com/hirepulse/visitor-telemetry/internal/infrastructure/clients/redis"
	apperrors "github.com/hirepulse/visitor-telemetry/pkg/errors"
	"github.com/hirepulse/visitor-telemetry/pkg/retry"
)

const (
	keyPrefix = "presence:visitor:"
	// activityIndex is a sorted set of visitor ids scored by last activity in unix milliseconds.
	activityIndex = "presence:activity"
)

// RedisRegister implements the LiveVisitorRepository interface on Redis.
// Each record is a JSON value; every write is an optimistic WATCH/MULTI
// transaction on the record key, retried when another writer got there first.
type RedisRegister struct {
	client   *redisclient.Client
	retryCfg retry.Config
}

var _ repositories.LiveVisitorRepository = (*RedisRegister)(nil)

// NewRedisRegister creates a new Redis presence register
func NewRedisRegister(client *redisclient.Client) *RedisRegister {
	return &RedisRegister{
		client: client,
		retryCfg: retry.Config{
			MaxAttempts:   20,
			InitialDelay:  time.Millisecond,
			MaxDelay:      25 * time.Millisecond,
			BackoffFactor: 2.0,
			ShouldRetry: func(err error) bool {
				return errors.Is(err, redis.TxFailedErr)
			},
		},
	}
}

// callbackError carries a caller error out of a WATCH transaction untouched.
type callbackError struct {
	err error
}

func (e callbackError) Error() string { return e.err.Error() }

func recordKey(visitorID string) string {
	return keyPrefix + visitorID
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// Upsert atomically creates or updates the live record
func (r *RedisRegister) Upsert(
	ctx context.Context,
	visitorID string,
	create repositories.CreateFunc[entities.LiveVisitor],
	update repositories.UpdateFunc[entities.LiveVisitor],
) (*entities.LiveVisitor, bool, error) {
	key := recordKey(visitorID)

	var (
		result  *entities.LiveVisitor
		created bool
	)

	txf := func(tx *redis.Tx) error {
		current, err := load(ctx, tx, key)
		if err != nil {
			return err
		}

		if current == nil {
			current, err = create()
			created = true
		} else {
			err = update(current)
			created = false
		}
		if err != nil {
			return callbackError{err}
		}

		payload, err := json.Marshal(current)
		if err != nil {
			return callbackError{apperrors.NewInternalError("failed to encode live visitor", err)}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.ZAdd(ctx, activityIndex, redis.Z{Score: score(current.LastActivityAt), Member: visitorID})
			return nil
		})
		if err == nil {
			result = current
		}
		return err
	}

	if err := r.watch(ctx, txf, key); err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// Get retrieves a live record
func (r *RedisRegister) Get(ctx context.Context, visitorID string) (*entities.LiveVisitor, error) {
	lv, err := load(ctx, r.client.Client(), recordKey(visitorID))
	if err != nil {
		return nil, apperrors.NewStoreError("failed to read live visitor", err)
	}
	if lv == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("live visitor %s not found", visitorID))
	}
	return lv, nil
}

// ListActiveSince returns records active strictly after since, most recent first
func (r *RedisRegister) ListActiveSince(ctx context.Context, since time.Time) ([]*entities.LiveVisitor, error) {
	rdb := r.client.Client()

	ids, err := rdb.ZRevRangeByScore(ctx, activityIndex, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, apperrors.NewStoreError("failed to scan activity index", err)
	}
	if len(ids) == 0 {
		return []*entities.LiveVisitor{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordKey(id)
	}

	values, err := rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, apperrors.NewStoreError("failed to read live visitors", err)
	}

	result := make([]*entities.LiveVisitor, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		lv := &entities.LiveVisitor{}
		if err := json.Unmarshal([]byte(raw), lv); err != nil {
			continue
		}
		if lv.LastActivityAt.After(since) {
			result = append(result, lv)
		}
	}
	return result, nil
}

// ListLastActiveBefore returns candidate ids whose last activity is at or before cutoff
func (r *RedisRegister) ListLastActiveBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	ids, err := r.client.Client().ZRangeByScore(ctx, activityIndex, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, apperrors.NewStoreError("failed to scan activity index", err)
	}
	return ids, nil
}

// MarkInactiveIf flips IsActive when cond still holds at write time
func (r *RedisRegister) MarkInactiveIf(ctx context.Context, visitorID string, cond repositories.Predicate[entities.LiveVisitor]) (bool, error) {
	key := recordKey(visitorID)
	changed := false

	txf := func(tx *redis.Tx) error {
		changed = false

		current, err := load(ctx, tx, key)
		if err != nil {
			return err
		}
		if current == nil {
			return dropIndexEntry(ctx, tx, visitorID)
		}
		if !current.IsActive || !cond(current) {
			return nil
		}

		current.IsActive = false
		payload, err := json.Marshal(current)
		if err != nil {
			return callbackError{apperrors.NewInternalError("failed to encode live visitor", err)}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		changed = err == nil
		return err
	}

	if err := r.watch(ctx, txf, key); err != nil {
		return false, err
	}
	return changed, nil
}

// DeleteIf removes the record when cond still holds at write time
func (r *RedisRegister) DeleteIf(ctx context.Context, visitorID string, cond repositories.Predicate[entities.LiveVisitor]) (bool, error) {
	key := recordKey(visitorID)
	deleted := false

	txf := func(tx *redis.Tx) error {
		deleted = false

		current, err := load(ctx, tx, key)
		if err != nil {
			return err
		}
		if current == nil {
			return dropIndexEntry(ctx, tx, visitorID)
		}
		if !cond(current) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, activityIndex, visitorID)
			return nil
		})
		deleted = err == nil
		return err
	}

	if err := r.watch(ctx, txf, key); err != nil {
		return false, err
	}
	return deleted, nil
}

func (r *RedisRegister) watch(ctx context.Context, txf func(tx *redis.Tx) error, key string) error {
	err := retry.Do(ctx, r.retryCfg, func() error {
		return r.client.Client().Watch(ctx, txf, key)
	})
	if err == nil {
		return nil
	}

	var cbErr callbackError
	if errors.As(err, &cbErr) {
		return cbErr.err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewStoreError("presence register timed out", err)
	}
	return apperrors.NewStoreError("presence register write failed", err)
}

// dropIndexEntry removes an index entry whose record is already gone.
func dropIndexEntry(ctx context.Context, tx *redis.Tx, visitorID string) error {
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, activityIndex, visitorID)
		return nil
	})
	return err
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, cmd getter, key string) (*entities.LiveVisitor, error) {
	raw, err := cmd.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	lv := &entities.LiveVisitor{}
	if err := json.Unmarshal(raw, lv); err != nil {
		return nil, fmt.Errorf("corrupt live visitor at %s: %w", key, err)
	}
	return lv, nil
}
