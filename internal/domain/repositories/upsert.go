package repositories

// CreateFunc builds the record for a key seen for the first time.
type CreateFunc[T any] func() (*T, error)

// UpdateFunc mutates an existing record in place. It runs while the key is held,
// so it must not call back into the same repository for the same key.
type UpdateFunc[T any] func(*T) error

// Predicate re-checks a condition on the current stored record at write time.
type Predicate[T any] func(*T) bool
