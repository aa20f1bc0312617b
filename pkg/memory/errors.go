package memory

import "errors"

// Error kinds surfaced to callers. Operations wrap these with
// fmt.Errorf("%w: ...") so errors.Is works across the API boundary.
var (
	// ErrValidation rejects out-of-domain emotion/category/importance
	// or a wrong embedding dimension. Nothing is written.
	ErrValidation = errors.New("memory: validation failed")

	// ErrNotFound reports an unknown record or episode id. The
	// operation aborts with nothing mutated.
	ErrNotFound = errors.New("memory: not found")

	// ErrStoreIO reports an underlying persistence failure after
	// transaction rollback.
	ErrStoreIO = errors.New("memory: store failure")
)
