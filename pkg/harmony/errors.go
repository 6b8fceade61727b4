package harmony

import "errors"

var (
	// ErrMissingID indicates an entity payload without a snowflake identifier.
	ErrMissingID = errors.New("harmony: entity payload missing id")
	// ErrUnknownSibling indicates a reorder target absent from the sibling set.
	ErrUnknownSibling = errors.New("harmony: moved entity not present in sibling set")
	// ErrTooManyMentions indicates an explicit mention allow-list above 100 entries.
	ErrTooManyMentions = errors.New("harmony: explicit mention allow-list exceeds 100 entries")
	// ErrInvalidLimit indicates a purge limit that is neither -1 nor positive.
	ErrInvalidLimit = errors.New("harmony: invalid purge limit")
	// ErrStaleBatch indicates a bulk-delete batch containing messages older than
	// the service's maximum batch-delete age.
	ErrStaleBatch = errors.New("harmony: batch contains messages older than the bulk-delete cutoff")
)
