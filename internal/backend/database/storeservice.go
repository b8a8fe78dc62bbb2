package database

import "context"

// AssetStore persists asset records locally. There is a single logical owner
// per process; the store does not coordinate concurrent writers and performs
// no retries of its own — storage faults propagate to the caller verbatim.
type AssetStore interface {
	Close() error

	// Save inserts a new record or merges into the record with the same name.
	// Merging overwrites supplied fields, keeps unspecified optional fields,
	// preserves CreatedAt and refreshes UpdatedAt. Returns the record id.
	Save(ctx context.Context, req SaveRequest) (string, error)
	// List returns all records. Order carries no meaning to callers.
	List(ctx context.Context) ([]*AssetRecord, error)
	// Get returns the record with the given id, or nil when absent.
	Get(ctx context.Context, id string) (*AssetRecord, error)
	// Delete removes the record with the given id; deleting an absent id is
	// not an error.
	Delete(ctx context.Context, id string) error
	// Clear removes all records.
	Clear(ctx context.Context) error
	// TotalBytes sums original and processed byte lengths over all records,
	// computed from the current store state on every call.
	TotalBytes(ctx context.Context) (int64, error)
	// SweepOlderThan deletes every record whose UpdatedAt is strictly older
	// than now minus the given number of days and returns how many were
	// removed.
	SweepOlderThan(ctx context.Context, days int) (int, error)
	// Summary reports record count and total size for the UI layer.
	Summary(ctx context.Context) (StorageSummary, error)
}
