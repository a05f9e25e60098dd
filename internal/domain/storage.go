package domain

// KV is the persisted key-value storage behind selection history and overrides.
// Implementations report ErrQuotaExceeded when a value is rejected for size.
type KV interface {
	// Get returns the stored value and whether the key exists
	Get(key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous value
	Set(key string, value []byte) error

	// Delete removes key; deleting a missing key is not an error
	Delete(key string) error

	Close() error
}

// Storage keys used inside a user namespace
const (
	KeyShuffleHistory = "shuffle-history"
	KeyLimit          = "limit"
	KeyListCache      = "list-cache"
	KeyListgenHistory = "listgen-history"
)
