package db

// DatabaseProvider abstracts the key-value engine behind the stores.
// Get returns nil, nil for a missing key.
type DatabaseProvider interface {
	Get(key []byte) ([]byte, error)

	// GetBatch returns the values that exist among keys, keyed by string(key).
	GetBatch(keys [][]byte) (map[string][]byte, error)

	Put(key, value []byte) error

	Delete(key []byte) error

	Has(key []byte) (bool, error)

	Close() error

	// Batch returns a new batch for atomic writes
	Batch() DatabaseBatch
}

// IterableProvider extends DatabaseProvider with prefix iteration.
type IterableProvider interface {
	DatabaseProvider

	// IteratePrefix visits every pair under prefix until callback returns false.
	IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error
}

// DatabaseBatch collects writes that are committed together.
type DatabaseBatch interface {
	Put(key, value []byte)

	Delete(key []byte)

	Write() error

	Reset()

	Close() error
}
