package badger

import "github.com/poiesic/primer/storage"

// NewMemoryIndex creates an in-memory index for testing.
// Closing the index closes its private backend.
func NewMemoryIndex(collection string) (storage.VectorIndex, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	idx, err := newIndex(backend, collection)
	if err != nil {
		backend.Close()
		return nil, err
	}
	idx.ownsBackend = true
	return idx, nil
}
