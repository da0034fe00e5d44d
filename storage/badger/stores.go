package badger

import "errors"

// Stores bundles every BadgerDB-backed collaborator on one shared backend.
type Stores struct {
	Backend     *Backend
	Registry    *Registry
	Graph       *GraphStore
	Images      *ImageIndex
	Checkpoints *CheckpointStore
}

// OpenStores opens the backend at filePath and creates all stores on it.
func OpenStores(filePath string, inMemory bool, opts ...BackendOption) (*Stores, error) {
	backend, err := OpenBackend(filePath, inMemory, opts...)
	if err != nil {
		return nil, err
	}

	registry, err := NewRegistry(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Stores{
		Backend:     backend,
		Registry:    registry,
		Graph:       NewGraphStore(backend),
		Images:      NewImageIndex(backend),
		Checkpoints: NewCheckpointStore(backend),
	}, nil
}

// Close releases the registry sequence and closes the backend.
func (s *Stores) Close() error {
	return errors.Join(s.Registry.Close(), s.Backend.Close())
}
