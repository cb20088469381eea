package badger

import "github.com/poiesic/gnosis/storage"

// Repositories bundles all repository interfaces over one backend.
type Repositories struct {
	Documents   storage.DocumentRepository
	Entities    storage.EntityRepository
	Relations   storage.RelationRepository
	Jobs        storage.JobRepository
	Checkpoints storage.CheckpointRepository

	backend *Backend
}

// Close closes the shared backend.
func (r *Repositories) Close() error {
	return r.backend.Close()
}

// NewRepositories opens a BadgerDB database at the given path and wires all
// repositories over the shared backend.
func NewRepositories(path string) (*Repositories, error) {
	return newRepositories(path, false)
}

func newRepositories(path string, inMemory bool) (*Repositories, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}

	documents, err := NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	entities, err := NewEntityRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	relations, err := NewRelationRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	jobs, err := NewJobRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Repositories{
		Documents:   documents,
		Entities:    entities,
		Relations:   relations,
		Jobs:        jobs,
		Checkpoints: NewCheckpointRepository(backend),
		backend:     backend,
	}, nil
}
