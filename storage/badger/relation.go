package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/gnosis/core"
	"github.com/poiesic/gnosis/resolve"
	"github.com/poiesic/gnosis/storage"
)

// RelationRepository implements storage.RelationRepository for BadgerDB.
type RelationRepository struct {
	backend *Backend
}

var _ storage.RelationRepository = (*RelationRepository)(nil)
var _ resolve.RelationStore = (*RelationRepository)(nil)

// NewRelationRepository creates a new RelationRepository.
func NewRelationRepository(backend *Backend) (*RelationRepository, error) {
	return &RelationRepository{
		backend: backend,
	}, nil
}

// Close releases resources. RelationRepository has no resources to release.
func (r *RelationRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *RelationRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// Put stores or replaces a relation and indexes it under both endpoints.
func (r *RelationRepository) Put(ctx context.Context, relation *core.Relation) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if relation.Id == 0 {
			relation.Id = core.RelationID(relation.SourceId, relation.TargetId, relation.Type)
		}

		key := makeRelationKey(relation.Id)
		old, err := readRelation(tx, key)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if old == nil {
			relation.InsertedAt = now
		} else if relation.InsertedAt.IsZero() {
			relation.InsertedAt = old.InsertedAt
		}
		relation.UpdatedAt = now

		if err := tx.Set(key, storage.MarshalRelation(relation)); err != nil {
			return err
		}

		// Endpoint index entries; idempotent on replace since the key
		// derives from endpoints that never change for a given id
		sourceKey := makeRelationEntityKey(relation.SourceId, relation.Id)
		if err := tx.Set(sourceKey, storage.MarshalID(relation.Id)); err != nil {
			return err
		}
		targetKey := makeRelationEntityKey(relation.TargetId, relation.Id)
		if err := tx.Set(targetKey, storage.MarshalID(relation.Id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Get retrieves a single relation by ID.
func (r *RelationRepository) Get(ctx context.Context, id core.ID) (*core.Relation, error) {
	var result *core.Relation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readRelation(tx, makeRelationKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetByEntity returns all relations with the entity as source or target.
func (r *RelationRepository) GetByEntity(ctx context.Context, entityID core.ID) ([]*core.Relation, error) {
	var results []*core.Relation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		prefix := makePartialRelationEntityKey(entityID)
		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			item := iter.Item()
			if !hasPrefix(item.Key(), prefix) {
				break
			}

			var relationID core.ID
			err := item.Value(func(val []byte) error {
				var err error
				relationID, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}

			relation, err := readRelation(tx, makeRelationKey(relationID))
			if err != nil {
				return err
			}
			if relation != nil {
				results = append(results, relation)
			}
		}
		return nil
	}, false)

	return results, err
}

// DeleteRelations removes relations by their IDs, including index entries.
func (r *RelationRepository) DeleteRelations(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeRelationKey(id)
			relation, err := readRelation(tx, key)
			if err != nil {
				return err
			}
			if relation == nil {
				return storage.ErrNotFound
			}

			if err := tx.Delete(makeRelationEntityKey(relation.SourceId, id)); err != nil {
				return err
			}
			if err := tx.Delete(makeRelationEntityKey(relation.TargetId, id)); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// IterateRelations calls fn for every stored relation in ascending id order.
func (r *RelationRepository) IterateRelations(ctx context.Context, fn func(*core.Relation) error) error {
	var relations []*core.Relation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		prefix := []byte(relationRecordPrefix + ":")
		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			item := iter.Item()
			if !hasPrefix(item.Key(), prefix) {
				break
			}

			var relation *core.Relation
			err := item.Value(func(val []byte) error {
				var err error
				relation, err = storage.UnmarshalRelation(val)
				return err
			})
			if err != nil {
				return err
			}
			if relation != nil {
				relations = append(relations, relation)
			}
		}
		return nil
	}, false)
	if err != nil {
		return err
	}

	slices.SortFunc(relations, func(a, b *core.Relation) int {
		if a.Id < b.Id {
			return -1
		}
		if a.Id > b.Id {
			return 1
		}
		return 0
	})

	for _, relation := range relations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(relation); err != nil {
			return err
		}
	}
	return nil
}

// readRelation reads a relation from the transaction.
func readRelation(tx *badger.Txn, key []byte) (*core.Relation, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var relation *core.Relation
	err = item.Value(func(val []byte) error {
		var err error
		relation, err = storage.UnmarshalRelation(val)
		return err
	})
	return relation, err
}
