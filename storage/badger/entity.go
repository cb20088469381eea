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

// EntityRepository implements storage.EntityRepository for BadgerDB.
type EntityRepository struct {
	backend *Backend
}

var _ storage.EntityRepository = (*EntityRepository)(nil)
var _ resolve.EntityStore = (*EntityRepository)(nil)

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(backend *Backend) (*EntityRepository, error) {
	return &EntityRepository{
		backend: backend,
	}, nil
}

// Close releases resources. EntityRepository has no resources to release.
func (r *EntityRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *EntityRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// Put stores or replaces an entity. The name index gets one entry per
// normalized surface form (canonical name plus every alias); entries for
// surface forms the entity no longer carries are removed.
func (r *EntityRepository) Put(ctx context.Context, entity *core.Entity) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if entity.Id == 0 {
			entity.Id = core.EntityID(resolve.NormalizeName(entity.Name), entity.Type)
		}

		key := makeEntityKey(entity.Id)
		old, err := readEntity(tx, key)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if old == nil {
			entity.InsertedAt = now
		} else if entity.InsertedAt.IsZero() {
			entity.InsertedAt = old.InsertedAt
		}
		entity.UpdatedAt = now

		if err := tx.Set(key, storage.MarshalEntity(entity)); err != nil {
			return err
		}

		newKeys := entityNameKeys(entity)
		for _, nameKey := range newKeys {
			if err := tx.Set(nameKey, storage.MarshalID(entity.Id)); err != nil {
				return err
			}
		}

		// Drop index entries for surface forms that were removed
		if old != nil {
			for _, oldKey := range entityNameKeys(old) {
				if !containsKey(newKeys, oldKey) {
					if err := tx.Delete(oldKey); err != nil {
						return err
					}
				}
			}
		}
		return tx.Commit()
	}, true)
}

// GetEntity retrieves a single entity by ID.
func (r *EntityRepository) GetEntity(ctx context.Context, id core.ID) (*core.Entity, error) {
	var result *core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readEntity(tx, makeEntityKey(id))
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

// GetEntities retrieves multiple entities by their IDs.
func (r *EntityRepository) GetEntities(ctx context.Context, ids ...core.ID) ([]*core.Entity, error) {
	var result []*core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			entity, err := readEntity(tx, makeEntityKey(id))
			if err != nil {
				return err
			}
			if entity != nil {
				result = append(result, entity)
			}
		}
		return nil
	}, false)
	return result, err
}

// GetByName finds the entity of the given type whose canonical name or alias
// normalizes to the given key.
func (r *EntityRepository) GetByName(ctx context.Context, normalized string, typ core.EntityType) (*core.Entity, error) {
	var result *core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEntityNameKey(normalized, typ))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		var entityID core.ID
		err = item.Value(func(val []byte) error {
			var err error
			entityID, err = storage.UnmarshalID(val)
			return err
		})
		if err != nil {
			return err
		}

		result, err = readEntity(tx, makeEntityKey(entityID))
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

// ListByType returns all entities of the given type.
func (r *EntityRepository) ListByType(ctx context.Context, typ core.EntityType) ([]*core.Entity, error) {
	var results []*core.Entity
	err := r.iterateAll(func(entity *core.Entity) error {
		if entity.Type == typ {
			results = append(results, entity)
		}
		return nil
	})
	return results, err
}

// DeleteEntities removes entities by their IDs, including index entries.
func (r *EntityRepository) DeleteEntities(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeEntityKey(id)
			entity, err := readEntity(tx, key)
			if err != nil {
				return err
			}
			if entity == nil {
				return storage.ErrNotFound
			}

			for _, nameKey := range entityNameKeys(entity) {
				if err := tx.Delete(nameKey); err != nil {
					return err
				}
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// IterateEntities calls fn for every stored entity in ascending id order,
// starting after the given id.
func (r *EntityRepository) IterateEntities(ctx context.Context, after core.ID, fn func(*core.Entity) error) error {
	var entities []*core.Entity
	err := r.iterateAll(func(entity *core.Entity) error {
		if entity.Id > after {
			entities = append(entities, entity)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Record keys are decimal strings, so iteration order is lexicographic;
	// sort numerically for a stable resume order.
	slices.SortFunc(entities, func(a, b *core.Entity) int {
		if a.Id < b.Id {
			return -1
		}
		if a.Id > b.Id {
			return 1
		}
		return 0
	})

	for _, entity := range entities {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(entity); err != nil {
			return err
		}
	}
	return nil
}

// iterateAll scans every entity record.
func (r *EntityRepository) iterateAll(fn func(*core.Entity) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		prefix := []byte(entityRecordPrefix + ":")
		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			item := iter.Item()
			if !hasPrefix(item.Key(), prefix) {
				break
			}

			var entity *core.Entity
			err := item.Value(func(val []byte) error {
				var err error
				entity, err = storage.UnmarshalEntity(val)
				return err
			})
			if err != nil {
				return err
			}
			if entity != nil {
				if err := fn(entity); err != nil {
					return err
				}
			}
		}
		return nil
	}, false)
}

// entityNameKeys builds the name index keys for an entity's canonical name
// and all of its aliases.
func entityNameKeys(entity *core.Entity) [][]byte {
	keys := [][]byte{makeEntityNameKey(resolve.NormalizeName(entity.Name), entity.Type)}
	for _, alias := range entity.Aliases {
		key := makeEntityNameKey(resolve.NormalizeName(alias), entity.Type)
		if !containsKey(keys, key) {
			keys = append(keys, key)
		}
	}
	return keys
}

func containsKey(keys [][]byte, key []byte) bool {
	for _, k := range keys {
		if string(k) == string(key) {
			return true
		}
	}
	return false
}

// readEntity reads an entity from the transaction.
func readEntity(tx *badger.Txn, key []byte) (*core.Entity, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var entity *core.Entity
	err = item.Value(func(val []byte) error {
		var err error
		entity, err = storage.UnmarshalEntity(val)
		return err
	})
	return entity, err
}
