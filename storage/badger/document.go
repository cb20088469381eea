package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/gnosis/core"
	"github.com/poiesic/gnosis/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	return &DocumentRepository{
		backend: backend,
	}, nil
}

// Close releases resources. DocumentRepository has no resources to release.
func (r *DocumentRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *DocumentRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddDocument stores a new document and updates the source index so that
// lookups by source resolve to the latest version.
func (r *DocumentRepository) AddDocument(ctx context.Context, document *core.Document) (*core.Document, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Use content-based ID if not set
		if document.Id == 0 {
			document.Id = core.DocumentID(document.SourceId, document.Version)
		}

		key := makeDocumentKey(document.Id)
		if _, err := tx.Get(key); err == nil {
			return storage.ErrDuplicateKey
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		// Link to the prior version, if any
		latest, err := readLatestBySource(tx, document.SourceId)
		if err != nil {
			return err
		}
		if latest != nil && document.SupersedesId == 0 {
			document.SupersedesId = latest.Id
		}

		// Set timestamps
		document.InsertedAt = time.Now().UTC()
		document.UpdatedAt = document.InsertedAt

		// Store primary record
		if err := tx.Set(key, storage.MarshalDocument(document)); err != nil {
			return err
		}

		// Update source index when this is the newest version
		if latest == nil || document.Version > latest.Version {
			sourceKey := makeDocumentSourceKey(document.SourceId)
			if err := tx.Set(sourceKey, storage.MarshalID(document.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return document, err
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, makeDocumentKey(id))
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

// GetDocumentBySource retrieves the latest version for a source identifier.
func (r *DocumentRepository) GetDocumentBySource(ctx context.Context, sourceID string) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readLatestBySource(tx, sourceID)
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

// ListDocuments retrieves all documents from storage.
func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		prefix := []byte(documentRecordPrefix + ":")
		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			item := iter.Item()
			if !hasPrefix(item.Key(), prefix) {
				break
			}

			var document *core.Document
			err := item.Value(func(val []byte) error {
				var err error
				document, err = storage.UnmarshalDocument(val)
				return err
			})
			if err != nil {
				return err
			}
			if document != nil {
				results = append(results, document)
			}
		}
		return nil
	}, false)

	return results, err
}

// AddSegments stores segments and maintains the per-document position index.
func (r *DocumentRepository) AddSegments(ctx context.Context, segments ...*core.Segment) ([]*core.Segment, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, segment := range segments {
			if segment.Id == 0 {
				segment.Id = core.SegmentID(segment.DocumentId, segment.Position)
			}
			if segment.InsertedAt.IsZero() {
				segment.InsertedAt = time.Now().UTC()
			}

			key := makeSegmentKey(segment.Id)
			if err := tx.Set(key, storage.MarshalSegment(segment)); err != nil {
				return err
			}

			docKey := makeSegmentDocKey(segment.DocumentId, segment.Position)
			if err := tx.Set(docKey, storage.MarshalID(segment.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return segments, err
}

// UpdateSegments updates existing segments, typically to refresh vectors.
func (r *DocumentRepository) UpdateSegments(ctx context.Context, segments ...*core.Segment) ([]*core.Segment, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, segment := range segments {
			key := makeSegmentKey(segment.Id)
			old, err := readSegment(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}
			if err := tx.Set(key, storage.MarshalSegment(segment)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return segments, err
}

// GetSegment retrieves a single segment by ID.
func (r *DocumentRepository) GetSegment(ctx context.Context, id core.ID) (*core.Segment, error) {
	var result *core.Segment
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readSegment(tx, makeSegmentKey(id))
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

// GetSegmentsByDocument returns a document's segments ordered by position.
// The index keys encode positions in BigEndian, so iteration order is
// position order.
func (r *DocumentRepository) GetSegmentsByDocument(ctx context.Context, documentID core.ID) ([]*core.Segment, error) {
	var results []*core.Segment
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		prefix := makePartialSegmentDocKey(documentID)
		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			item := iter.Item()
			if !hasPrefix(item.Key(), prefix) {
				break
			}

			var segmentID core.ID
			err := item.Value(func(val []byte) error {
				var err error
				segmentID, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}

			segment, err := readSegment(tx, makeSegmentKey(segmentID))
			if err != nil {
				return err
			}
			if segment != nil {
				results = append(results, segment)
			}
		}
		return nil
	}, false)

	return results, err
}

// IterateSegments calls fn for every stored segment in ascending id order,
// starting after the given id.
func (r *DocumentRepository) IterateSegments(ctx context.Context, after core.ID, fn func(*core.Segment) error) error {
	var segments []*core.Segment
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		prefix := []byte(segmentRecordPrefix + ":")
		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			item := iter.Item()
			if !hasPrefix(item.Key(), prefix) {
				break
			}

			var segment *core.Segment
			err := item.Value(func(val []byte) error {
				var err error
				segment, err = storage.UnmarshalSegment(val)
				return err
			})
			if err != nil {
				return err
			}
			if segment != nil && segment.Id > after {
				segments = append(segments, segment)
			}
		}
		return nil
	}, false)
	if err != nil {
		return err
	}

	// Record keys are decimal strings, so iteration order is lexicographic;
	// sort numerically for a stable resume order.
	slices.SortFunc(segments, func(a, b *core.Segment) int {
		if a.Id < b.Id {
			return -1
		}
		if a.Id > b.Id {
			return 1
		}
		return 0
	})

	for _, segment := range segments {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(segment); err != nil {
			return err
		}
	}
	return nil
}

// Helper methods

// readDocument reads a document from the transaction.
func readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var document *core.Document
	err = item.Value(func(val []byte) error {
		var err error
		document, err = storage.UnmarshalDocument(val)
		return err
	})
	return document, err
}

// readSegment reads a segment from the transaction.
func readSegment(tx *badger.Txn, key []byte) (*core.Segment, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var segment *core.Segment
	err = item.Value(func(val []byte) error {
		var err error
		segment, err = storage.UnmarshalSegment(val)
		return err
	})
	return segment, err
}

// readLatestBySource resolves the source index to the latest document version.
// Returns nil, nil when no version exists.
func readLatestBySource(tx *badger.Txn, sourceID string) (*core.Document, error) {
	item, err := tx.Get(makeDocumentSourceKey(sourceID))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var id core.ID
	err = item.Value(func(val []byte) error {
		var err error
		id, err = storage.UnmarshalID(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return readDocument(tx, makeDocumentKey(id))
}

// hasPrefix checks if a byte slice has a given prefix
func hasPrefix(s, prefix []byte) bool {
	return len(s) >= len(prefix) && string(s[:len(prefix)]) == string(prefix)
}
