package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"go.etcd.io/bbolt"

	"reciperag/internal/domain"
)

// BoltVectorStore implements port.VectorStore on top of a BoltStore.
// Each kind lives in its own bucket keyed by the big-endian entity id;
// values are the raw little-endian float32 bytes of the vector.
//
// Nothing is cached in memory: every Scan reads a consistent bbolt snapshot,
// so readers never observe a half-written batch.
type BoltVectorStore struct {
	db        *bbolt.DB
	dimension int
}

// NewBoltVectorStore creates a vector store with a fixed dimension.
func NewBoltVectorStore(s *BoltStore, dimension int) (*BoltVectorStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dimension)
	}
	return &BoltVectorStore{db: s.db, dimension: dimension}, nil
}

func (s *BoltVectorStore) Dimension() int {
	return s.dimension
}

// Upsert inserts or replaces a single row.
func (s *BoltVectorStore) Upsert(ctx context.Context, kind domain.Kind, entityID int64, vector []float32) error {
	return s.UpsertBatch(ctx, kind, []domain.EmbeddingRecord{{Kind: kind, EntityID: entityID, Vector: vector}})
}

// UpsertBatch writes all records in one transaction.
func (s *BoltVectorStore) UpsertBatch(ctx context.Context, kind domain.Kind, records []domain.EmbeddingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := bucketFor(kind)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(name)
		if b == nil {
			return fmt.Errorf("bucket %s not found", name)
		}

		for _, rec := range records {
			if len(rec.Vector) != s.dimension {
				return fmt.Errorf("vector dimension mismatch for %s %d: expected %d, got %d",
					kind, rec.EntityID, s.dimension, len(rec.Vector))
			}
			if err := b.Put(idKey(rec.EntityID), encodeVector(rec.Vector)); err != nil {
				return fmt.Errorf("failed to put %s %d: %w", kind, rec.EntityID, err)
			}
		}
		return nil
	})
}

// Scan returns every valid row of kind. Rows of the wrong byte length are
// reported as joined *domain.CorruptRecordError values next to the rows.
func (s *BoltVectorStore) Scan(ctx context.Context, kind domain.Kind) ([]domain.EmbeddingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := bucketFor(kind)
	if err != nil {
		return nil, err
	}

	expected := s.dimension * 4
	var (
		records []domain.EmbeddingRecord
		corrupt []error
	)
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(name)
		if b == nil {
			return nil
		}
		records = make([]domain.EmbeddingRecord, 0, b.Stats().KeyN)

		return b.ForEach(func(k, v []byte) error {
			if len(k) != 8 {
				corrupt = append(corrupt, &domain.CorruptRecordError{Kind: kind, EntityID: -1, Length: len(v), Expected: expected})
				return nil
			}
			id := keyID(k)
			if len(v) != expected {
				corrupt = append(corrupt, &domain.CorruptRecordError{Kind: kind, EntityID: id, Length: len(v), Expected: expected})
				return nil
			}
			// v is only valid inside the transaction; decodeVector copies.
			records = append(records, domain.EmbeddingRecord{Kind: kind, EntityID: id, Vector: decodeVector(v)})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return records, errors.Join(corrupt...)
}

// Delete removes rows by entity id; unknown ids are ignored.
func (s *BoltVectorStore) Delete(ctx context.Context, kind domain.Kind, ids []int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := bucketFor(kind)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(name)
		if b == nil {
			return nil
		}
		for _, id := range ids {
			if err := b.Delete(idKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// IDs lists the entity ids with a stored row, ascending.
func (s *BoltVectorStore) IDs(ctx context.Context, kind domain.Kind) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := bucketFor(kind)
	if err != nil {
		return nil, err
	}

	var ids []int64
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(name)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if len(k) == 8 {
				ids = append(ids, keyID(k))
			}
		}
		return nil
	})
	return ids, err
}

// Count returns the number of stored rows of kind.
func (s *BoltVectorStore) Count(ctx context.Context, kind domain.Kind) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	name, err := bucketFor(kind)
	if err != nil {
		return 0, err
	}

	var n int
	err = s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(name); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}

// idKey encodes an entity id so that bucket order is numeric order for
// non-negative ids.
func idKey(id int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

func keyID(k []byte) int64 {
	return int64(binary.BigEndian.Uint64(k))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
