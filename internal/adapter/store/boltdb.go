package store

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"reciperag/internal/domain"
)

var (
	bucketMeta = []byte("meta")

	kindBuckets = map[domain.Kind][]byte{
		domain.KindIngredient: []byte("emb_ingredient"),
		domain.KindRecipe:     []byte("emb_recipe"),
	}
)

// BoltStore owns the bbolt file holding embeddings and their metadata.
type BoltStore struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the embedding database at path.
// A zero timeout waits indefinitely for the file lock held by another process.
func Open(path string, timeout time.Duration) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketMeta}
		for _, kind := range domain.Kinds {
			buckets = append(buckets, kindBuckets[kind])
		}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Path returns the file backing the store.
func (s *BoltStore) Path() string {
	return s.db.Path()
}

func bucketFor(kind domain.Kind) ([]byte, error) {
	name, ok := kindBuckets[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
	}
	return name, nil
}
