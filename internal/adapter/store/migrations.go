package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"reciperag/internal/domain"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion  = []byte("schema_version")
	fingerprintPrefix = "embedding_fingerprint:"
)

func fingerprintKey(kind domain.Kind) []byte {
	return []byte(fingerprintPrefix + kind.String())
}

// Fingerprint identifies the embedding space stored vectors belong to.
// Vectors produced under different fingerprints are not comparable.
type Fingerprint struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%s/%s (dim %d)", f.Provider, f.Model, f.Dimension)
}

// SchemaInfo stores schema version and the embedding fingerprint of each
// kind that has been built.
type SchemaInfo struct {
	Version      int                          `json:"version"`
	Fingerprints map[domain.Kind]*Fingerprint `json:"fingerprints,omitempty"`
}

// GetSchemaInfo retrieves the current schema info from the database.
func (s *BoltStore) GetSchemaInfo() (*SchemaInfo, error) {
	info := SchemaInfo{Fingerprints: make(map[domain.Kind]*Fingerprint)}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}

		if data := b.Get(keySchemaVersion); data != nil {
			if err := json.Unmarshal(data, &info.Version); err != nil {
				return fmt.Errorf("invalid schema version: %w", err)
			}
		}

		for _, kind := range domain.Kinds {
			data := b.Get(fingerprintKey(kind))
			if data == nil {
				continue
			}
			var fp Fingerprint
			if err := json.Unmarshal(data, &fp); err != nil {
				return fmt.Errorf("invalid %s embedding fingerprint: %w", kind, err)
			}
			info.Fingerprints[kind] = &fp
		}

		return nil
	})
	return &info, err
}

// SetFingerprint records the schema version and the fingerprint of the
// kind's vectors about to be written.
func (s *BoltStore) SetFingerprint(kind domain.Kind, fp Fingerprint) error {
	if _, err := bucketFor(kind); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)

		versionData, err := json.Marshal(CurrentSchemaVersion)
		if err != nil {
			return err
		}
		if err := b.Put(keySchemaVersion, versionData); err != nil {
			return err
		}

		fpData, err := json.Marshal(fp)
		if err != nil {
			return err
		}
		return b.Put(fingerprintKey(kind), fpData)
	})
}

// CompatibilityResult describes whether the stored vectors of one kind can
// be searched with the configured embedder.
type CompatibilityResult struct {
	Kind         domain.Kind
	NeedsRebuild bool
	Stored       *Fingerprint
	Current      Fingerprint
	Reason       string
}

// CheckCompatibility compares the kind's stored fingerprint with the
// current one. A kind never built is always compatible.
func (s *BoltStore) CheckCompatibility(kind domain.Kind, current Fingerprint) (*CompatibilityResult, error) {
	if _, err := bucketFor(kind); err != nil {
		return nil, err
	}
	info, err := s.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	stored := info.Fingerprints[kind]
	result := &CompatibilityResult{Kind: kind, Stored: stored, Current: current}

	switch {
	case info.Version > CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("database created by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
	case stored == nil:
	case stored.Dimension != current.Dimension:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("embedding dimension changed from %d to %d", stored.Dimension, current.Dimension)
	case stored.Provider != current.Provider || stored.Model != current.Model:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("embedding model changed from %s to %s", stored, current)
	}

	return result, nil
}

// Clear removes all rows of kind and its fingerprint (for a from-scratch
// rebuild).
func (s *BoltStore) Clear(kind domain.Kind) error {
	name, err := bucketFor(kind)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(name) != nil {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		if _, err := tx.CreateBucket(name); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Delete(fingerprintKey(kind))
	})
}
