package history

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/doc-capture/internal/capture"
)

const bucketName = "outcomes"

// Store defines the interface for outcome history operations
type Store interface {
	capture.Recorder

	// List returns up to limit outcomes, newest first. limit <= 0 means all.
	List(limit int) ([]*capture.Outcome, error)

	// Close closes the underlying database
	Close() error
}

// BoltStore implements Store using BoltDB. Keys are the completion time in
// nanoseconds followed by the outcome ID, so cursor order is time order.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the history database at path
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func outcomeKey(o *capture.Outcome) []byte {
	return []byte(fmt.Sprintf("%020d-%s", o.CompletedAt.UnixNano(), o.ID))
}

// Record saves an outcome
func (b *BoltStore) Record(outcome *capture.Outcome) error {
	if outcome.ID == "" {
		return fmt.Errorf("outcome id is required")
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data, err := json.Marshal(outcome)
		if err != nil {
			return fmt.Errorf("marshaling outcome: %w", err)
		}
		return bucket.Put(outcomeKey(outcome), data)
	})
}

// List returns outcomes newest first
func (b *BoltStore) List(limit int) ([]*capture.Outcome, error) {
	outcomes := make([]*capture.Outcome, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(outcomes) >= limit {
				break
			}
			var outcome capture.Outcome
			if err := json.Unmarshal(v, &outcome); err != nil {
				return fmt.Errorf("unmarshaling outcome: %w", err)
			}
			outcomes = append(outcomes, &outcome)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcomes, nil
}

// Close closes the database connection
func (b *BoltStore) Close() error {
	return b.db.Close()
}
