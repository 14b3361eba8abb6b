package idempotency

import (
	"context"
	"encoding/json"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/smallbiznis/invoicedesk/internal/clock"
)

const boltBucket = "idempotency_keys"

// BoltStore keeps idempotency records in an embedded BoltDB file.
type BoltStore struct {
	db    *bolt.DB
	clock clock.Clock
}

func NewBoltStore(path string, clk clock.Clock) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &BoltStore{db: db, clock: clk}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Begin(_ context.Context, key, fingerprint string, ttl time.Duration) (Record, bool, error) {
	if key == "" {
		return Record{}, false, ErrKeyRequired
	}

	var result Record
	claimed := false
	now := s.clock.Now()

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))

		if existing := b.Get([]byte(key)); existing != nil {
			var rec Record
			if err := json.Unmarshal(existing, &rec); err != nil {
				return err
			}
			if now.Before(rec.ExpiresAt) {
				result = rec
				return nil
			}
		}

		rec := Record{
			Fingerprint: fingerprint,
			Status:      StatusPending,
			ExpiresAt:   now.Add(ttl),
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		result = rec
		claimed = true
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return Record{}, false, err
	}
	return result, claimed, nil
}

func (s *BoltStore) Complete(_ context.Context, key string, rec Record, ttl time.Duration) error {
	if key == "" {
		return ErrKeyRequired
	}
	rec.Status = StatusCompleted
	rec.ExpiresAt = s.clock.Now().Add(ttl)
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Put([]byte(key), data)
	})
}

func (s *BoltStore) Release(_ context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Delete([]byte(key))
	})
}

// Purge removes expired records and reports how many were dropped.
func (s *BoltStore) Purge() (int, error) {
	now := s.clock.Now()
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil || !now.Before(rec.ExpiresAt) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(expired)
		return nil
	})
	return removed, err
}
