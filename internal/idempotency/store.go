package idempotency

import (
	"context"
	"errors"
	"time"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

var ErrKeyRequired = errors.New("idempotency key is empty")

// Record is what a store keeps per idempotency key.
type Record struct {
	Fingerprint string    `json:"fingerprint"`
	Status      string    `json:"status"`
	StatusCode  int       `json:"statusCode,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	Body        []byte    `json:"body,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type Store interface {
	// Begin claims key with a pending record. When the key is already held
	// the stored record is returned and claimed is false.
	Begin(ctx context.Context, key, fingerprint string, ttl time.Duration) (rec Record, claimed bool, err error)
	// Complete replaces the pending record with the final response.
	Complete(ctx context.Context, key string, rec Record, ttl time.Duration) error
	// Release drops the key so the request can be retried.
	Release(ctx context.Context, key string) error
	Close() error
}

type noopStore struct{}

// NewNoopStore returns a Store that never remembers anything.
func NewNoopStore() Store { return noopStore{} }

func (noopStore) Begin(context.Context, string, string, time.Duration) (Record, bool, error) {
	return Record{}, true, nil
}

func (noopStore) Complete(context.Context, string, Record, time.Duration) error { return nil }

func (noopStore) Release(context.Context, string) error { return nil }

func (noopStore) Close() error { return nil }
