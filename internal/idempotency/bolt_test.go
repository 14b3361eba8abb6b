package idempotency

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/smallbiznis/invoicedesk/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBoltStore(t *testing.T, clk clock.Clock) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "idempotency.db"), clk)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStoreBeginClaimsOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestBoltStore(t, clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

	rec, claimed, err := s.Begin(ctx, "k1", "fp", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, StatusPending, rec.Status)

	rec, claimed, err = s.Begin(ctx, "k1", "fp", time.Hour)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "fp", rec.Fingerprint)
	assert.Equal(t, StatusPending, rec.Status)
}

func TestBoltStoreCompleteThenReplay(t *testing.T) {
	ctx := context.Background()
	s := newTestBoltStore(t, clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

	_, _, err := s.Begin(ctx, "k1", "fp", time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, "k1", Record{
		Fingerprint: "fp",
		StatusCode:  201,
		ContentType: "application/json",
		Body:        []byte(`{"ok":true}`),
	}, time.Hour))

	rec, claimed, err := s.Begin(ctx, "k1", "fp", time.Hour)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, 201, rec.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(rec.Body))
}

func TestBoltStoreExpiredKeyIsReclaimed(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	s := newTestBoltStore(t, clk)

	_, _, err := s.Begin(ctx, "k1", "old", time.Minute)
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	rec, claimed, err := s.Begin(ctx, "k1", "new", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, "new", rec.Fingerprint)
}

func TestBoltStoreReleaseAndPurge(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	s := newTestBoltStore(t, clk)

	_, _, err := s.Begin(ctx, "k1", "fp", time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, "k1"))
	require.NoError(t, s.Release(ctx, "k1"))

	_, claimed, err := s.Begin(ctx, "k1", "fp", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	_, _, err = s.Begin(ctx, "k2", "fp", time.Hour)
	require.NoError(t, err)

	clk.Advance(5 * time.Minute)
	removed, err := s.Purge()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestBoltStoreRejectsEmptyKey(t *testing.T) {
	s := newTestBoltStore(t, nil)
	_, _, err := s.Begin(context.Background(), "", "fp", time.Hour)
	assert.ErrorIs(t, err, ErrKeyRequired)
}
