package invoice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sale-service/pkg/database/databasetest"
	"sale-service/prometheus"

	"github.com/go-redis/redismock/v9"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "INV-20260115-0001", Format("20260115", 1))
	assert.Equal(t, "INV-20260115-0420", Format("20260115", 420))
	assert.Equal(t, "INV-20260115-12345", Format("20260115", 12345))
}

func TestDateKeyUsesLocalDay(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*60*60)
	// 20:30 UTC on the 14th is already the 15th at UTC+7
	ts := time.Date(2026, 1, 14, 20, 30, 0, 0, time.UTC).In(loc)
	assert.Equal(t, "20260115", DateKey(ts))
}

func TestMemorySequencerIsUniqueUnderConcurrency(t *testing.T) {
	seq := NewMemorySequencer(fixedClock(time.Date(2026, 1, 15, 10, 0, 0, 0, time.Local)))

	const n = 200
	results := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv, err := seq.Next(context.Background())
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results <- inv
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool, n)
	for inv := range results {
		assert.False(t, seen[inv], "duplicate invoice %s", inv)
		seen[inv] = true
	}
	assert.Len(t, seen, n)
	assert.True(t, seen["INV-20260115-0001"])
	assert.True(t, seen["INV-20260115-0200"])
}

func TestMemorySequencerRestartsEachDay(t *testing.T) {
	now := time.Date(2026, 1, 15, 23, 59, 0, 0, time.Local)
	seq := NewMemorySequencer(func() time.Time { return now })
	ctx := context.Background()

	first, _ := seq.Next(ctx)
	second, _ := seq.Next(ctx)
	now = now.Add(2 * time.Minute)
	third, _ := seq.Next(ctx)

	assert.Equal(t, "INV-20260115-0001", first)
	assert.Equal(t, "INV-20260115-0002", second)
	assert.Equal(t, "INV-20260116-0001", third)
}

func TestMemorySequencerHonoursCancelledContext(t *testing.T) {
	seq := NewMemorySequencer(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := seq.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func expectRedisIncrement(mock redismock.ClientMock, key string, ordinal int64, expirySet bool) {
	mock.ExpectTxPipeline()
	mock.ExpectIncr(key).SetVal(ordinal)
	mock.ExpectExpireNX(key, 48*time.Hour).SetVal(expirySet)
	mock.ExpectTxPipelineExec()
}

func TestRedisSequencerFirstOfDaySetsExpiry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	seq := NewRedisSequencer(db, fixedClock(time.Date(2026, 1, 15, 9, 0, 0, 0, time.Local)))

	expectRedisIncrement(mock, "invoice:seq:20260115", 1, true)

	inv, err := seq.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "INV-20260115-0001", inv)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRedisSequencerLaterCallsKeepExistingExpiry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	seq := NewRedisSequencer(db, fixedClock(time.Date(2026, 1, 15, 9, 0, 0, 0, time.Local)))

	expectRedisIncrement(mock, "invoice:seq:20260115", 17, false)

	inv, err := seq.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "INV-20260115-0017", inv)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRedisSequencerRepairsMissingExpiry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	seq := NewRedisSequencer(db, fixedClock(time.Date(2026, 1, 15, 9, 0, 0, 0, time.Local)))

	// a counter past its first ordinal with no TTL gets one now
	expectRedisIncrement(mock, "invoice:seq:20260115", 5, true)

	inv, err := seq.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "INV-20260115-0005", inv)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRedisSequencerPropagatesErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	seq := NewRedisSequencer(db, fixedClock(time.Date(2026, 1, 15, 9, 0, 0, 0, time.Local)))

	mock.ExpectTxPipeline()
	mock.ExpectIncr("invoice:seq:20260115").SetErr(errors.New("connection refused"))

	_, err := seq.Next(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestPostgresSequencerConcurrentCallsAreUnique(t *testing.T) {
	db := databasetest.Open(t)
	seq := NewPostgresSequencer(db, prometheus.NewMetrics("test", promclient.NewRegistry()),
		fixedClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.Local)))

	const n = 40
	var mu sync.Mutex
	seen := make(map[string]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv, err := seq.Next(context.Background())
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[inv] {
				t.Errorf("duplicate invoice %s", inv)
			}
			seen[inv] = true
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	assert.True(t, seen["INV-20260115-0001"])
	assert.True(t, seen["INV-20260115-0040"])
}
