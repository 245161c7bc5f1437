package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jackmoore7/coles-web-app/internal/store"
)

type fakeStore struct {
	mu      sync.Mutex
	calls   int32
	records []store.PriceChange
	err     error
}

func (f *fakeStore) FindAll(ctx context.Context) ([]store.PriceChange, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]store.PriceChange, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeStore) FindByItem(ctx context.Context, itemID int64) ([]store.PriceChange, error) {
	return nil, nil
}

func (f *fakeStore) DistinctItemIDs(ctx context.Context) ([]int64, error) {
	return nil, nil
}

func (f *fakeStore) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func someRecords(n int) []store.PriceChange {
	recs := make([]store.PriceChange, n)
	for i := range recs {
		recs[i] = store.PriceChange{
			ItemID:      int64(i + 1),
			ItemBrand:   "Brand",
			ItemName:    "Item",
			PriceBefore: decimal.NewFromInt(10),
			PriceAfter:  decimal.NewFromInt(12),
			Date:        time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		}
	}
	return recs
}

func newTestCache(fs *fakeStore, now time.Time) *Cache {
	c := New(fs, 20)
	c.now = func() time.Time { return now }
	return c
}

func TestGetColdStartFetches(t *testing.T) {
	fs := &fakeStore{records: someRecords(3)}
	c := newTestCache(fs, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))

	snap, err := c.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Records, 3)
	require.EqualValues(t, 1, atomic.LoadInt32(&fs.calls))
}

func TestGetFreshSnapshotReused(t *testing.T) {
	fs := &fakeStore{records: someRecords(2)}
	c := newTestCache(fs, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))

	first, err := c.Get(context.Background())
	require.NoError(t, err)
	second, err := c.Get(context.Background())
	require.NoError(t, err)
	require.Same(t, first, second)
	require.EqualValues(t, 1, atomic.LoadInt32(&fs.calls))
}

func TestStalenessAroundCutoff(t *testing.T) {
	day := func(d, h int) time.Time {
		return time.Date(2025, 3, d, h, 0, 0, 0, time.UTC)
	}
	cases := []struct {
		name      string
		fetchedAt time.Time
		now       time.Time
		stale     bool
	}{
		{"refreshed after cutoff, still same day", day(1, 21), day(1, 23), false},
		{"now crossed today's cutoff, refresh before it", day(1, 10), day(1, 20), true},
		{"before today's cutoff, refresh after yesterday's", day(1, 21), day(2, 10), false},
		{"before today's cutoff, refresh older than yesterday's", day(1, 10), day(2, 10), true},
		{"refresh days old", day(1, 21), day(4, 10), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestCache(&fakeStore{}, tc.now)
			require.Equal(t, tc.stale, c.stale(&Snapshot{FetchedAt: tc.fetchedAt}))
		})
	}
}

func TestConcurrentGetRefreshesOnce(t *testing.T) {
	fs := &fakeStore{records: someRecords(5)}
	c := newTestCache(fs, time.Date(2025, 3, 1, 21, 0, 0, 0, time.UTC))

	const n = 32
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			snap, err := c.Get(context.Background())
			if err == nil && len(snap.Records) != 5 {
				err = errors.New("wrong record count")
			}
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.EqualValues(t, 1, atomic.LoadInt32(&fs.calls))
}

func TestRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	fs := &fakeStore{records: someRecords(4)}
	c := newTestCache(fs, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))

	first, err := c.Get(context.Background())
	require.NoError(t, err)

	// Cross the cutoff, then make the store fail.
	c.now = func() time.Time { return time.Date(2025, 3, 1, 21, 0, 0, 0, time.UTC) }
	fs.setErr(errors.New("connection refused"))

	snap, err := c.Get(context.Background())
	require.NoError(t, err)
	require.Same(t, first, snap)
}

func TestColdStartFailureErrors(t *testing.T) {
	fs := &fakeStore{}
	fs.setErr(errors.New("connection refused"))
	c := newTestCache(fs, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))

	_, err := c.Get(context.Background())
	require.Error(t, err)
}
