package resolver

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogdom "petshop/internal/domain/catalog"
)

type blockingReader struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingReader) GetByIDs(ctx context.Context, ids []string) (map[string]catalogdom.Product, error) {
	b.calls.Add(1)
	b.once.Do(func() { close(b.entered) })
	<-b.release
	out := map[string]catalogdom.Product{}
	for _, id := range ids {
		out[id] = catalogdom.Product{ID: id, Price: decimal.NewFromInt(1), Stock: 1}
	}
	return out, nil
}

func TestCoalescingReader_CollapsesConcurrentLookups(t *testing.T) {
	next := &blockingReader{entered: make(chan struct{}), release: make(chan struct{})}
	r := NewCoalescingReader(next)

	const n = 5
	var wg sync.WaitGroup
	results := make([]map[string]catalogdom.Product, n)

	wg.Add(1)
	go func() {
		defer wg.Done()
		got, err := r.GetByIDs(context.Background(), []string{"b", "a"})
		assert.NoError(t, err)
		results[0] = got
	}()
	<-next.entered

	for i := 1; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := r.GetByIDs(context.Background(), []string{"a", "b", "a"})
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(next.release)
	wg.Wait()

	assert.EqualValues(t, 1, next.calls.Load())
	for _, got := range results {
		assert.Len(t, got, 2)
	}

	// callers get their own maps
	delete(results[0], "a")
	assert.Contains(t, results[1], "a")
}

func TestCoalescingReader_NoCaching(t *testing.T) {
	next := &blockingReader{entered: make(chan struct{}), release: make(chan struct{})}
	close(next.release)
	r := NewCoalescingReader(next)

	for i := 0; i < 3; i++ {
		_, err := r.GetByIDs(context.Background(), []string{"a"})
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, next.calls.Load())
}

func TestCoalescingReader_EmptyIDs(t *testing.T) {
	next := &blockingReader{entered: make(chan struct{}), release: make(chan struct{})}
	r := NewCoalescingReader(next)

	got, err := r.GetByIDs(context.Background(), []string{" ", ""})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, next.calls.Load())
}

func TestCoalescingReader_CallerCancel(t *testing.T) {
	next := &blockingReader{entered: make(chan struct{}), release: make(chan struct{})}
	r := NewCoalescingReader(next)
	defer close(next.release)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.GetByIDs(ctx, []string{"a"})
		done <- err
	}()
	<-next.entered
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
}
