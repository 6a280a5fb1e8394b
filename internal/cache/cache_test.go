package cache

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Disabled(t *testing.T) {
	c := New(0, 0, nil)
	assert.Nil(t, c)

	_, ok := c.Get("a")
	assert.False(t, ok)
	c.Set("a", []byte("x"))
	c.Clear()
	assert.Equal(t, Stats{}, c.Stats())

	v, hit, err := c.GetOrRender(context.Background(), "a", func(context.Context) ([]byte, error) { return []byte("rendered"), nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []byte("rendered"), v)
}

func TestKey(t *testing.T) {
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
	assert.Equal(t, Key("a", "b"), Key("a", "b"))
}

func TestCache_GetOrRender(t *testing.T) {
	c := New(1<<20, 0, nil)
	require.NotNil(t, c)

	calls := 0
	render := func(context.Context) ([]byte, error) {
		calls++
		return []byte("tile"), nil
	}

	v, hit, err := c.GetOrRender(context.Background(), "k", render)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []byte("tile"), v)

	v, hit, err = c.GetOrRender(context.Background(), "k", render)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("tile"), v)
	assert.Equal(t, 1, calls)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Entries)

	c.Clear()
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_RenderError(t *testing.T) {
	c := New(1<<20, 0, nil)
	boom := errors.New("boom")

	_, _, err := c.GetOrRender(context.Background(), "k", func(context.Context) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_LargeEntrySkipped(t *testing.T) {
	c := New(MinSize, 0, nil)
	big := bytes.Repeat([]byte{1}, MinSize)

	v, _, err := c.GetOrRender(context.Background(), "big", func(context.Context) ([]byte, error) { return big, nil })
	require.NoError(t, err)
	assert.Len(t, v, MinSize)
	_, ok := c.Get("big")
	assert.False(t, ok)
}

func TestCache_TTL(t *testing.T) {
	c := New(1<<20, time.Second, nil)
	assert.Equal(t, 1, c.ttl)
}

func TestCache_ConcurrentMisses(t *testing.T) {
	c := New(1<<20, 0, nil)

	var calls atomic.Int32
	release := make(chan struct{})
	render := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("window"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := c.GetOrRender(context.Background(), "k", render)
			assert.NoError(t, err)
			assert.Equal(t, []byte("window"), v)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestCache_CanceledCallerDoesNotFailOthers(t *testing.T) {
	c := New(1<<20, 0, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	render := func(ctx context.Context) ([]byte, error) {
		close(started)
		select {
		case <-release:
			return []byte("tile"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrRender(firstCtx, "k", render)
		firstErr <- err
	}()
	<-started

	type result struct {
		v   []byte
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, _, err := c.GetOrRender(context.Background(), "k", func(context.Context) ([]byte, error) {
			return nil, errors.New("second render must not run")
		})
		second <- result{v, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, []byte("tile"), res.v)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, []byte("tile"), v)
}

func TestCache_RenderKeepsDeadline(t *testing.T) {
	c := New(1<<20, 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := c.GetOrRender(ctx, "k", func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, ok := c.Get("k")
	assert.False(t, ok)
}
