package reload

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/go/respcache/cache"
	"github.com/jmgilman/go/respcache/errors"
	"github.com/jmgilman/go/respcache/internal/testutil"
	"github.com/jmgilman/go/respcache/medium"
	"github.com/jmgilman/go/respcache/store"
)

func newCache(t *testing.T) *cache.ResponseCache {
	t.Helper()
	m, err := medium.NewMemory(0)
	require.NoError(t, err)
	c, err := cache.New(store.New(context.Background(), m))
	require.NoError(t, err)
	return c
}

func receive(t *testing.T, p Provider) cache.Value {
	t.Helper()
	select {
	case v := <-p.DataReady():
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("no value delivered")
		return cache.Value{}
	}
}

func TestURLProvider_Reload(t *testing.T) {
	origin := testutil.NewOrigin(t)
	origin.Handle("/feed", http.StatusOK, "v1")

	p := NewURLProvider(newCache(t), origin.URL("/feed"))
	defer p.Close()

	p.RequestReload()
	assert.Equal(t, "v1", receive(t, p).String())
	p.Wait()
	require.NoError(t, p.Err())

	// Cached: the origin change is not observed.
	origin.Handle("/feed", http.StatusOK, "v2")
	p.RequestReload()
	assert.Equal(t, "v1", receive(t, p).String())
	assert.Equal(t, 1, origin.Hits("/feed"))
}

func TestURLProvider_Refresh(t *testing.T) {
	origin := testutil.NewOrigin(t)
	origin.Handle("/feed", http.StatusOK, "v1")

	p := NewURLProvider(newCache(t), origin.URL("/feed"), WithRefresh())
	defer p.Close()

	p.RequestReload()
	assert.Equal(t, "v1", receive(t, p).String())
	p.Wait()

	origin.Handle("/feed", http.StatusOK, "v2")
	p.RequestReload()
	assert.Equal(t, "v2", receive(t, p).String())
	assert.Equal(t, 2, origin.Hits("/feed"))
}

func TestURLProvider_BurstCoalesces(t *testing.T) {
	origin := testutil.NewOrigin(t)
	gate := make(chan struct{})
	origin.HandleRoute("/feed", testutil.Route{Status: http.StatusOK, Body: "v", Gate: gate})

	p := NewURLProvider(newCache(t), origin.URL("/feed"), WithRefresh())
	defer p.Close()

	p.RequestReload()
	require.Eventually(t, func() bool { return origin.Hits("/feed") == 1 },
		2*time.Second, 5*time.Millisecond)
	for i := 0; i < 5; i++ {
		p.RequestReload()
	}
	close(gate)
	p.Wait()

	assert.Equal(t, 2, origin.Hits("/feed"), "the burst collapses into one reload")
	ran, replaced := p.coalescer.Stats()
	assert.Equal(t, 2, ran)
	assert.Equal(t, 4, replaced)
	assert.Equal(t, "v", receive(t, p).String())
}

func TestURLProvider_Error(t *testing.T) {
	origin := testutil.NewOrigin(t)

	p := NewURLProvider(newCache(t), origin.URL("/missing"))
	defer p.Close()

	p.RequestReload()
	p.Wait()

	err := p.Err()
	require.Error(t, err)
	assert.Equal(t, errors.CodeFetchFailed, errors.GetCode(err))
	select {
	case v := <-p.DataReady():
		t.Fatalf("unexpected value %q", v.String())
	default:
	}
}

func TestURLProvider_Close(t *testing.T) {
	origin := testutil.NewOrigin(t)
	origin.Handle("/feed", http.StatusOK, "v")

	p := NewURLProvider(newCache(t), origin.URL("/feed"))
	p.Close()
	p.RequestReload()
	p.Wait()
	assert.Zero(t, origin.Hits("/feed"))
}
