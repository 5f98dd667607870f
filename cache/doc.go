// Package cache implements ResponseCache, a URL-keyed response cache over a
// quota-limited store.
//
// GetURL returns a cancellable Request. On a hit the stored entry is
// decompressed, its recency refreshed and the value returned. On a miss the
// URL is fetched; a successful response is compressed and written, evicting
// least recently used entries while the store reports it is full. A failed
// write never fails the request. When the store is unavailable every call
// passes straight through to the origin.
//
// Basic usage:
//
//	st := store.New(ctx, medium)
//	c, err := cache.New(st, cache.WithLogger(cache.NewLogger(cache.DefaultLogConfig())))
//	if err != nil {
//		return err
//	}
//	v, err := c.GetURL(ctx, "https://example.com/data.json").Wait(ctx)
package cache
