package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Route is a scripted origin response.
type Route struct {
	Status int
	Body   string
	// Gate, when non-nil, holds the response until it is closed or the
	// request is cancelled.
	Gate chan struct{}
}

// Origin is an HTTP test server with scripted routes and per-path hit counts.
// Unscripted paths answer 404.
type Origin struct {
	server *httptest.Server

	mu     sync.Mutex
	routes map[string]Route
	hits   map[string]int
}

// NewOrigin starts an origin that is closed when the test finishes.
func NewOrigin(t *testing.T) *Origin {
	t.Helper()

	o := &Origin{
		routes: make(map[string]Route),
		hits:   make(map[string]int),
	}
	o.server = httptest.NewServer(http.HandlerFunc(o.serve))
	t.Cleanup(o.server.Close)
	return o
}

// Handle scripts a status and body for path.
func (o *Origin) Handle(path string, status int, body string) {
	o.HandleRoute(path, Route{Status: status, Body: body})
}

// HandleRoute scripts a full route for path.
func (o *Origin) HandleRoute(path string, r Route) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.routes[path] = r
}

// URL returns the absolute URL of path on this origin.
func (o *Origin) URL(path string) string {
	return o.server.URL + path
}

// Hits returns how many requests path has received.
func (o *Origin) Hits(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

// TotalHits returns the number of requests across all paths.
func (o *Origin) TotalHits() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	total := 0
	for _, n := range o.hits {
		total += n
	}
	return total
}

func (o *Origin) serve(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	o.hits[r.URL.Path]++
	route, ok := o.routes[r.URL.Path]
	o.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if route.Gate != nil {
		select {
		case <-route.Gate:
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(route.Status)
	_, _ = w.Write([]byte(route.Body))
}
