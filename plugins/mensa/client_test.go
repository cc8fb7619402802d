package mensa

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/va6996/mensaman/core"
	"github.com/va6996/mensaman/plugins/mensa/mensatest"
)

// fixedNow is Wednesday of 2025 week 24.
var fixedNow = time.Date(2025, time.June, 11, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, srv *mensatest.Server, opts ...func(*Options)) *Client {
	t.Helper()
	o := Options{
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
		Clock:   Clock{Now: func() time.Time { return fixedNow }, Location: time.UTC},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return NewClient(o, nil, nil)
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.sets++
	return nil
}

func TestNewClient(t *testing.T) {
	client := NewClient(Options{}, nil, nil)
	assert.NotNil(t, client)
	assert.Equal(t, DefaultBaseURL, client.BaseURL)
	require.NotNil(t, client.HTTPClient)
	assert.Equal(t, 30*time.Second, client.HTTPClient.Timeout)
	assert.NotNil(t, client.Directory)
	assert.NotNil(t, client.Fetcher)
	assert.NotNil(t, client.FacilitiesTool)
	assert.NotNil(t, client.MenuTool)
	assert.NotNil(t, client.WeekMenuTool)
	assert.NotNil(t, client.NearbyTool)

	client = NewClient(Options{BaseURL: "http://localhost:9999/eat-api/", Timeout: time.Second}, nil, nil)
	assert.Equal(t, "http://localhost:9999/eat-api", client.BaseURL)
	assert.Equal(t, time.Second, client.HTTPClient.Timeout)
}

func TestClient_getCanteens(t *testing.T) {
	srv := mensatest.NewServer()
	defer srv.Close()

	records, err := newTestClient(t, srv).getCanteens(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, "mensa-garching", records[0].CanteenID)
	assert.Equal(t, 1, srv.CanteenHits())
}

func TestClient_getCanteens_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		kind    ErrorKind
		message string
	}{
		{name: "server error", status: http.StatusServiceUnavailable, kind: KindTransport, message: "HTTP error 503: Service Unavailable"},
		{name: "not found", status: http.StatusNotFound, kind: KindTransport, message: "HTTP error 404: Not Found"},
		{name: "not json", body: `<html>`, kind: KindParse},
		{name: "null", body: `null`, kind: KindParse},
		{name: "object instead of array", body: `{"name": "x"}`, kind: KindParse},
		{name: "missing canteen id", body: `[{"name": "Mensa", "location": {"address": "a"}}]`, kind: KindParse},
		{name: "missing location", body: `[{"name": "Mensa", "canteen_id": "m"}]`, kind: KindParse},
		{name: "latitude out of range", body: `[{"name": "Mensa", "canteen_id": "m", "location": {"address": "a", "latitude": 123, "longitude": 11}}]`, kind: KindParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := mensatest.NewServer()
			defer srv.Close()
			if tt.status != 0 {
				srv.FailCanteens(tt.status)
			} else {
				srv.SetCanteens(tt.body)
			}

			_, err := newTestClient(t, srv).getCanteens(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			if tt.message != "" {
				assert.Equal(t, tt.message, err.Error())
			}
		})
	}
}

func TestClient_NetworkFailure(t *testing.T) {
	srv := mensatest.NewServer()
	client := newTestClient(t, srv)
	srv.Close()

	_, err := client.getCanteens(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, 0, statusCode(err))
}

func TestClient_ContextCancellation(t *testing.T) {
	srv := mensatest.NewServer()
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, srv).getCanteens(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "canceled")
}

func TestClient_getWeek(t *testing.T) {
	srv := mensatest.NewServer()
	defer srv.Close()

	week, err := newTestClient(t, srv).getWeek(context.Background(), "mensa-garching", core.WeekDate{Year: 2025, Week: 24})
	require.NoError(t, err)
	assert.Equal(t, 24, week.Number)
	assert.Len(t, week.Days, 5)
	assert.Equal(t, 1, srv.Hits("mensa-garching/2025/24.json"))

	_, err = newTestClient(t, srv).getWeek(context.Background(), "mensa-garching", core.WeekDate{Year: 2025, Week: 25})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, statusCode(err))
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestClient_getWeek_ResponseCache(t *testing.T) {
	srv := mensatest.NewServer()
	defer srv.Close()

	cache := newMemoryCache()
	client := newTestClient(t, srv, func(o *Options) {
		o.Cache = cache
		o.CacheTTL = time.Hour
	})
	ctx := context.Background()
	wd := core.WeekDate{Year: 2025, Week: 24}

	first, err := client.getWeek(ctx, "mensa-garching", wd)
	require.NoError(t, err)
	second, err := client.getWeek(ctx, "mensa-garching", wd)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, srv.Hits("mensa-garching/2025/24.json"))
	assert.Equal(t, 1, cache.sets)

	// failures are not cached
	_, err = client.getWeek(ctx, "mensa-arcisstr", wd)
	require.Error(t, err)
	_, err = client.getWeek(ctx, "mensa-arcisstr", wd)
	require.Error(t, err)
	assert.Equal(t, 2, srv.Hits("mensa-arcisstr/2025/24.json"))
	assert.Equal(t, 1, cache.sets)
}

func TestCacheKey(t *testing.T) {
	a := cacheKey("week", "http://a", "mensa-garching/2025/24.json")
	assert.Equal(t, a, cacheKey("week", "http://a", "mensa-garching/2025/24.json"))
	assert.NotEqual(t, a, cacheKey("week", "http://b", "mensa-garching/2025/24.json"))
	assert.NotEqual(t, a, cacheKey("week", "http://a", "mensa-garching/2025/25.json"))
	assert.Regexp(t, `^week:[0-9a-f]{16}$`, a)
}
