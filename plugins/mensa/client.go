package mensa

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/firebase/genkit/go/genkit"
	"github.com/va6996/mensaman/core"
	"github.com/va6996/mensaman/log"
	"github.com/va6996/mensaman/tools"
)

// DefaultBaseURL is the public eat-api published by the TUM developers.
const DefaultBaseURL = "https://tum-dev.github.io/eat-api"

// ResponseCache stores raw upstream payloads for a limited time.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	HTTPClient    *http.Client
	Cache         ResponseCache
	CacheTTL      time.Duration
	FacilityCache *FacilityCache
	Clock         Clock
	Geocoder      Geocoder
}

// Client handles eat-api requests and owns the mensa tools.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Cache      ResponseCache
	CacheTTL   time.Duration

	Directory *Directory
	Fetcher   *MenuFetcher

	FacilitiesTool *FacilitiesTool
	MenuTool       *MenuTool
	WeekMenuTool   *WeekMenuTool
	NearbyTool     *NearbyTool
}

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	StatusCode int
	Reason     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Reason)
}

// NewClient creates a new eat-api client and registers its tools when gk and registry are set.
func NewClient(opts Options, gk *genkit.Genkit, registry *tools.Registry) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	facilityCache := opts.FacilityCache
	if facilityCache == nil {
		facilityCache = NewFacilityCache()
	}

	c := &Client{
		BaseURL:    baseURL,
		HTTPClient: httpClient,
		Cache:      opts.Cache,
		CacheTTL:   opts.CacheTTL,
	}
	c.Directory = NewDirectory(c, facilityCache)
	c.Fetcher = NewMenuFetcher(c, opts.Clock)

	c.initTools(opts.Geocoder, gk, registry)

	return c
}

// initTools creates the mensa tools and registers them with genkit when possible.
func (c *Client) initTools(geocoder Geocoder, gk *genkit.Genkit, registry *tools.Registry) {
	c.FacilitiesTool = NewFacilitiesTool(c.Directory, gk, registry)
	c.MenuTool = NewMenuTool(c.Directory, c.Fetcher, gk, registry)
	c.WeekMenuTool = NewWeekMenuTool(c.Directory, c.Fetcher, gk, registry)
	c.NearbyTool = NewNearbyTool(c.Directory, geocoder, gk, registry)
}

// get performs a GET against the eat-api and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s", c.BaseURL, strings.TrimLeft(path, "/"))
	log.Debugf(ctx, "eat-api GET %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "request failed"), ErrTransport)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return nil, errors.Mark(&StatusError{StatusCode: resp.StatusCode, Reason: reason}, ErrTransport)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to read response"), ErrTransport)
	}
	return body, nil
}

// getCanteens returns the raw, validated canteen enumeration.
func (c *Client) getCanteens(ctx context.Context) ([]canteenRecord, error) {
	body, err := c.get(ctx, "enums/canteens.json")
	if err != nil {
		return nil, err
	}
	return decodeCanteens(bytes.NewReader(body))
}

// getWeek returns the validated weekly menu of a facility.
// Successful payloads are kept in the response cache when one is configured.
func (c *Client) getWeek(ctx context.Context, apiName string, wd core.WeekDate) (*weekRecord, error) {
	path := core.WeekPath(apiName, wd)
	key := cacheKey("week", c.BaseURL, path)

	if c.Cache != nil {
		if body, ok := c.Cache.Get(ctx, key); ok {
			log.Debugf(ctx, "eat-api cache hit for %s", path)
			if week, err := decodeWeek(bytes.NewReader(body)); err == nil {
				return week, nil
			}
		}
	}

	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	week, err := decodeWeek(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	if c.Cache != nil && c.CacheTTL > 0 {
		if err := c.Cache.Set(ctx, key, body, c.CacheTTL); err != nil {
			log.Warnf(ctx, "failed to cache %s: %v", path, err)
		}
	}
	return week, nil
}

// cacheKey hashes the request coordinates into a short stable key.
func cacheKey(prefix string, parts ...string) string {
	return fmt.Sprintf("%s:%016x", prefix, xxhash.Sum64String(strings.Join(parts, "|")))
}

// statusCode returns the HTTP status carried by err, or 0.
func statusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
