package googlemaps

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"googlemaps.github.io/maps"

	"github.com/va6996/mensaman/log"
	"github.com/va6996/mensaman/plugins/mensa"
)

// Munich city center, used to bias ambiguous addresses.
var munich = maps.LatLng{Lat: 48.137154, Lng: 11.576124}

// Client handles Google Maps geocoding requests
type Client struct {
	APIKey     string
	MapsClient *maps.Client
}

// NewClient creates a new Google Maps API client.
// baseURL is optional and only used to point the client at a test server.
func NewClient(apiKey, baseURL string) (*Client, error) {
	opts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, maps.WithBaseURL(baseURL))
	}

	c, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}

	return &Client{
		APIKey:     apiKey,
		MapsClient: c,
	}, nil
}

// GetCoordinates returns the raw geocoding results for an address
func (c *Client) GetCoordinates(ctx context.Context, address string) ([]maps.GeocodingResult, error) {
	if c.MapsClient == nil {
		return nil, fmt.Errorf("maps client not initialized")
	}

	req := &maps.GeocodingRequest{
		Address: address,
		Region:  "de",
		Bounds: &maps.LatLngBounds{
			NorthEast: maps.LatLng{Lat: munich.Lat + 0.3, Lng: munich.Lng + 0.4},
			SouthWest: maps.LatLng{Lat: munich.Lat - 0.3, Lng: munich.Lng - 0.4},
		},
	}

	results, err := c.MapsClient.Geocode(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	return results, nil
}

// Geocode resolves address to the coordinates of the best match.
// It implements mensa.Geocoder.
func (c *Client) Geocode(ctx context.Context, address string) (*mensa.Coordinates, error) {
	log.Debugf(ctx, "geocoding %q", address)

	results, err := c.GetCoordinates(ctx, address)
	if err != nil {
		return nil, errors.Mark(err, mensa.ErrTransport)
	}
	if len(results) == 0 {
		return nil, errors.Mark(errors.Newf("No location found for address '%s'", address), mensa.ErrNotFound)
	}

	loc := results[0].Geometry.Location
	log.Debugf(ctx, "geocoded %q to %s (%f, %f)", address, results[0].FormattedAddress, loc.Lat, loc.Lng)
	return &mensa.Coordinates{Latitude: loc.Lat, Longitude: loc.Lng}, nil
}
