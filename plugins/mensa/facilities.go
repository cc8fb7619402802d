package mensa

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/va6996/mensaman/log"
)

// OpenHours is the opening interval of a single weekday, e.g. {"start": "11:00", "end": "14:00"}.
type OpenHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Coordinates is a WGS84 position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Facility is a canteen, cafeteria or bistro served by the eat-api.
type Facility struct {
	Name        string               `json:"name"`
	Location    string               `json:"location"`
	APIName     string               `json:"apiName"`
	Coordinates *Coordinates         `json:"coordinates,omitempty"`
	OpenHours   map[string]OpenHours `json:"openHours,omitempty"`
	QueueStatus *string              `json:"queueStatus"`
}

// FacilityCache holds the first successfully fetched facility list for the lifetime of
// the process. It is never refreshed on its own; Reset empties it.
type FacilityCache struct {
	mu         sync.RWMutex
	facilities []Facility
	loaded     bool
}

func NewFacilityCache() *FacilityCache {
	return &FacilityCache{}
}

// Get returns the cached list and whether one is present.
func (c *FacilityCache) Get() ([]Facility, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.facilities, c.loaded
}

func (c *FacilityCache) Set(facilities []Facility) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.facilities = facilities
	c.loaded = true
}

func (c *FacilityCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.facilities = nil
	c.loaded = false
}

// Directory lists facilities through a FacilityCache.
type Directory struct {
	client *Client
	cache  *FacilityCache
}

func NewDirectory(client *Client, cache *FacilityCache) *Directory {
	if cache == nil {
		cache = NewFacilityCache()
	}
	return &Directory{client: client, cache: cache}
}

// Cache exposes the facility cache, mainly so callers can Reset it.
func (d *Directory) Cache() *FacilityCache {
	return d.cache
}

// FetchFacilities always queries the upstream enumeration.
func (d *Directory) FetchFacilities(ctx context.Context) ([]Facility, error) {
	records, err := d.client.getCanteens(ctx)
	if err != nil {
		return nil, err
	}

	facilities := make([]Facility, 0, len(records))
	for _, r := range records {
		facilities = append(facilities, toFacility(r))
	}
	log.Debugf(ctx, "fetched %d facilities", len(facilities))
	return facilities, nil
}

// GetFacilities returns the cached list, fetching and storing it on first use.
// Concurrent first calls may each fetch; the last successful one wins. Errors are not cached.
func (d *Directory) GetFacilities(ctx context.Context) ([]Facility, error) {
	if facilities, ok := d.cache.Get(); ok {
		return facilities, nil
	}

	facilities, err := d.FetchFacilities(ctx)
	if err != nil {
		return nil, err
	}
	d.cache.Set(facilities)
	return facilities, nil
}

// FindFacility looks a facility up by its exact, case-sensitive API name.
func (d *Directory) FindFacility(ctx context.Context, apiName string) (*Facility, error) {
	facilities, err := d.GetFacilities(ctx)
	if err != nil {
		return nil, err
	}
	for i := range facilities {
		if facilities[i].APIName == apiName {
			f := facilities[i]
			return &f, nil
		}
	}
	return nil, notFoundErrorf("Facility with API name '%s' not found. Use get_mensa_facilities to see available facilities.", apiName)
}

func toFacility(r canteenRecord) Facility {
	f := Facility{
		Name:        r.Name,
		APIName:     r.CanteenID,
		OpenHours:   r.OpenHours,
		QueueStatus: r.QueueStatus,
	}
	if r.Location != nil {
		f.Location = r.Location.Address
		if r.Location.Latitude != nil && r.Location.Longitude != nil {
			f.Coordinates = &Coordinates{
				Latitude:  *r.Location.Latitude,
				Longitude: *r.Location.Longitude,
			}
		}
	}
	return f
}

// FilterFacilities keeps the facilities whose name or location contains filter, ignoring case.
// An empty filter returns the list unchanged.
func FilterFacilities(facilities []Facility, filter string) []Facility {
	if filter == "" {
		return facilities
	}
	needle := strings.ToLower(filter)

	filtered := make([]Facility, 0)
	for _, f := range facilities {
		if strings.Contains(strings.ToLower(f.Name), needle) || strings.Contains(strings.ToLower(f.Location), needle) {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// NearbyFacility is a facility together with its distance to a reference point.
type NearbyFacility struct {
	Facility
	DistanceKm float64 `json:"distanceKm"`
}

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance between two points in kilometers.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// NearestFacilities orders facilities with coordinates by distance to (lat, lng).
// A limit <= 0 returns all of them.
func NearestFacilities(facilities []Facility, lat, lng float64, limit int) []NearbyFacility {
	nearby := make([]NearbyFacility, 0, len(facilities))
	for _, f := range facilities {
		if f.Coordinates == nil {
			continue
		}
		nearby = append(nearby, NearbyFacility{
			Facility:   f,
			DistanceKm: Haversine(lat, lng, f.Coordinates.Latitude, f.Coordinates.Longitude),
		})
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		return nearby[i].DistanceKm < nearby[j].DistanceKm
	})

	if limit > 0 && len(nearby) > limit {
		nearby = nearby[:limit]
	}
	return nearby
}
