// Package mensatest provides an in-process fake of the eat-api for tests.
package mensatest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/brianvoe/gofakeit/v7"
)

// CanteensJSON is a trimmed copy of enums/canteens.json.
const CanteensJSON = `[
  {
    "enum_name": "MENSA_GARCHING",
    "name": "Mensa Garching",
    "location": {"address": "Boltzmannstraße 19, Garching", "latitude": 48.268132, "longitude": 11.672263},
    "canteen_id": "mensa-garching",
    "queue_status": "https://mensa.liste.party/api/",
    "open_hours": {
      "mon": {"start": "11:00", "end": "14:00"},
      "fri": {"start": "11:00", "end": "14:00"}
    }
  },
  {
    "enum_name": "MENSA_ARCISSTR",
    "name": "Mensa Arcisstraße",
    "location": {"address": "Arcisstraße 17, München", "latitude": 48.147420, "longitude": 11.567220},
    "canteen_id": "mensa-arcisstr",
    "queue_status": null,
    "open_hours": {
      "mon": {"start": "11:00", "end": "14:00"}
    }
  },
  {
    "enum_name": "STUCAFE_BOLTZMANNSTR",
    "name": "StuCafé Boltzmannstraße",
    "location": {"address": "Boltzmannstraße 15, Garching"},
    "canteen_id": "stucafe-boltzmannstr",
    "queue_status": null
  }
]`

// GarchingWeek24JSON is the menu of mensa-garching for 2025 week 24 (Monday 2025-06-09 to Friday 2025-06-13).
const GarchingWeek24JSON = `{
  "number": 24,
  "year": 2025,
  "days": [
    {
      "date": "2025-06-09",
      "dishes": [
        {
          "name": "Pasta mit Tomatensauce",
          "dish_type": "Pasta",
          "labels": ["VEGAN", "GLUTEN"],
          "prices": {
            "students": {"base_price": 0, "price_per_unit": 0.9, "unit": "100g"},
            "staff": {"base_price": 0, "price_per_unit": 1.15, "unit": "100g"},
            "guests": {"base_price": 0, "price_per_unit": 1.5, "unit": "100g"}
          }
        },
        {
          "name": "Schweinebraten",
          "dish_type": "Fleisch",
          "labels": ["PORK"],
          "prices": {
            "students": {"base_price": 3.5}
          }
        }
      ]
    },
    {
      "date": "2025-06-10",
      "dishes": [
        {"dish_type": "", "prices": {}},
        {"name": "Tagessuppe", "dish_type": "Suppe", "labels": []}
      ]
    },
    {"date": "2025-06-11", "dishes": []},
    {"date": "2025-06-12", "dishes": [{"name": "Linsencurry", "dish_type": "Curry", "labels": ["VEGAN"]}]},
    {"date": "2025-06-13", "dishes": [{"name": "Fischstäbchen", "dish_type": "Fisch", "labels": ["FISH"]}]}
  ]
}`

// Server is a fake eat-api. Weekly menus answer 404 unless registered.
type Server struct {
	*httptest.Server

	mu             sync.Mutex
	canteens       string
	canteensStatus int
	weeks          map[string]string
	statuses       map[string]int
	hits           map[string]int
}

// NewServer starts a fake serving CanteensJSON and GarchingWeek24JSON.
func NewServer() *Server {
	s := &Server{
		canteens:       CanteensJSON,
		canteensStatus: http.StatusOK,
		weeks:          make(map[string]string),
		statuses:       make(map[string]int),
		hits:           make(map[string]int),
	}
	s.SetWeek("mensa-garching", 2025, 24, GarchingWeek24JSON)
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")

	s.mu.Lock()
	s.hits[path]++
	canteens, canteensStatus := s.canteens, s.canteensStatus
	week, hasWeek := s.weeks[path]
	status, hasStatus := s.statuses[path]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch {
	case path == "enums/canteens.json":
		if canteensStatus != http.StatusOK {
			http.Error(w, http.StatusText(canteensStatus), canteensStatus)
			return
		}
		_, _ = w.Write([]byte(canteens))
	case hasStatus:
		http.Error(w, http.StatusText(status), status)
	case hasWeek:
		_, _ = w.Write([]byte(week))
	default:
		http.NotFound(w, r)
	}
}

// SetCanteens replaces the canteen enumeration body.
func (s *Server) SetCanteens(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canteens = body
	s.canteensStatus = http.StatusOK
}

// FailCanteens makes the enumeration answer with status until SetCanteens is called.
func (s *Server) FailCanteens(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canteensStatus = status
}

// SetWeek registers the body served for apiName/year/week.json.
func (s *Server) SetWeek(apiName string, year, week int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weeks[WeekPath(apiName, year, week)] = body
}

// FailWeek makes apiName/year/week.json answer with status.
func (s *Server) FailWeek(apiName string, year, week, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[WeekPath(apiName, year, week)] = status
}

// Hits returns how many requests reached path (without leading slash).
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// CanteenHits returns how many times the enumeration was requested.
func (s *Server) CanteenHits() int {
	return s.Hits("enums/canteens.json")
}

func WeekPath(apiName string, year, week int) string {
	return fmt.Sprintf("%s/%d/%d.json", apiName, year, week)
}

// RandomCanteensJSON generates n canteens around Munich with fake names and addresses.
// The canteen ids are canteen-0 ... canteen-(n-1).
func RandomCanteensJSON(n int) string {
	type location struct {
		Address   string  `json:"address"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	type canteen struct {
		EnumName  string   `json:"enum_name"`
		Name      string   `json:"name"`
		Location  location `json:"location"`
		CanteenID string   `json:"canteen_id"`
	}

	canteens := make([]canteen, 0, n)
	for i := 0; i < n; i++ {
		canteens = append(canteens, canteen{
			EnumName: fmt.Sprintf("CANTEEN_%d", i),
			Name:     "Mensa " + gofakeit.Company(),
			Location: location{
				Address:   fmt.Sprintf("%s, %s", gofakeit.Street(), gofakeit.City()),
				Latitude:  gofakeit.Float64Range(48.0, 48.3),
				Longitude: gofakeit.Float64Range(11.4, 11.8),
			},
			CanteenID: fmt.Sprintf("canteen-%d", i),
		})
	}

	b, err := json.Marshal(canteens)
	if err != nil {
		panic(err)
	}
	return string(b)
}
