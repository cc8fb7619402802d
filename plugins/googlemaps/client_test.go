package googlemaps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/va6996/mensaman/plugins/mensa"
)

const marienplatzResponse = `{
  "results": [
    {
      "formatted_address": "Marienplatz, 80331 München, Germany",
      "geometry": {"location": {"lat": 48.137154, "lng": 11.576124}}
    }
  ],
  "status": "OK"
}`

func newGeocodeServer(t *testing.T, status int, body string) (*httptest.Server, *[]string) {
	t.Helper()
	var addresses []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/maps/api/geocode/json" {
			http.NotFound(w, r)
			return
		}
		addresses = append(addresses, r.URL.Query().Get("address"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &addresses
}

func TestClient_Geocode(t *testing.T) {
	srv, addresses := newGeocodeServer(t, http.StatusOK, marienplatzResponse)

	client, err := NewClient("test-key", srv.URL)
	require.NoError(t, err)

	coords, err := client.Geocode(context.Background(), "Marienplatz")
	require.NoError(t, err)
	assert.InDelta(t, 48.137154, coords.Latitude, 1e-9)
	assert.InDelta(t, 11.576124, coords.Longitude, 1e-9)
	assert.Equal(t, []string{"Marienplatz"}, *addresses)
}

func TestClient_Geocode_NoResults(t *testing.T) {
	srv, _ := newGeocodeServer(t, http.StatusOK, `{"results": [], "status": "ZERO_RESULTS"}`)

	client, err := NewClient("test-key", srv.URL)
	require.NoError(t, err)

	_, err = client.Geocode(context.Background(), "Atlantis")
	require.Error(t, err)
	assert.True(t, errors.Is(err, mensa.ErrNotFound))
	assert.Equal(t, mensa.KindNotFound, mensa.KindOf(err))
	assert.Contains(t, err.Error(), "Atlantis")
}

func TestClient_Geocode_Denied(t *testing.T) {
	srv, _ := newGeocodeServer(t, http.StatusOK, `{"results": [], "status": "REQUEST_DENIED", "error_message": "The provided API key is invalid."}`)

	client, err := NewClient("bad-key", srv.URL)
	require.NoError(t, err)

	_, err = client.Geocode(context.Background(), "Marienplatz")
	require.Error(t, err)
	assert.Equal(t, mensa.KindTransport, mensa.KindOf(err))
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient("", "")
	assert.Error(t, err)
}

func TestClient_GetCoordinates_NotInitialized(t *testing.T) {
	client := &Client{}
	_, err := client.GetCoordinates(context.Background(), "Marienplatz")
	assert.Error(t, err)
}
