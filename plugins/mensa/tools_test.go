package mensa

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/firebase/genkit/go/genkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/va6996/mensaman/plugins/mensa/mensatest"
	"github.com/va6996/mensaman/tools"
)

type fakeGeocoder struct {
	coords *Coordinates
	err    error
	calls  []string
}

func (g *fakeGeocoder) Geocode(_ context.Context, address string) (*Coordinates, error) {
	g.calls = append(g.calls, address)
	return g.coords, g.err
}

func TestNewClient_RegistersTools(t *testing.T) {
	srv := mensatest.NewServer()
	defer srv.Close()

	gk := genkit.Init(context.Background())
	registry := tools.NewRegistry()
	NewClient(Options{BaseURL: srv.URL}, gk, registry)

	var names []string
	for _, tool := range registry.GetTools() {
		names = append(names, tool.Definition().Name)
	}
	assert.ElementsMatch(t, []string{FacilitiesToolName, MenuToolName, WeekMenuToolName, NearbyToolName}, names)

	out, err := registry.ExecuteTool(context.Background(), FacilitiesToolName, map[string]interface{}{"filter": "arcis"})
	require.NoError(t, err)
	facilities, ok := out.(*FacilitiesOutput)
	require.True(t, ok)
	assert.Equal(t, 1, facilities.Total)

	out, err = registry.ExecuteTool(context.Background(), MenuToolName, map[string]interface{}{"apiName": "mensa-garching", "date": "2025-06-09"})
	require.NoError(t, err)
	menu, ok := out.(*MenuResult)
	require.True(t, ok)
	assert.True(t, menu.Success, menu.Error)

	_, err = registry.ExecuteTool(context.Background(), MenuToolName, map[string]interface{}{"apiName": 42})
	assert.Error(t, err)
}

func TestFacilitiesTool_Execute(t *testing.T) {
	srv := mensatest.NewServer()
	defer srv.Close()

	tool := newTestClient(t, srv).FacilitiesTool

	out, err := tool.Execute(context.Background(), &FacilitiesInput{Filter: "garching"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, "garching", out.Filter)

	text, err := PayloadText(out)
	require.NoError(t, err)
	assert.Contains(t, text, "\n  \"total\": 2,")
	assert.Contains(t, text, `"filter": "garching"`)
	assert.Contains(t, text, `"queueStatus": null`)

	out, err = tool.Execute(context.Background(), &FacilitiesInput{})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Total)

	text, err = PayloadText(out)
	require.NoError(t, err)
	assert.NotContains(t, text, `"filter"`)
	assert.NotContains(t, text, `"error"`)
}

func TestFacilitiesTool_Execute_Failure(t *testing.T) {
	srv := mensatest.NewServer()
	defer srv.Close()
	srv.FailCanteens(http.StatusInternalServerError)

	out, err := newTestClient(t, srv).FacilitiesTool.Execute(context.Background(), nil)
	require.NoError(t, err, "failures are reported in the payload")
	assert.False(t, out.Success)
	assert.Equal(t, "Failed to fetch facilities: HTTP error 500: Internal Server Error", out.Error)
	assert.Equal(t, KindTransport, out.ErrorKind)
	assert.NotNil(t, out.Facilities)
}

func TestMenuTool_Execute(t *testing.T) {
	srv := mensatest.NewServer()
	defer srv.Close()

	tool := newTestClient(t, srv).MenuTool

	result, err := tool.Execute(context.Background(), &MenuInput{APIName: "mensa-garching", Date: "2025-06-09"})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "Mensa Garching", result.Data.FacilityName)
	assert.Equal(t, "Boltzmannstraße 19, Garching", result.Data.Location)
	assert.Len(t, result.Data.Menu, 2)

	text, err := PayloadText(result)
	require.NoError(t, err)
	assert.Contains(t, text, `"success": true`)
	assert.Contains(t, text, `"facilityName": "Mensa Garching"`)
}

func TestMenuTool_Execute_DefaultsToToday(t *testing.T) {
	srv := mensatest.NewServer()
	defer srv.Close()

	result, err := newTestClient(t, srv).MenuTool.Execute(context.Background(), &MenuInput{APIName: "mensa-garching"})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "2025-06-11", result.Data.Date)
}

func TestMenuTool_Execute_UnknownFacility(t *testing.T) {
	srv := mensatest.NewServer()
	defer srv.Close()

	tool := newTestClient(t, srv).MenuTool

	for _, apiName := range []string{"mensa-nowhere", "MENSA-GARCHING"} {
		result, err := tool.Execute(context.Background(), &MenuInput{APIName: apiName, Date: "2025-06-09"})
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, KindNotFound, result.ErrorKind)
		assert.Equal(t, "Facility with API name '"+apiName+"' not found. Use get_mensa_facilities to see available facilities.", result.Error)
	}
	assert.Equal(t, 0, srv.Hits("mensa-garching/2025/24.json"), "unknown facilities never reach the menu endpoint")

	result, err := tool.Execute(context.Background(), &MenuInput{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, KindValidation, result.ErrorKind)
}

func TestMenuTool_Execute_FacilitiesUnavailable(t *testing.T) {
	srv := mensatest.NewServer()
	defer srv.Close()
	srv.FailCanteens(http.StatusBadGateway)

	result, err := newTestClient(t, srv).MenuTool.Execute(context.Background(), &MenuInput{APIName: "mensa-garching", Date: "2025-06-09"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, KindTransport, result.ErrorKind)
	assert.Equal(t, "Failed to fetch facilities: HTTP error 502: Bad Gateway", result.Error)
}

func TestMenuTool_Execute_InvalidDate(t *testing.T) {
	srv := mensatest.NewServer()
	defer srv.Close()

	result, err := newTestClient(t, srv).MenuTool.Execute(context.Background(), &MenuInput{APIName: "mensa-garching", Date: "09.06.2025"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, KindValidation, result.ErrorKind)

	text, err := PayloadText(result)
	require.NoError(t, err)
	assert.Contains(t, text, `"success": false`)
	assert.Contains(t, text, `"errorKind": "validation"`)
	assert.NotContains(t, text, `"data"`)
}

func TestWeekMenuTool_Execute(t *testing.T) {
	srv := mensatest.NewServer()
	defer srv.Close()

	result, err := newTestClient(t, srv).WeekMenuTool.Execute(context.Background(), &WeekMenuInput{APIName: "mensa-garching"})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "Mensa Garching", result.Data.FacilityName)
	for _, day := range result.Data.Days {
		assert.Equal(t, "Mensa Garching", day.FacilityName)
	}
}

func TestNearbyTool_Execute(t *testing.T) {
	srv := mensatest.NewServer()
	defer srv.Close()

	lat, lng := 48.137154, 11.576124
	out, err := newTestClient(t, srv).NearbyTool.Execute(context.Background(), &NearbyInput{Latitude: &lat, Longitude: &lng, Limit: 1})
	require.NoError(t, err)
	require.True(t, out.Success, out.Error)
	assert.Equal(t, 1, out.Total)
	assert.Equal(t, "mensa-arcisstr", out.Facilities[0].APIName)
	assert.Equal(t, &Coordinates{Latitude: lat, Longitude: lng}, out.Origin)
}

func TestNearbyTool_Execute_Address(t *testing.T) {
	srv := mensatest.NewServer()
	defer srv.Close()

	geocoder := &fakeGeocoder{coords: &Coordinates{Latitude: 48.2650, Longitude: 11.6710}}
	client := newTestClient(t, srv, func(o *Options) { o.Geocoder = geocoder })

	out, err := client.NearbyTool.Execute(context.Background(), &NearbyInput{Address: "Garching Forschungszentrum"})
	require.NoError(t, err)
	require.True(t, out.Success, out.Error)
	assert.Equal(t, []string{"Garching Forschungszentrum"}, geocoder.calls)
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, "mensa-garching", out.Facilities[0].APIName)
	assert.Equal(t, "Garching Forschungszentrum", out.Address)

	geocoder.err = validationErrorf("No results for address 'nowhere'")
	out, err = client.NearbyTool.Execute(context.Background(), &NearbyInput{Address: "nowhere"})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, KindValidation, out.ErrorKind)

	geocoder.err = errors.New("quota exceeded")
	out, err = client.NearbyTool.Execute(context.Background(), &NearbyInput{Address: "Garching"})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, KindUnknown, out.ErrorKind)
}

func TestNearbyTool_Execute_Validation(t *testing.T) {
	srv := mensatest.NewServer()
	defer srv.Close()

	tool := newTestClient(t, srv).NearbyTool

	out, err := tool.Execute(context.Background(), &NearbyInput{Address: "Garching"})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, KindValidation, out.ErrorKind)

	lat := 48.1
	out, err = tool.Execute(context.Background(), &NearbyInput{Latitude: &lat})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, KindValidation, out.ErrorKind)
	assert.Equal(t, 0, srv.CanteenHits())
}
