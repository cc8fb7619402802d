package mensa

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/va6996/mensaman/log"
	toolspkg "github.com/va6996/mensaman/tools"
)

const (
	FacilitiesToolName = "get_mensa_facilities"
	MenuToolName       = "get_mensa_menu"
	WeekMenuToolName   = "get_mensa_week_menu"
	NearbyToolName     = "get_nearby_mensa_facilities"

	defaultNearbyLimit = 5
)

// Geocoder resolves a free-form address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*Coordinates, error)
}

// --- Facilities Tool ---

type FacilitiesInput struct {
	Filter string `json:"filter,omitempty" jsonschema:"Optional text to filter facilities by name or location" description:"Optional text matched case-insensitively against facility name or address (e.g. 'garching')"`
}

type FacilitiesOutput struct {
	Success    bool       `json:"success"`
	Total      int        `json:"total"`
	Facilities []Facility `json:"facilities"`
	Filter     string     `json:"filter,omitempty"`
	Error      string     `json:"error,omitempty"`
	ErrorKind  ErrorKind  `json:"errorKind,omitempty"`
}

type FacilitiesTool struct {
	directory *Directory
}

func NewFacilitiesTool(directory *Directory, gk *genkit.Genkit, registry *toolspkg.Registry) *FacilitiesTool {
	t := &FacilitiesTool{directory: directory}
	if gk == nil || registry == nil {
		return t
	}

	registry.Register(genkit.DefineTool[*FacilitiesInput, *FacilitiesOutput](
		gk,
		FacilitiesToolName,
		"Lists the Munich student canteens, cafeterias and bistros with their API name, address, coordinates and opening hours. Use the apiName with get_mensa_menu.",
		func(ctx *ai.ToolContext, input *FacilitiesInput) (*FacilitiesOutput, error) {
			return t.Execute(ctx, input)
		},
	), func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		var input FacilitiesInput
		if err := toolspkg.DecodeArgs(args, &input); err != nil {
			return nil, err
		}
		return t.Execute(ctx, &input)
	})
	return t
}

func (t *FacilitiesTool) Execute(ctx context.Context, input *FacilitiesInput) (*FacilitiesOutput, error) {
	if input == nil {
		input = &FacilitiesInput{}
	}
	log.Debugf(ctx, "FacilitiesTool executing with filter %q", input.Filter)

	if t.directory == nil {
		return nil, fmt.Errorf("mensa directory not initialized")
	}

	facilities, err := t.directory.GetFacilities(ctx)
	if err != nil {
		log.Errorf(ctx, "FacilitiesTool failed: %v", err)
		return &FacilitiesOutput{
			Success:    false,
			Facilities: []Facility{},
			Error:      fmt.Sprintf("Failed to fetch facilities: %s", err.Error()),
			ErrorKind:  KindOf(err),
		}, nil
	}

	filtered := FilterFacilities(facilities, input.Filter)
	log.Debugf(ctx, "FacilitiesTool completed successfully. Found %d facilities.", len(filtered))
	return &FacilitiesOutput{
		Success:    true,
		Total:      len(filtered),
		Facilities: filtered,
		Filter:     input.Filter,
	}, nil
}

// --- Menu Tool ---

type MenuInput struct {
	APIName string `json:"apiName" jsonschema:"The API name of the facility (e.g. mensa-garching)" description:"API name of the facility, e.g. 'mensa-garching'. See get_mensa_facilities."`
	Date    string `json:"date,omitempty" jsonschema:"Date in YYYY-MM-DD format (defaults to today)" description:"Date in YYYY-MM-DD format. Defaults to today."`
}

type MenuTool struct {
	directory *Directory
	fetcher   *MenuFetcher
}

func NewMenuTool(directory *Directory, fetcher *MenuFetcher, gk *genkit.Genkit, registry *toolspkg.Registry) *MenuTool {
	t := &MenuTool{directory: directory, fetcher: fetcher}
	if gk == nil || registry == nil {
		return t
	}

	registry.Register(genkit.DefineTool[*MenuInput, *MenuResult](
		gk,
		MenuToolName,
		"Returns the dishes, labels and prices served by a facility on a given day.",
		func(ctx *ai.ToolContext, input *MenuInput) (*MenuResult, error) {
			return t.Execute(ctx, input)
		},
	), func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		var input MenuInput
		if err := toolspkg.DecodeArgs(args, &input); err != nil {
			return nil, err
		}
		return t.Execute(ctx, &input)
	})
	return t
}

func (t *MenuTool) Execute(ctx context.Context, input *MenuInput) (*MenuResult, error) {
	if input == nil {
		input = &MenuInput{}
	}
	inputJSON, _ := json.Marshal(input)
	log.Debugf(ctx, "MenuTool executing with input: %s", string(inputJSON))

	if t.directory == nil || t.fetcher == nil {
		return nil, fmt.Errorf("mensa client not initialized")
	}

	facility, failure := lookupFacility(ctx, t.directory, input.APIName)
	if failure != nil {
		return &MenuResult{Success: false, Error: failure.message, ErrorKind: failure.kind}, nil
	}

	date := input.Date
	if date == "" {
		date = t.fetcher.GetCurrentDate()
	}

	result := t.fetcher.GetMensaMenu(ctx, input.APIName, date)
	if result.Success {
		result.Data.Enrich(facility)
		log.Debugf(ctx, "MenuTool completed successfully. Found %d dishes.", len(result.Data.Menu))
	}
	return result, nil
}

// --- Week Menu Tool ---

type WeekMenuInput struct {
	APIName string `json:"apiName" jsonschema:"The API name of the facility (e.g. mensa-garching)" description:"API name of the facility, e.g. 'mensa-garching'"`
	Date    string `json:"date,omitempty" jsonschema:"Any date in YYYY-MM-DD format inside the wanted week (defaults to today)" description:"Any date (YYYY-MM-DD) inside the wanted week. Defaults to today."`
}

type WeekMenuTool struct {
	directory *Directory
	fetcher   *MenuFetcher
}

func NewWeekMenuTool(directory *Directory, fetcher *MenuFetcher, gk *genkit.Genkit, registry *toolspkg.Registry) *WeekMenuTool {
	t := &WeekMenuTool{directory: directory, fetcher: fetcher}
	if gk == nil || registry == nil {
		return t
	}

	registry.Register(genkit.DefineTool[*WeekMenuInput, *WeekMenuResult](
		gk,
		WeekMenuToolName,
		"Returns the menus of every day published for the ISO week containing the given date.",
		func(ctx *ai.ToolContext, input *WeekMenuInput) (*WeekMenuResult, error) {
			return t.Execute(ctx, input)
		},
	), func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		var input WeekMenuInput
		if err := toolspkg.DecodeArgs(args, &input); err != nil {
			return nil, err
		}
		return t.Execute(ctx, &input)
	})
	return t
}

func (t *WeekMenuTool) Execute(ctx context.Context, input *WeekMenuInput) (*WeekMenuResult, error) {
	if input == nil {
		input = &WeekMenuInput{}
	}
	log.Debugf(ctx, "WeekMenuTool executing for %s on %s", input.APIName, input.Date)

	if t.directory == nil || t.fetcher == nil {
		return nil, fmt.Errorf("mensa client not initialized")
	}

	facility, failure := lookupFacility(ctx, t.directory, input.APIName)
	if failure != nil {
		return &WeekMenuResult{Success: false, Error: failure.message, ErrorKind: failure.kind}, nil
	}

	date := input.Date
	if date == "" {
		date = t.fetcher.GetCurrentDate()
	}

	result := t.fetcher.GetWeekMenu(ctx, input.APIName, date)
	if result.Success {
		result.Data.Enrich(facility)
	}
	return result, nil
}

// --- Nearby Facilities Tool ---

type NearbyInput struct {
	Address   string   `json:"address,omitempty" jsonschema:"Street address or place name to search around" description:"Street address or place name to search around"`
	Latitude  *float64 `json:"latitude,omitempty" jsonschema:"Latitude of the reference point" description:"Latitude of the reference point, used with longitude instead of address"`
	Longitude *float64 `json:"longitude,omitempty" jsonschema:"Longitude of the reference point" description:"Longitude of the reference point"`
	Limit     int      `json:"limit,omitempty" jsonschema:"Maximum number of facilities to return (default 5)" description:"Maximum number of facilities to return (default 5)"`
}

type NearbyOutput struct {
	Success    bool             `json:"success"`
	Origin     *Coordinates     `json:"origin,omitempty"`
	Address    string           `json:"address,omitempty"`
	Total      int              `json:"total"`
	Facilities []NearbyFacility `json:"facilities"`
	Error      string           `json:"error,omitempty"`
	ErrorKind  ErrorKind        `json:"errorKind,omitempty"`
}

type NearbyTool struct {
	directory *Directory
	geocoder  Geocoder
}

func NewNearbyTool(directory *Directory, geocoder Geocoder, gk *genkit.Genkit, registry *toolspkg.Registry) *NearbyTool {
	t := &NearbyTool{directory: directory, geocoder: geocoder}
	if gk == nil || registry == nil {
		return t
	}

	registry.Register(genkit.DefineTool[*NearbyInput, *NearbyOutput](
		gk,
		NearbyToolName,
		"Finds the facilities closest to an address or to a latitude/longitude pair, ordered by distance in kilometers.",
		func(ctx *ai.ToolContext, input *NearbyInput) (*NearbyOutput, error) {
			return t.Execute(ctx, input)
		},
	), func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		var input NearbyInput
		if err := toolspkg.DecodeArgs(args, &input); err != nil {
			return nil, err
		}
		return t.Execute(ctx, &input)
	})
	return t
}

func (t *NearbyTool) Execute(ctx context.Context, input *NearbyInput) (*NearbyOutput, error) {
	if input == nil {
		input = &NearbyInput{}
	}
	log.Debugf(ctx, "NearbyTool executing for address %q", input.Address)

	if t.directory == nil {
		return nil, fmt.Errorf("mensa directory not initialized")
	}

	fail := func(err error) (*NearbyOutput, error) {
		log.Errorf(ctx, "NearbyTool failed: %v", err)
		return &NearbyOutput{
			Success:    false,
			Facilities: []NearbyFacility{},
			Error:      err.Error(),
			ErrorKind:  KindOf(err),
		}, nil
	}

	var origin *Coordinates
	switch {
	case input.Latitude != nil && input.Longitude != nil:
		origin = &Coordinates{Latitude: *input.Latitude, Longitude: *input.Longitude}
	case input.Address != "":
		if t.geocoder == nil {
			return fail(validationErrorf("Address lookup is not configured. Pass latitude and longitude instead."))
		}
		coords, err := t.geocoder.Geocode(ctx, input.Address)
		if err != nil {
			return fail(err)
		}
		origin = coords
	default:
		return fail(validationErrorf("Either address or latitude and longitude are required."))
	}

	facilities, err := t.directory.GetFacilities(ctx)
	if err != nil {
		return fail(errors.Wrap(err, "Failed to fetch facilities"))
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultNearbyLimit
	}
	nearby := NearestFacilities(facilities, origin.Latitude, origin.Longitude, limit)

	return &NearbyOutput{
		Success:    true,
		Origin:     origin,
		Address:    input.Address,
		Total:      len(nearby),
		Facilities: nearby,
	}, nil
}

type lookupFailure struct {
	kind    ErrorKind
	message string
}

// lookupFacility resolves apiName through the directory and describes why it could not.
func lookupFacility(ctx context.Context, directory *Directory, apiName string) (*Facility, *lookupFailure) {
	if apiName == "" {
		return nil, &lookupFailure{kind: KindValidation, message: "apiName is required. Use get_mensa_facilities to see available facilities."}
	}

	facility, err := directory.FindFacility(ctx, apiName)
	if err == nil {
		return facility, nil
	}

	log.Errorf(ctx, "facility lookup for %q failed: %v", apiName, err)
	kind := KindOf(err)
	if kind == KindNotFound {
		return nil, &lookupFailure{kind: kind, message: err.Error()}
	}
	return nil, &lookupFailure{kind: kind, message: fmt.Sprintf("Failed to fetch facilities: %s", err.Error())}
}
