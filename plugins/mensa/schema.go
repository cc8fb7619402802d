package mensa

import (
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// Wire formats of the eat-api. They are decoded strictly typed and validated before
// being mapped to the tool payloads.

type canteenLocation struct {
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"omitempty,longitude"`
}

type canteenRecord struct {
	EnumName    string               `json:"enum_name"`
	Name        string               `json:"name" validate:"required"`
	Location    *canteenLocation     `json:"location" validate:"required"`
	CanteenID   string               `json:"canteen_id" validate:"required"`
	QueueStatus *string              `json:"queue_status"`
	OpenHours   map[string]OpenHours `json:"open_hours"`
}

type priceRecord struct {
	BasePrice    float64 `json:"base_price"`
	PricePerUnit float64 `json:"price_per_unit"`
	Unit         string  `json:"unit"`
}

type pricesRecord struct {
	Students *priceRecord `json:"students"`
	Staff    *priceRecord `json:"staff"`
	Guests   *priceRecord `json:"guests"`
}

type dishRecord struct {
	Name     string        `json:"name"`
	DishType string        `json:"dish_type"`
	Labels   []string      `json:"labels"`
	Prices   *pricesRecord `json:"prices"`
}

type dayRecord struct {
	Date   string       `json:"date" validate:"required,datetime=2006-01-02"`
	Dishes []dishRecord `json:"dishes"`
}

type weekRecord struct {
	Number int         `json:"number"`
	Year   int         `json:"year"`
	Days   []dayRecord `json:"days" validate:"required,dive"`
}

var (
	validate       = validator.New()
	errNullPayload = errors.New("payload is null")
)

// decodeCanteens decodes and validates the canteen enumeration.
func decodeCanteens(r io.Reader) ([]canteenRecord, error) {
	var records []canteenRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, parseError(err, "failed to decode facilities")
	}
	if records == nil {
		return nil, parseError(errNullPayload, "failed to decode facilities")
	}
	for i := range records {
		if err := validate.Struct(&records[i]); err != nil {
			return nil, parseError(err, "invalid facilities payload")
		}
	}
	return records, nil
}

// decodeWeek decodes and validates a weekly menu document.
func decodeWeek(r io.Reader) (*weekRecord, error) {
	var week weekRecord
	if err := json.NewDecoder(r).Decode(&week); err != nil {
		return nil, parseError(err, "failed to decode menu")
	}
	if err := validate.Struct(&week); err != nil {
		return nil, parseError(err, "invalid menu payload")
	}
	return &week, nil
}
