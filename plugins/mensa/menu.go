package mensa

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/va6996/mensaman/core"
	"github.com/va6996/mensaman/log"
)

const unknownDishName = "Unknown dish"

// Clock supplies "now" and the time zone in which the current calendar date is read.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

// Today returns now in the clock's location. Zero values mean time.Now and time.Local.
func (c Clock) Today() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc)
}

// PriceInfo is the price of a dish for one audience.
type PriceInfo struct {
	BasePrice    float64 `json:"basePrice"`
	PricePerUnit float64 `json:"pricePerUnit"`
	Unit         string  `json:"unit"`
}

// Prices holds the audience prices the upstream provided.
type Prices struct {
	Students *PriceInfo `json:"students,omitempty"`
	Staff    *PriceInfo `json:"staff,omitempty"`
	Guests   *PriceInfo `json:"guests,omitempty"`
}

type MenuItem struct {
	Name     string   `json:"name"`
	Price    *Prices  `json:"price,omitempty"`
	Category string   `json:"category,omitempty"`
	Labels   []string `json:"labels"`
}

// DayMenu is the menu of one facility on one day.
type DayMenu struct {
	Date         string     `json:"date"`
	Facility     string     `json:"facility"`
	FacilityName string     `json:"facilityName,omitempty"`
	Location     string     `json:"location,omitempty"`
	Menu         []MenuItem `json:"menu"`
}

// WeekMenu is every published day of one ISO week.
type WeekMenu struct {
	Year         int       `json:"year"`
	Week         int       `json:"week"`
	WeekString   string    `json:"weekString"`
	Facility     string    `json:"facility"`
	FacilityName string    `json:"facilityName,omitempty"`
	Location     string    `json:"location,omitempty"`
	Days         []DayMenu `json:"days"`
}

// MenuResult is either a DayMenu or a failure description.
type MenuResult struct {
	Success   bool      `json:"success"`
	Data      *DayMenu  `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
}

type WeekMenuResult struct {
	Success   bool      `json:"success"`
	Data      *WeekMenu `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
}

// Enrich copies the display fields of f into the menu.
func (m *DayMenu) Enrich(f *Facility) {
	if m == nil || f == nil {
		return
	}
	m.FacilityName = f.Name
	m.Location = f.Location
}

func (w *WeekMenu) Enrich(f *Facility) {
	if w == nil || f == nil {
		return
	}
	w.FacilityName = f.Name
	w.Location = f.Location
	for i := range w.Days {
		w.Days[i].Enrich(f)
	}
}

// MenuFetcher resolves daily and weekly menus through the eat-api week documents.
type MenuFetcher struct {
	client *Client
	clock  Clock
}

func NewMenuFetcher(client *Client, clock Clock) *MenuFetcher {
	return &MenuFetcher{client: client, clock: clock}
}

// GetCurrentDate returns today's date as YYYY-MM-DD in the fetcher's time zone.
func (f *MenuFetcher) GetCurrentDate() string {
	return core.CurrentDate(f.clock.Today())
}

// GetCurrentWeek returns the current week as YYYY-WW in the fetcher's time zone.
func (f *MenuFetcher) GetCurrentWeek() string {
	return core.CurrentWeek(f.clock.Today())
}

func (f *MenuFetcher) IsValidDate(date string) bool {
	return core.IsValidDate(date)
}

// GetMensaMenu returns the menu of apiName on date. It never returns an error;
// failures are described by the result.
func (f *MenuFetcher) GetMensaMenu(ctx context.Context, apiName, date string) *MenuResult {
	week, wd, err := f.fetchWeek(ctx, apiName, date)
	if err != nil {
		return menuFailure(ctx, err)
	}

	for _, day := range week.Days {
		if day.Date != date {
			continue
		}
		menu := toDayMenu(apiName, day)
		log.Debugf(ctx, "found %d dishes for %s on %s", len(menu.Menu), apiName, date)
		return &MenuResult{Success: true, Data: &menu}
	}

	return menuFailure(ctx, notFoundErrorf("No menu data found for date %s in year %d, week %d", date, wd.Year, wd.Week))
}

// GetWeekMenu returns every day of the ISO week containing date.
func (f *MenuFetcher) GetWeekMenu(ctx context.Context, apiName, date string) *WeekMenuResult {
	week, wd, err := f.fetchWeek(ctx, apiName, date)
	if err != nil {
		kind, msg := describe(err)
		log.Errorf(ctx, "week menu fetch failed (%s): %s", kind, msg)
		return &WeekMenuResult{Success: false, Error: msg, ErrorKind: kind}
	}

	if len(week.Days) == 0 {
		err := notFoundErrorf("No menu data found for %s in year %d, week %d", apiName, wd.Year, wd.Week)
		return &WeekMenuResult{Success: false, Error: err.Error(), ErrorKind: KindNotFound}
	}

	days := make([]DayMenu, 0, len(week.Days))
	for _, day := range week.Days {
		days = append(days, toDayMenu(apiName, day))
	}
	return &WeekMenuResult{
		Success: true,
		Data: &WeekMenu{
			Year:       wd.Year,
			Week:       wd.Week,
			WeekString: wd.String(),
			Facility:   apiName,
			Days:       days,
		},
	}
}

// fetchWeek validates date and loads the week document that contains it.
func (f *MenuFetcher) fetchWeek(ctx context.Context, apiName, date string) (*weekRecord, core.WeekDate, error) {
	if !core.HasDateShape(date) {
		return nil, core.WeekDate{}, validationErrorf("Invalid date format. Expected YYYY-MM-DD (e.g., 2025-05-25)")
	}
	if !core.IsValidDate(date) {
		return nil, core.WeekDate{}, validationErrorf("Invalid date: %s is not a valid calendar date", date)
	}
	if f.client == nil {
		return nil, core.WeekDate{}, errors.New("mensa client not initialized")
	}

	wd, err := core.DateToWeekDate(date)
	if err != nil {
		return nil, core.WeekDate{}, errors.Mark(err, ErrValidation)
	}

	week, err := f.client.getWeek(ctx, apiName, wd)
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return nil, wd, notFoundErrorf("No menu found for %s in year %d, week %d. The facility might be closed or the week is too far in the future.", apiName, wd.Year, wd.Week)
		}
		return nil, wd, err
	}
	return week, wd, nil
}

func menuFailure(ctx context.Context, err error) *MenuResult {
	kind, msg := describe(err)
	log.Errorf(ctx, "menu fetch failed (%s): %s", kind, msg)
	return &MenuResult{Success: false, Error: msg, ErrorKind: kind}
}

// describe turns err into the kind and message reported to tool callers.
func describe(err error) (ErrorKind, string) {
	kind := KindOf(err)
	switch {
	case kind == KindValidation || kind == KindNotFound || kind == KindParse:
		return kind, err.Error()
	case statusCode(err) != 0:
		return kind, err.Error()
	default:
		return kind, fmt.Sprintf("Failed to fetch menu: %s", err.Error())
	}
}

func toDayMenu(apiName string, day dayRecord) DayMenu {
	items := make([]MenuItem, 0, len(day.Dishes))
	for _, dish := range day.Dishes {
		items = append(items, toMenuItem(dish))
	}
	return DayMenu{
		Date:     day.Date,
		Facility: apiName,
		Menu:     items,
	}
}

func toMenuItem(d dishRecord) MenuItem {
	item := MenuItem{
		Name:     d.Name,
		Category: d.DishType,
		Labels:   d.Labels,
	}
	if item.Name == "" {
		item.Name = unknownDishName
	}
	if item.Labels == nil {
		item.Labels = []string{}
	}
	if d.Prices != nil {
		item.Price = &Prices{
			Students: toPriceInfo(d.Prices.Students),
			Staff:    toPriceInfo(d.Prices.Staff),
			Guests:   toPriceInfo(d.Prices.Guests),
		}
	}
	return item
}

func toPriceInfo(p *priceRecord) *PriceInfo {
	if p == nil {
		return nil
	}
	return &PriceInfo{
		BasePrice:    p.BasePrice,
		PricePerUnit: p.PricePerUnit,
		Unit:         p.Unit,
	}
}
