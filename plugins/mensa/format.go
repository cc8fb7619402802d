package mensa

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PayloadText renders a tool result the way it is handed to tool callers: JSON indented by two spaces.
func PayloadText(v interface{}) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	return string(b), nil
}

// euro is the currency of the region the eat-api covers.
var euro = func() currency.Unit {
	if unit, ok := currency.FromRegion(language.MustParseRegion("DE")); ok {
		return unit
	}
	return currency.EUR
}()

var printer = message.NewPrinter(language.German)

// FormatPrice renders a price such as "EUR 3,50" or "EUR 0,90 / 100g".
func FormatPrice(p *PriceInfo) string {
	if p == nil {
		return ""
	}
	var parts []string
	if p.BasePrice > 0 || p.PricePerUnit == 0 {
		parts = append(parts, printer.Sprint(euro.Amount(p.BasePrice)))
	}
	if p.PricePerUnit > 0 {
		perUnit := printer.Sprint(euro.Amount(p.PricePerUnit))
		if p.Unit != "" {
			perUnit += " / " + p.Unit
		}
		parts = append(parts, perUnit)
	}
	return strings.Join(parts, " + ")
}

// FormatDayMenu renders a day menu as plain text for terminals.
func FormatDayMenu(m *DayMenu) string {
	if m == nil {
		return ""
	}
	var b strings.Builder

	title := m.Facility
	if m.FacilityName != "" {
		title = fmt.Sprintf("%s (%s)", m.FacilityName, m.Facility)
	}
	fmt.Fprintf(&b, "%s, %s\n", title, m.Date)
	if m.Location != "" {
		fmt.Fprintf(&b, "%s\n", m.Location)
	}

	if len(m.Menu) == 0 {
		b.WriteString("  no dishes\n")
		return b.String()
	}
	for _, item := range m.Menu {
		line := "  - " + item.Name
		if item.Category != "" {
			line += " [" + item.Category + "]"
		}
		if item.Price != nil && item.Price.Students != nil {
			line += "  " + FormatPrice(item.Price.Students)
		}
		if len(item.Labels) > 0 {
			line += "  (" + strings.Join(item.Labels, ", ") + ")"
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// FormatWeekMenu renders every day of a week menu.
func FormatWeekMenu(w *WeekMenu) string {
	if w == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Week %s\n\n", w.WeekString)
	for i := range w.Days {
		day := w.Days[i]
		b.WriteString(FormatDayMenu(&day))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatFacilities renders a facility list, one per line.
func FormatFacilities(facilities []Facility) string {
	var b strings.Builder
	for _, f := range facilities {
		fmt.Fprintf(&b, "%-28s %s, %s\n", f.APIName, f.Name, f.Location)
	}
	return b.String()
}
