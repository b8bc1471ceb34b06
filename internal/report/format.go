package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/squaresync/internal/model"
)

// Euros converts minor units to a two-place decimal amount.
func Euros(cents int64) decimal.Decimal {
	return decimal.New(cents, -2).Round(2)
}

func CentsToEuros(cents int64) float64 {
	return Euros(cents).InexactFloat64()
}

type RangeJSON struct {
	Type     string `json:"type"`
	BeginISO string `json:"begin_iso"`
	EndISO   string `json:"end_iso"`
}

type Amounts struct {
	TotalEUR float64 `json:"total_eur"`
	CardEUR  float64 `json:"card_eur"`
	CashEUR  float64 `json:"cash_eur"`
	OtherEUR float64 `json:"other_eur"`
	Count    int     `json:"count"`
}

type LocationAmounts struct {
	LocationID string `json:"location_id"`
	Amounts
}

type Summary struct {
	Range       RangeJSON         `json:"range"`
	Combined    Amounts           `json:"combined"`
	PerLocation []LocationAmounts `json:"per_location"`
}

func NewRangeJSON(rng model.Range) RangeJSON {
	return RangeJSON{
		Type:     rng.Type,
		BeginISO: model.ISO(rng.Begin),
		EndISO:   model.ISO(rng.End),
	}
}

// NewSummary keeps the order of perLocation.
func NewSummary(rng model.Range, perLocation []model.LocationStats) Summary {
	combined := Combine(perLocation)
	summary := Summary{
		Range: NewRangeJSON(rng),
		Combined: amounts(combined.TotalMinor, combined.CardMinor, combined.CashMinor,
			combined.OtherMinor, combined.Count),
		PerLocation: make([]LocationAmounts, 0, len(perLocation)),
	}
	for _, stats := range perLocation {
		summary.PerLocation = append(summary.PerLocation, LocationAmounts{
			LocationID: stats.LocationID,
			Amounts: amounts(stats.TotalMinor, stats.CardMinor, stats.CashMinor,
				stats.OtherMinor, stats.Count),
		})
	}
	return summary
}

func amounts(total, card, cash, other int64, count int) Amounts {
	return Amounts{
		TotalEUR: CentsToEuros(total),
		CardEUR:  CentsToEuros(card),
		CashEUR:  CentsToEuros(cash),
		OtherEUR: CentsToEuros(other),
		Count:    count,
	}
}

// RenderText renders the daily sales text. Locations are listed in the
// order given; a location without stats is shown with zero sales.
func RenderText(rng model.Range, perLocation []model.LocationStats, locations []model.Location) string {
	byID := make(map[string]model.LocationStats, len(perLocation))
	for _, stats := range perLocation {
		byID[stats.LocationID] = stats
	}
	combined := Combine(perLocation)

	names := make([]string, 0, len(locations))
	for _, location := range locations {
		names = append(names, locationName(location))
	}

	lines := []string{
		fmt.Sprintf("Resumen de ventas (%s):", rangeTitle(rng)),
		"",
		fmt.Sprintf("• Total combinado (%s): €%s en %d ventas.",
			strings.Join(names, " + "), Euros(combined.TotalMinor).StringFixed(2), combined.Count),
		fmt.Sprintf("   - Tarjeta: €%s", Euros(combined.CardMinor).StringFixed(2)),
		fmt.Sprintf("   - Efectivo: €%s", Euros(combined.CashMinor).StringFixed(2)),
		fmt.Sprintf("   - Otros: €%s", Euros(combined.OtherMinor).StringFixed(2)),
		"",
	}
	for _, location := range locations {
		stats := byID[location.ID]
		lines = append(lines, fmt.Sprintf("• %s (%s): €%s (%d ventas)",
			locationName(location), location.ID, Euros(stats.TotalMinor).StringFixed(2), stats.Count))
	}
	lines = append(lines,
		"",
		"Rango de tiempo:",
		"   Desde: "+model.ISO(rng.Begin),
		"   Hasta: "+model.ISO(rng.End),
	)

	return strings.Join(lines, "\n")
}

func rangeTitle(rng model.Range) string {
	if rng.Type == model.RangeLastNDays {
		days := int(rng.End.Sub(rng.Begin).Hours() / 24)
		return fmt.Sprintf("últimos %d días", days)
	}
	return "últimas 24 horas"
}

func locationName(location model.Location) string {
	if location.Name == "" {
		return location.ID
	}
	return location.Name
}
