package report

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"iter"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iurnickita/squaresync/internal/model"
)

func seqOf(payments []model.Payment, tail error) iter.Seq2[model.Payment, error] {
	return func(yield func(model.Payment, error) bool) {
		for _, payment := range payments {
			if !yield(payment, nil) {
				return
			}
		}
		if tail != nil {
			yield(model.Payment{}, tail)
		}
	}
}

func completed(amount int64, method model.PaymentMethod) model.Payment {
	return model.Payment{Status: model.PaymentStatusCompleted, AmountMinor: amount, Method: method}
}

func TestAggregateScenario(t *testing.T) {
	payments := []model.Payment{
		completed(500, model.PaymentMethodCard),
		completed(300, model.PaymentMethodCard),
		completed(200, model.PaymentMethodCash),
	}

	stats, err := Aggregate("L1", seqOf(payments, nil))
	require.NoError(t, err)
	require.Equal(t, model.LocationStats{
		LocationID: "L1",
		TotalMinor: 1000,
		CardMinor:  800,
		CashMinor:  200,
		OtherMinor: 0,
		Count:      3,
	}, stats)
}

func TestAggregateSkipsNotCompleted(t *testing.T) {
	payments := []model.Payment{
		completed(100, model.PaymentMethodOther),
		{Status: "FAILED", AmountMinor: 999, Method: model.PaymentMethodCard},
		{Status: "CANCELED", AmountMinor: 555, Method: model.PaymentMethodCash},
		{Status: "", AmountMinor: 1},
	}

	stats, err := Aggregate("L1", seqOf(payments, nil))
	require.NoError(t, err)
	require.Equal(t, int64(100), stats.TotalMinor)
	require.Equal(t, int64(100), stats.OtherMinor)
	require.Equal(t, 1, stats.Count)
}

func TestAggregateAbortDropsPartial(t *testing.T) {
	upstream := errors.New("page 2 failed")
	payments := []model.Payment{completed(500, model.PaymentMethodCard)}

	stats, err := Aggregate("L1", seqOf(payments, upstream))
	require.ErrorIs(t, err, upstream)
	require.Equal(t, model.LocationStats{LocationID: "L1"}, stats)
}

func TestAggregateMethodsSumToTotal(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	methods := []model.PaymentMethod{model.PaymentMethodCard, model.PaymentMethodCash, model.PaymentMethodOther}
	statuses := []string{model.PaymentStatusCompleted, "FAILED", "PENDING"}

	for i := 0; i < 50; i++ {
		var payments []model.Payment
		completedCount := 0
		n := rnd.Intn(40)
		for j := 0; j < n; j++ {
			payment := model.Payment{
				Status:      statuses[rnd.Intn(len(statuses))],
				AmountMinor: rnd.Int63n(100000),
				Method:      methods[rnd.Intn(len(methods))],
			}
			if payment.Status == model.PaymentStatusCompleted {
				completedCount++
			}
			payments = append(payments, payment)
		}

		stats, err := Aggregate("L", seqOf(payments, nil))
		require.NoError(t, err)
		require.Equal(t, stats.TotalMinor, stats.CardMinor+stats.CashMinor+stats.OtherMinor)
		require.Equal(t, completedCount, stats.Count)
	}
}

func TestCombine(t *testing.T) {
	a := model.LocationStats{LocationID: "A", TotalMinor: 1000, CardMinor: 800, CashMinor: 200, Count: 3}
	b := model.LocationStats{LocationID: "B", TotalMinor: 450, CardMinor: 100, CashMinor: 50, OtherMinor: 300, Count: 4}

	require.Equal(t, model.CombinedStats{
		TotalMinor: 1450,
		CardMinor:  900,
		CashMinor:  250,
		OtherMinor: 300,
		Count:      7,
	}, Combine([]model.LocationStats{a, b}))
	require.Equal(t, model.CombinedStats{}, Combine(nil))
}

func TestCentsToEuros(t *testing.T) {
	require.Equal(t, 123.45, CentsToEuros(12345))
	require.Equal(t, 0.0, CentsToEuros(0))
	require.Equal(t, 0.01, CentsToEuros(1))
	require.Equal(t, -2.5, CentsToEuros(-250))
	require.Equal(t, "123.40", Euros(12340).StringFixed(2))
}

func testRange() model.Range {
	end := time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)
	return model.Range{Type: model.RangeLast24Hours, Begin: end.Add(-24 * time.Hour), End: end}
}

func TestNewSummaryJSON(t *testing.T) {
	perLocation := []model.LocationStats{
		{LocationID: "LFGNGPYT8AT6X", TotalMinor: 1000, CardMinor: 800, CashMinor: 200, Count: 3},
		{LocationID: "LGW3DHDSR4NS2", TotalMinor: 1, OtherMinor: 1, Count: 1},
	}

	raw, err := json.Marshal(NewSummary(testRange(), perLocation))
	require.NoError(t, err)
	require.JSONEq(t, `{
		"range": {"type": "last_24_hours", "begin_iso": "2024-05-01T08:30:00.000Z", "end_iso": "2024-05-02T08:30:00.000Z"},
		"combined": {"total_eur": 10.01, "card_eur": 8, "cash_eur": 2, "other_eur": 0.01, "count": 4},
		"per_location": [
			{"location_id": "LFGNGPYT8AT6X", "total_eur": 10, "card_eur": 8, "cash_eur": 2, "other_eur": 0, "count": 3},
			{"location_id": "LGW3DHDSR4NS2", "total_eur": 0.01, "card_eur": 0, "cash_eur": 0, "other_eur": 0.01, "count": 1}
		]
	}`, string(raw))
}

func TestRenderText(t *testing.T) {
	perLocation := []model.LocationStats{
		{LocationID: "LFGNGPYT8AT6X", TotalMinor: 12345, CardMinor: 10000, CashMinor: 2345, Count: 5},
	}

	text := RenderText(testRange(), perLocation, model.DefaultLocations)
	require.Equal(t, strings.Join([]string{
		"Resumen de ventas (últimas 24 horas):",
		"",
		"• Total combinado (Ten1 Tapas + Dickens): €123.45 en 5 ventas.",
		"   - Tarjeta: €100.00",
		"   - Efectivo: €23.45",
		"   - Otros: €0.00",
		"",
		"• Ten1 Tapas (LFGNGPYT8AT6X): €123.45 (5 ventas)",
		"• Dickens (LGW3DHDSR4NS2): €0.00 (0 ventas)",
		"",
		"Rango de tiempo:",
		"   Desde: 2024-05-01T08:30:00.000Z",
		"   Hasta: 2024-05-02T08:30:00.000Z",
	}, "\n"), text)

	// детерминированность
	require.Equal(t, text, RenderText(testRange(), perLocation, model.DefaultLocations))
}

func TestRenderTextLastNDays(t *testing.T) {
	end := time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)
	rng := model.Range{Type: model.RangeLastNDays, Begin: end.AddDate(0, 0, -7), End: end}

	text := RenderText(rng, nil, model.DefaultLocations)
	require.True(t, strings.HasPrefix(text, "Resumen de ventas (últimos 7 días):\n"))
	require.Contains(t, text, "   Desde: 2024-04-25T08:30:00.000Z")
}

func TestExports(t *testing.T) {
	summary := NewSummary(testRange(), []model.LocationStats{
		{LocationID: "L1", TotalMinor: 500, CardMinor: 500, Count: 1},
	})

	pdf, err := BuildPDF(summary)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	xlsx, err := BuildXLSX(summary)
	require.NoError(t, err)
	_, err = zip.NewReader(bytes.NewReader(xlsx), int64(len(xlsx)))
	require.NoError(t, err)
}
