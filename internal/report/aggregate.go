package report

import (
	"iter"

	"github.com/iurnickita/squaresync/internal/model"
)

// Aggregate folds the payments of one location into its stats. Only
// COMPLETED payments are counted. On the first error the partial stats are
// dropped and the error is returned.
func Aggregate(locationID string, payments iter.Seq2[model.Payment, error]) (model.LocationStats, error) {
	stats := model.LocationStats{LocationID: locationID}

	for payment, err := range payments {
		if err != nil {
			return model.LocationStats{LocationID: locationID}, err
		}
		Add(&stats, payment)
	}
	return stats, nil
}

// Add folds a single payment into stats.
func Add(stats *model.LocationStats, payment model.Payment) {
	if payment.Status != model.PaymentStatusCompleted {
		return
	}

	stats.TotalMinor += payment.AmountMinor
	stats.Count++
	switch payment.Method {
	case model.PaymentMethodCard:
		stats.CardMinor += payment.AmountMinor
	case model.PaymentMethodCash:
		stats.CashMinor += payment.AmountMinor
	default:
		stats.OtherMinor += payment.AmountMinor
	}
}

// Combine sums per-location stats element-wise.
func Combine(perLocation []model.LocationStats) model.CombinedStats {
	var combined model.CombinedStats
	for _, stats := range perLocation {
		combined.TotalMinor += stats.TotalMinor
		combined.CardMinor += stats.CardMinor
		combined.CashMinor += stats.CashMinor
		combined.OtherMinor += stats.OtherMinor
		combined.Count += stats.Count
	}
	return combined
}
