package squareclient

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"strconv"
	"time"

	"github.com/iurnickita/squaresync/internal/model"
)

type moneyJSON struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// JSON платежа Square
type paymentJSON struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	AmountMoney *moneyJSON      `json:"amount_money"`
	CardDetails json.RawMessage `json:"card_details"`
	CashDetails json.RawMessage `json:"cash_details"`
	LocationID  string          `json:"location_id"`
	CreatedAt   string          `json:"created_at"`
}

type paymentsPage struct {
	Payments []paymentJSON `json:"payments"`
	Cursor   string        `json:"cursor"`
}

func (payment paymentJSON) toModel() model.Payment {
	result := model.Payment{
		ID:         payment.ID,
		Status:     payment.Status,
		LocationID: payment.LocationID,
		Method:     model.PaymentMethodOther,
	}
	if payment.AmountMoney != nil {
		result.AmountMinor = payment.AmountMoney.Amount
	}
	switch {
	case populated(payment.CardDetails):
		result.Method = model.PaymentMethodCard
	case populated(payment.CashDetails):
		result.Method = model.PaymentMethodCash
	}
	if t, err := time.Parse(time.RFC3339, payment.CreatedAt); err == nil {
		result.CreatedAt = t
	}
	return result
}

// Payments lists the payments of one location within [begin, end), newest
// first. Pages are requested one after another and each page is yielded in
// full before the next request. A failed page yields a single
// *UpstreamError and ends the sequence. The sequence can be ranged once.
func (client *squareClient) Payments(ctx context.Context, accessToken string, locationID string, begin, end time.Time) iter.Seq2[model.Payment, error] {
	used := false
	return func(yield func(model.Payment, error) bool) {
		if used {
			return
		}
		used = true

		cursor := ""
		for {
			page, err := client.paymentsPage(ctx, accessToken, locationID, begin, end, cursor)
			if err != nil {
				yield(model.Payment{}, err)
				return
			}
			for _, payment := range page.Payments {
				if !yield(payment.toModel(), nil) {
					return
				}
			}
			if page.Cursor == "" {
				return
			}
			cursor = page.Cursor
		}
	}
}

func (client *squareClient) paymentsPage(ctx context.Context, accessToken string, locationID string, begin, end time.Time, cursor string) (paymentsPage, error) {
	params := map[string]string{
		"location_id": locationID,
		"begin_time":  model.ISO(begin),
		"end_time":    model.ISO(end),
		"sort_order":  "DESC",
		"limit":       strconv.Itoa(pageLimit),
	}
	if cursor != "" {
		params["cursor"] = cursor
	}

	resp, err := client.do("payments_list",
		client.resty.R().
			SetContext(ctx).
			SetAuthToken(accessToken).
			SetQueryParams(params),
		http.MethodGet, "/v2/payments")
	if err != nil {
		return paymentsPage{}, err
	}
	if !resp.IsSuccess() {
		return paymentsPage{}, &UpstreamError{
			API:        APIPayments,
			Status:     resp.StatusCode(),
			LocationID: locationID,
			Body:       rawBody(resp.Body()),
		}
	}

	var page paymentsPage
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return paymentsPage{}, err
	}
	return page, nil
}
