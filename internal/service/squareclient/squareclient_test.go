package squareclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iurnickita/squaresync/internal/model"
	"github.com/iurnickita/squaresync/internal/service/config"
)

// fakeSquare отдает заранее заданные страницы платежей
type fakeSquare struct {
	mu       sync.Mutex
	pages    []string
	failPage int
	requests []url.Values
	headers  []http.Header
}

func (f *fakeSquare) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.URL.Query())
	f.headers = append(f.headers, r.Header.Clone())
	n := len(f.requests)

	if n == f.failPage {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"errors":[{"code":"RATE_LIMITED"}]}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(f.pages[n-1]))
}

func newTestClient(t *testing.T, h http.Handler) SquareClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewSquareClient(config.SquareConfig{BaseURL: srv.URL})
}

func collect(seq func(func(model.Payment, error) bool)) ([]model.Payment, error) {
	var payments []model.Payment
	for payment, err := range seq {
		if err != nil {
			return payments, err
		}
		payments = append(payments, payment)
	}
	return payments, nil
}

func TestPaymentsPagination(t *testing.T) {
	fake := &fakeSquare{pages: []string{
		`{"payments":[{"id":"p1","status":"COMPLETED","amount_money":{"amount":500},"card_details":{"status":"CAPTURED"}}],"cursor":"c1"}`,
		`{"payments":[{"id":"p2","status":"COMPLETED","amount_money":{"amount":200},"cash_details":{}}],"cursor":"c2"}`,
		`{"payments":[{"id":"p3","status":"FAILED"}]}`,
	}}
	client := newTestClient(t, fake)

	begin := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	end := begin.Add(24 * time.Hour)
	payments, err := collect(client.Payments(context.Background(), "tok", "L1", begin, end))
	require.NoError(t, err)
	require.Len(t, payments, 3)
	require.Equal(t, []string{"p1", "p2", "p3"}, []string{payments[0].ID, payments[1].ID, payments[2].ID})

	// ровно N запросов, курсоры по порядку
	require.Len(t, fake.requests, 3)
	require.Equal(t, "", fake.requests[0].Get("cursor"))
	require.Equal(t, "c1", fake.requests[1].Get("cursor"))
	require.Equal(t, "c2", fake.requests[2].Get("cursor"))

	q := fake.requests[0]
	require.Equal(t, "L1", q.Get("location_id"))
	require.Equal(t, "2024-05-01T10:00:00.000Z", q.Get("begin_time"))
	require.Equal(t, "2024-05-02T10:00:00.000Z", q.Get("end_time"))
	require.Equal(t, "DESC", q.Get("sort_order"))
	require.Equal(t, "100", q.Get("limit"))

	require.Equal(t, "Bearer tok", fake.headers[0].Get("Authorization"))
	require.Equal(t, DefaultAPIVersion, fake.headers[0].Get("Square-Version"))

	// классификация
	require.Equal(t, model.PaymentMethodCard, payments[0].Method)
	require.Equal(t, int64(500), payments[0].AmountMinor)
	require.Equal(t, model.PaymentMethodCash, payments[1].Method)
	require.Equal(t, model.PaymentMethodOther, payments[2].Method)
	require.Equal(t, int64(0), payments[2].AmountMinor)
}

func TestPaymentsUpstreamError(t *testing.T) {
	fake := &fakeSquare{
		pages:    []string{`{"payments":[{"id":"p1","status":"COMPLETED"}],"cursor":"c1"}`},
		failPage: 2,
	}
	client := newTestClient(t, fake)

	payments, err := collect(client.Payments(context.Background(), "tok", "L1", time.Now().Add(-time.Hour), time.Now()))
	require.Len(t, payments, 1)

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	require.Equal(t, http.StatusTooManyRequests, upstream.Status)
	require.Equal(t, APIPayments, upstream.API)
	require.Equal(t, "L1", upstream.LocationID)
	require.JSONEq(t, `{"errors":[{"code":"RATE_LIMITED"}]}`, string(upstream.Body))
	require.Len(t, fake.requests, 2)
}

func TestPaymentsNotRestartable(t *testing.T) {
	fake := &fakeSquare{pages: []string{`{"payments":[{"id":"p1","status":"COMPLETED"}]}`}}
	client := newTestClient(t, fake)

	seq := client.Payments(context.Background(), "tok", "L1", time.Now().Add(-time.Hour), time.Now())
	first, err := collect(seq)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := collect(seq)
	require.NoError(t, err)
	require.Empty(t, second)
	require.Len(t, fake.requests, 1)
}

func TestPaymentsStopEarly(t *testing.T) {
	fake := &fakeSquare{pages: []string{
		`{"payments":[{"id":"p1"},{"id":"p2"}],"cursor":"c1"}`,
		`{"payments":[{"id":"p3"}]}`,
	}}
	client := newTestClient(t, fake)

	for payment := range client.Payments(context.Background(), "tok", "L1", time.Now().Add(-time.Hour), time.Now()) {
		require.Equal(t, "p1", payment.ID)
		break
	}
	// следующая страница не запрашивается
	require.Len(t, fake.requests, 1)
}

func TestSearchOrders(t *testing.T) {
	var bodies []searchOrdersRequest
	pages := []string{
		`{"orders":[{"id":"o1","location_id":"L1","state":"COMPLETED","closed_at":"2024-05-01T12:00:00Z",
		  "total_money":{"amount":1250},"line_items":[{"name":"Bravas","quantity":"2","gross_sales_money":{"amount":900}}]}],"cursor":"next"}`,
		`{"orders":[{"id":"o2"}]}`,
	}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v2/orders/search", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		var body searchOrdersRequest
		require.NoError(t, json.Unmarshal(raw, &body))
		bodies = append(bodies, body)
		fmt.Fprint(w, pages[len(bodies)-1])
	}))

	begin := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	query := OrdersQuery{LocationIDs: []string{"L1", "L2"}, Begin: begin, End: begin.Add(48 * time.Hour)}

	var orders []model.SalesOrder
	for order, err := range client.SearchOrders(context.Background(), "tok", query) {
		require.NoError(t, err)
		orders = append(orders, order)
	}

	require.Len(t, bodies, 2)
	require.Equal(t, []string{"L1", "L2"}, bodies[0].LocationIDs)
	require.Empty(t, bodies[0].Cursor)
	require.Equal(t, "next", bodies[1].Cursor)
	require.Equal(t, "2024-05-01T00:00:00.000Z", bodies[0].Query.Filter.DateTimeFilter.ClosedAt.StartAt)
	require.Equal(t, []string{"COMPLETED"}, bodies[0].Query.Filter.StateFilter.States)

	require.Len(t, orders, 2)
	require.Equal(t, "o1", orders[0].SquareOrderID)
	require.Equal(t, int64(1250), *orders[0].TotalMoneyCents)
	require.NotNil(t, orders[0].ClosedAtUTC)
	require.Len(t, orders[0].Items, 1)
	require.Equal(t, 2.0, orders[0].Items[0].Quantity)
	require.Equal(t, "Bravas", *orders[0].Items[0].ItemName)
	require.Nil(t, orders[0].Items[0].NetSalesCents)

	require.Equal(t, unknownLocation, orders[1].LocationID)
	require.Nil(t, orders[1].TotalMoneyCents)
}

func TestSearchOrdersUpstreamError(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"errors":[{"code":"INTERNAL_SERVER_ERROR"}]}`)
			return
		}
		fmt.Fprint(w, `{"orders":[{"id":"o1","location_id":"L1"}],"cursor":"next"}`)
	}))

	begin := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	query := OrdersQuery{LocationIDs: []string{"L1"}, Begin: begin, End: begin.Add(24 * time.Hour)}

	var ids []string
	var lastErr error
	for order, err := range client.SearchOrders(context.Background(), "tok", query) {
		if err != nil {
			lastErr = err
			continue
		}
		ids = append(ids, order.SquareOrderID)
	}

	require.Equal(t, 2, calls)
	require.Equal(t, []string{"o1"}, ids)

	var upstream *UpstreamError
	require.True(t, errors.As(lastErr, &upstream))
	require.Equal(t, APIOrders, upstream.API)
	require.Equal(t, http.StatusInternalServerError, upstream.Status)
	require.Empty(t, upstream.LocationID)
	require.JSONEq(t, `{"errors":[{"code":"INTERNAL_SERVER_ERROR"}]}`, string(upstream.Body))
}

func TestObtainToken(t *testing.T) {
	var got TokenRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth2/token", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.Code == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"errors":[{"code":"INVALID_REQUEST_ERROR"}]}`)
			return
		}
		if got.Code == "errors-ok" {
			fmt.Fprint(w, `{"errors":[{"code":"UNAUTHORIZED"}]}`)
			return
		}
		fmt.Fprint(w, `{"access_token":"at","token_type":"bearer","expires_at":"2030-01-01T00:00:00Z",
			"merchant_id":"M1","refresh_token":"rt","short_lived":false}`)
	}))
	ctx := context.Background()

	token, err := client.ObtainToken(ctx, TokenRequest{
		ClientID: "id", ClientSecret: "secret", Code: "abc",
		GrantType: GrantAuthorizationCode, RedirectURI: "https://x/cb",
	})
	require.NoError(t, err)
	require.Equal(t, "abc", got.Code)
	require.Equal(t, GrantAuthorizationCode, got.GrantType)

	credential := token.Credential()
	require.Equal(t, "M1", credential.MerchantID)
	require.Equal(t, "rt", credential.RefreshToken)
	require.Equal(t, 2030, credential.ExpiresAt.Year())

	var upstream *UpstreamError
	_, err = client.ObtainToken(ctx, TokenRequest{Code: "bad", GrantType: GrantAuthorizationCode})
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, http.StatusBadRequest, upstream.Status)

	// 200 с ошибками тоже неуспех
	_, err = client.ObtainToken(ctx, TokenRequest{Code: "errors-ok", GrantType: GrantAuthorizationCode})
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, http.StatusOK, upstream.Status)
}

func TestMerchant(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, "unauthorized")
			return
		}
		fmt.Fprint(w, `{"merchant":{"id":"M1"}}`)
	}))
	ctx := context.Background()

	body, err := client.Merchant(ctx, "good")
	require.NoError(t, err)
	require.JSONEq(t, `{"merchant":{"id":"M1"}}`, string(body))

	_, err = client.Merchant(ctx, "bad")
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, http.StatusUnauthorized, upstream.Status)
	require.Equal(t, `"unauthorized"`, string(upstream.Body))
}

func TestAuthorizeURL(t *testing.T) {
	client := NewSquareClient(config.SquareConfig{Environment: config.EnvironmentSandbox})

	raw := client.AuthorizeURL("cid", []string{"PAYMENTS_READ", "ORDERS_READ"}, "st", "https://app/cb")
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "connect.squareupsandbox.com", parsed.Host)
	require.Equal(t, "/oauth2/authorize", parsed.Path)

	q := parsed.Query()
	require.Equal(t, "cid", q.Get("client_id"))
	require.Equal(t, "PAYMENTS_READ ORDERS_READ", q.Get("scope"))
	require.Equal(t, "false", q.Get("session"))
	require.Equal(t, "st", q.Get("state"))
	require.Equal(t, "https://app/cb", q.Get("redirect_uri"))

	production := NewSquareClient(config.SquareConfig{Environment: config.EnvironmentProduction})
	require.Contains(t, production.AuthorizeURL("cid", nil, "st", "r"), ProductionBaseURL)
}
