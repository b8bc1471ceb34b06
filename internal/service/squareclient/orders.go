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

// OrdersQuery selects completed orders closed within [Begin, End).
type OrdersQuery struct {
	LocationIDs []string
	Begin       time.Time
	End         time.Time
}

// Тело запроса /v2/orders/search
type searchOrdersRequest struct {
	LocationIDs []string          `json:"location_ids"`
	Cursor      string            `json:"cursor,omitempty"`
	Query       searchOrdersQuery `json:"query"`
}

type searchOrdersQuery struct {
	Filter searchOrdersFilter `json:"filter"`
}

type searchOrdersFilter struct {
	DateTimeFilter struct {
		ClosedAt struct {
			StartAt string `json:"start_at"`
			EndAt   string `json:"end_at"`
		} `json:"closed_at"`
	} `json:"date_time_filter"`
	StateFilter struct {
		States []string `json:"states"`
	} `json:"state_filter"`
}

type lineItemJSON struct {
	CatalogObjectID    *string    `json:"catalog_object_id"`
	SKU                *string    `json:"sku"`
	Name               *string    `json:"name"`
	VariationName      *string    `json:"variation_name"`
	Quantity           string     `json:"quantity"`
	GrossSalesMoney    *moneyJSON `json:"gross_sales_money"`
	TotalDiscountMoney *moneyJSON `json:"total_discount_money"`
	NetSalesMoney      *moneyJSON `json:"net_sales_money"`
}

type orderJSON struct {
	ID                 string         `json:"id"`
	LocationID         string         `json:"location_id"`
	State              *string        `json:"state"`
	CreatedAt          string         `json:"created_at"`
	ClosedAt           string         `json:"closed_at"`
	UpdatedAt          string         `json:"updated_at"`
	TotalMoney         *moneyJSON     `json:"total_money"`
	TotalDiscountMoney *moneyJSON     `json:"total_discount_money"`
	TotalTaxMoney      *moneyJSON     `json:"total_tax_money"`
	TotalTipMoney      *moneyJSON     `json:"total_tip_money"`
	LineItems          []lineItemJSON `json:"line_items"`
}

type ordersPage struct {
	Orders []orderJSON `json:"orders"`
	Cursor string      `json:"cursor"`
}

const (
	unknownLocation     = "UNKNOWN"
	orderStateCompleted = "COMPLETED"
)

func (order orderJSON) toModel() model.SalesOrder {
	result := model.SalesOrder{
		SquareOrderID:      order.ID,
		LocationID:         order.LocationID,
		State:              order.State,
		CreatedAtUTC:       parseTime(order.CreatedAt),
		ClosedAtUTC:        parseTime(order.ClosedAt),
		UpdatedAtUTC:       parseTime(order.UpdatedAt),
		TotalMoneyCents:    amount(order.TotalMoney),
		TotalDiscountCents: amount(order.TotalDiscountMoney),
		TotalTaxCents:      amount(order.TotalTaxMoney),
		TotalTipCents:      amount(order.TotalTipMoney),
	}
	if result.LocationID == "" {
		result.LocationID = unknownLocation
	}
	for _, li := range order.LineItems {
		// количество в Square - строка, "1.5" для весовых позиций
		quantity, _ := strconv.ParseFloat(li.Quantity, 64)
		result.Items = append(result.Items, model.SalesOrderItem{
			CatalogObjectID: li.CatalogObjectID,
			SKU:             li.SKU,
			ItemName:        li.Name,
			VariationName:   li.VariationName,
			Quantity:        quantity,
			GrossSalesCents: amount(li.GrossSalesMoney),
			DiscountCents:   amount(li.TotalDiscountMoney),
			NetSalesCents:   amount(li.NetSalesMoney),
		})
	}
	return result
}

// SearchOrders follows the orders search cursor the same way Payments does.
func (client *squareClient) SearchOrders(ctx context.Context, accessToken string, query OrdersQuery) iter.Seq2[model.SalesOrder, error] {
	used := false
	return func(yield func(model.SalesOrder, error) bool) {
		if used {
			return
		}
		used = true

		cursor := ""
		for {
			page, err := client.ordersPage(ctx, accessToken, query, cursor)
			if err != nil {
				yield(model.SalesOrder{}, err)
				return
			}
			for _, order := range page.Orders {
				if !yield(order.toModel(), nil) {
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

func (client *squareClient) ordersPage(ctx context.Context, accessToken string, query OrdersQuery, cursor string) (ordersPage, error) {
	body := searchOrdersRequest{
		LocationIDs: query.LocationIDs,
		Cursor:      cursor,
	}
	body.Query.Filter.DateTimeFilter.ClosedAt.StartAt = model.ISO(query.Begin)
	body.Query.Filter.DateTimeFilter.ClosedAt.EndAt = model.ISO(query.End)
	body.Query.Filter.StateFilter.States = []string{orderStateCompleted}

	resp, err := client.do("orders_search",
		client.resty.R().
			SetContext(ctx).
			SetAuthToken(accessToken).
			SetBody(body),
		http.MethodPost, "/v2/orders/search")
	if err != nil {
		return ordersPage{}, err
	}
	if !resp.IsSuccess() {
		return ordersPage{}, &UpstreamError{API: APIOrders, Status: resp.StatusCode(), Body: rawBody(resp.Body())}
	}

	var page ordersPage
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return ordersPage{}, err
	}
	return page, nil
}

func amount(money *moneyJSON) *int64 {
	if money == nil {
		return nil
	}
	value := money.Amount
	return &value
}

func parseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}
