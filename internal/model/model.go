package model

import "time"

// Учетные данные OAuth

type Credential struct {
	ID           int64     `json:"-"`
	MerchantID   string    `json:"merchant_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	ShortLived   bool      `json:"short_lived"`
	CreatedAt    time.Time `json:"-"`
}

// Платежи

type PaymentMethod string

const (
	PaymentMethodCard  PaymentMethod = "card"
	PaymentMethodCash  PaymentMethod = "cash"
	PaymentMethodOther PaymentMethod = "other"
)

const PaymentStatusCompleted = "COMPLETED"

type Payment struct {
	ID          string
	Status      string
	AmountMinor int64
	Method      PaymentMethod
	LocationID  string
	CreatedAt   time.Time
}

// Точки продаж

type Location struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

var DefaultLocations = []Location{
	{ID: "LFGNGPYT8AT6X", Name: "Ten1 Tapas"},
	{ID: "LGW3DHDSR4NS2", Name: "Dickens"},
}

// Статистика

type LocationStats struct {
	LocationID string
	TotalMinor int64
	CardMinor  int64
	CashMinor  int64
	OtherMinor int64
	Count      int
}

type CombinedStats struct {
	TotalMinor int64
	CardMinor  int64
	CashMinor  int64
	OtherMinor int64
	Count      int
}

const (
	RangeLast24Hours = "last_24_hours"
	RangeLastNDays   = "last_n_days"
)

type Range struct {
	Type  string
	Begin time.Time
	End   time.Time
}

// Импорт заказов

type SalesOrder struct {
	SquareOrderID      string
	MerchantID         string
	LocationID         string
	State              *string
	CreatedAtUTC       *time.Time
	ClosedAtUTC        *time.Time
	UpdatedAtUTC       *time.Time
	TotalMoneyCents    *int64
	TotalDiscountCents *int64
	TotalTaxCents      *int64
	TotalTipCents      *int64
	Items              []SalesOrderItem
}

type SalesOrderItem struct {
	CatalogObjectID *string
	SKU             *string
	ItemName        *string
	VariationName   *string
	Quantity        float64
	GrossSalesCents *int64
	DiscountCents   *int64
	NetSalesCents   *int64
}

// ISO-8601 в UTC с миллисекундами
const ISOLayout = "2006-01-02T15:04:05.000Z"

func ISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}
