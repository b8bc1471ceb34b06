package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/squaresync/internal/credential"
	"github.com/iurnickita/squaresync/internal/metrics"
	"github.com/iurnickita/squaresync/internal/model"
	"github.com/iurnickita/squaresync/internal/notify"
	"github.com/iurnickita/squaresync/internal/report"
	"github.com/iurnickita/squaresync/internal/service/config"
	"github.com/iurnickita/squaresync/internal/service/squareclient"
	"github.com/iurnickita/squaresync/internal/store"
)

type Service interface {
	SalesSummary(ctx context.Context) (report.Summary, error)
	DailyReport(ctx context.Context) (DailyReport, error)
	ImportSales(ctx context.Context, days int) (ImportResult, error)
	MerchantCheck(ctx context.Context) (json.RawMessage, error)
	RefreshCredential(ctx context.Context) (model.Credential, error)
}

var (
	ErrMissingConfiguration = errors.New("missing configuration")
	ErrInvalidInput         = errors.New("invalid input")
)

const (
	reportKindSummary = "sales_summary"
	reportKindDaily   = "daily_report"
	reportKindImport  = "import_sales"
)

type DailyReport struct {
	Range     report.RangeJSON `json:"range"`
	Report    string           `json:"report"`
	Published *bool            `json:"published,omitempty"`
}

type ImportResult struct {
	OK             bool             `json:"ok"`
	ImportedOrders int              `json:"imported_orders"`
	ImportedItems  int              `json:"imported_items"`
	Range          report.RangeJSON `json:"range"`
	From           string           `json:"from"`
	To             string           `json:"to"`
	Days           int              `json:"days"`
}

type Option func(*service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

type service struct {
	cfg        config.Config
	store      store.Store
	credential credential.Credential
	square     squareclient.SquareClient
	notifier   notify.Notifier
	zaplog     *zap.Logger
	now        func() time.Time
}

// NewService принимает nil store и nil notifier, если они не настроены
func NewService(cfg config.Config, store store.Store, square squareclient.SquareClient, notifier notify.Notifier, zaplog *zap.Logger, opts ...Option) Service {
	if len(cfg.Locations) == 0 {
		cfg.Locations = model.DefaultLocations
	}

	service := service{
		cfg:        cfg,
		store:      store,
		credential: credential.NewCredential(store),
		square:     square,
		notifier:   notifier,
		zaplog:     zaplog,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&service)
	}

	return &service
}

func (service *service) last24Hours() model.Range {
	end := service.now().UTC()
	return model.Range{
		Type:  model.RangeLast24Hours,
		Begin: end.Add(-24 * time.Hour),
		End:   end,
	}
}

// collectStats: токен -> платежи по каждой точке по очереди -> агрегирование
func (service *service) collectStats(ctx context.Context, rng model.Range) ([]model.LocationStats, error) {
	row, err := service.credential.Latest(ctx)
	if err != nil {
		return nil, err
	}

	perLocation := make([]model.LocationStats, 0, len(service.cfg.Locations))
	for _, location := range service.cfg.Locations {
		payments := service.square.Payments(ctx, row.AccessToken, location.ID, rng.Begin, rng.End)
		stats, err := report.Aggregate(location.ID, payments)
		if err != nil {
			service.logUpstream(err)
			return nil, err
		}
		perLocation = append(perLocation, stats)
	}
	return perLocation, nil
}

func (service *service) SalesSummary(ctx context.Context) (report.Summary, error) {
	start := time.Now()
	rng := service.last24Hours()

	perLocation, err := service.collectStats(ctx, rng)
	metrics.ObserveReport(reportKindSummary, metrics.Result(err), time.Since(start))
	if err != nil {
		return report.Summary{}, err
	}

	return report.NewSummary(rng, perLocation), nil
}

func (service *service) DailyReport(ctx context.Context) (DailyReport, error) {
	start := time.Now()
	rng := service.last24Hours()

	perLocation, err := service.collectStats(ctx, rng)
	metrics.ObserveReport(reportKindDaily, metrics.Result(err), time.Since(start))
	if err != nil {
		return DailyReport{}, err
	}

	daily := DailyReport{
		Range:  report.NewRangeJSON(rng),
		Report: report.RenderText(rng, perLocation, service.cfg.Locations),
	}

	// Отправка отчета в брокер, если настроен
	if service.notifier != nil {
		published := true
		err = service.notifier.PublishDailyReport(ctx, notify.DailyReportMessage{
			RangeType: daily.Range.Type,
			BeginISO:  daily.Range.BeginISO,
			EndISO:    daily.Range.EndISO,
			Report:    daily.Report,
		})
		if err != nil {
			service.zaplog.Error("failed to publish daily report", zap.Error(err))
			published = false
		}
		daily.Published = &published
	}

	return daily, nil
}

func (service *service) ImportSales(ctx context.Context, days int) (ImportResult, error) {
	if days <= 0 {
		return ImportResult{}, fmt.Errorf("%w: days must be positive, got %d", ErrInvalidInput, days)
	}

	row, err := service.credential.Latest(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	start := time.Now()
	rng := model.Range{Type: model.RangeLastNDays, End: service.now().UTC()}
	rng.Begin = rng.End.AddDate(0, 0, -days)
	begin, end := rng.Begin, rng.End

	locationIDs := make([]string, 0, len(service.cfg.Locations))
	for _, location := range service.cfg.Locations {
		locationIDs = append(locationIDs, location.ID)
	}

	result := ImportResult{
		OK:    true,
		Range: report.NewRangeJSON(rng),
		From:  model.ISO(begin),
		To:    model.ISO(end),
		Days:  days,
	}

	query := squareclient.OrdersQuery{LocationIDs: locationIDs, Begin: begin, End: end}
	for order, err := range service.square.SearchOrders(ctx, row.AccessToken, query) {
		if err != nil {
			service.logUpstream(err)
			metrics.ObserveReport(reportKindImport, metrics.ResultError, time.Since(start))
			return ImportResult{}, err
		}
		if order.SquareOrderID == "" {
			continue
		}
		order.MerchantID = row.MerchantID

		// Ошибка записи одного заказа не прерывает импорт
		id, err := service.store.SalesOrderUpsert(ctx, order)
		if err != nil {
			service.zaplog.Error("failed to upsert sales order",
				zap.String("square_order_id", order.SquareOrderID),
				zap.Error(err))
			metrics.IncSkippedOrder()
			continue
		}
		result.ImportedOrders++

		err = service.store.SalesOrderItemsReplace(ctx, id, order.Items)
		if err != nil {
			service.zaplog.Error("failed to replace sales order items",
				zap.String("square_order_id", order.SquareOrderID),
				zap.Error(err))
			continue
		}
		result.ImportedItems += len(order.Items)
	}

	metrics.AddImported(result.ImportedOrders, result.ImportedItems)
	metrics.ObserveReport(reportKindImport, metrics.ResultSuccess, time.Since(start))
	return result, nil
}

func (service *service) MerchantCheck(ctx context.Context) (json.RawMessage, error) {
	row, err := service.credential.Latest(ctx)
	if err != nil {
		return nil, err
	}

	body, err := service.square.Merchant(ctx, row.AccessToken)
	if err != nil {
		service.logUpstream(err)
		return nil, err
	}
	return body, nil
}

func (service *service) RefreshCredential(ctx context.Context) (model.Credential, error) {
	if service.cfg.Square.ClientID == "" || service.cfg.Square.ClientSecret == "" {
		return model.Credential{}, ErrMissingConfiguration
	}

	row, err := service.credential.Latest(ctx)
	if err != nil {
		return model.Credential{}, err
	}
	if row.RefreshToken == "" {
		return model.Credential{}, fmt.Errorf("%w: stored credential has no refresh token", credential.ErrNotFound)
	}

	token, err := service.square.ObtainToken(ctx, squareclient.TokenRequest{
		ClientID:     service.cfg.Square.ClientID,
		ClientSecret: service.cfg.Square.ClientSecret,
		RefreshToken: row.RefreshToken,
		GrantType:    squareclient.GrantRefreshToken,
	})
	if err != nil {
		service.logUpstream(err)
		return model.Credential{}, err
	}

	refreshed := token.Credential()
	if refreshed.MerchantID == "" {
		refreshed.MerchantID = row.MerchantID
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = row.RefreshToken
	}
	if err := service.credential.Save(ctx, refreshed); err != nil {
		return model.Credential{}, fmt.Errorf("%w: %w", credential.ErrStoreUnavailable, err)
	}
	return refreshed, nil
}

func (service *service) logUpstream(err error) {
	var upstream *squareclient.UpstreamError
	if errors.As(err, &upstream) {
		service.zaplog.Warn("square API error",
			zap.String("api", upstream.API),
			zap.Int("status", upstream.Status),
			zap.String("location_id", upstream.LocationID),
			zap.ByteString("body", upstream.Body))
		return
	}
	service.zaplog.Error("square request failed", zap.Error(err))
}
