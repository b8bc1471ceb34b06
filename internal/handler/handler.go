package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/iurnickita/squaresync/internal/auth"
	"github.com/iurnickita/squaresync/internal/credential"
	"github.com/iurnickita/squaresync/internal/gzip"
	"github.com/iurnickita/squaresync/internal/handler/config"
	"github.com/iurnickita/squaresync/internal/logger"
	"github.com/iurnickita/squaresync/internal/metrics"
	"github.com/iurnickita/squaresync/internal/report"
	"github.com/iurnickita/squaresync/internal/service"
	"github.com/iurnickita/squaresync/internal/service/squareclient"
)

const defaultImportDays = 7

func Serve(cfg config.Config, auth auth.Auth, service service.Service, zaplog *zap.Logger) error {
	h := newHandler(cfg, auth, service, zaplog)
	router := h.newRouter()

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: router,
	}

	zaplog.Info("starting server", zap.String("addr", cfg.ServerAddr))
	return srv.ListenAndServe()
}

type handler struct {
	auth       auth.Auth
	service    service.Service
	importDays int
	zaplog     *zap.Logger
}

func newHandler(cfg config.Config, auth auth.Auth, service service.Service, zaplog *zap.Logger) *handler {
	importDays := cfg.ImportDays
	if importDays <= 0 {
		importDays = defaultImportDays
	}
	return &handler{
		auth:       auth,
		service:    service,
		importDays: importDays,
		zaplog:     zaplog,
	}
}

func (h *handler) newRouter() chi.Router {
	router := chi.NewRouter()
	router.Get("/api/auth/square/connect", h.mdlw(h.auth.Connect))
	router.Get("/api/auth/square/callback", h.mdlw(h.auth.Callback))
	router.Post("/api/auth/square/refresh", h.mdlw(h.PostRefresh))

	router.Get("/api/square/sales-summary", h.mdlw(h.GetSalesSummary))
	router.Get("/api/square/daily-report", h.mdlw(h.GetDailyReport))
	router.Get("/api/square/import-sales", h.mdlw(h.GetImportSales))
	router.Get("/api/square/test", h.mdlw(h.GetTest))

	router.Method(http.MethodGet, "/metrics", metrics.Handler())
	return router
}

func (h *handler) mdlw(fn http.HandlerFunc) http.HandlerFunc {
	return gzip.GzipMiddleware(logger.RequestLogMdlw(logger.RecoverMdlw(fn, h.zaplog), h.zaplog))
}

func (h *handler) GetSalesSummary(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format != "" && format != "json" && format != "xlsx" && format != "pdf" {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": `Invalid "format" parameter, must be json, xlsx or pdf`,
		})
		return
	}

	summary, err := h.service.SalesSummary(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	switch format {
	case "xlsx":
		h.writeFile(w, summary, report.BuildXLSX, report.ContentTypeXLSX, "sales-summary.xlsx")
	case "pdf":
		h.writeFile(w, summary, report.BuildPDF, report.ContentTypePDF, "sales-summary.pdf")
	default:
		h.writeJSON(w, http.StatusOK, summary)
	}
}

func (h *handler) GetDailyReport(w http.ResponseWriter, r *http.Request) {
	daily, err := h.service.DailyReport(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, daily)
}

func (h *handler) GetImportSales(w http.ResponseWriter, r *http.Request) {
	days := h.importDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": `Invalid "days" parameter, must be positive number`,
			})
			return
		}
		days = parsed
	}

	result, err := h.service.ImportSales(r.Context(), days)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handler) GetTest(w http.ResponseWriter, r *http.Request) {
	body, err := h.service.MerchantCheck(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	refreshed, err := h.service.RefreshCredential(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Square token refreshed",
		"merchant_id": refreshed.MerchantID,
		"expires_at":  refreshed.ExpiresAt,
	})
}

// writeError - единственное место, где ошибки становятся HTTP-ответами
func (h *handler) writeError(w http.ResponseWriter, err error) {
	var upstream *squareclient.UpstreamError
	switch {
	case errors.As(err, &upstream):
		status := upstream.Status
		if status < http.StatusBadRequest {
			// ошибки в теле ответа 200
			status = http.StatusBadGateway
		}
		body := map[string]any{
			"error":  fmt.Sprintf("Square %s API error", upstream.API),
			"status": upstream.Status,
			"body":   upstream.Body,
		}
		if upstream.LocationID != "" {
			body["location_id"] = upstream.LocationID
		}
		h.writeJSON(w, status, body)
	case errors.Is(err, service.ErrInvalidInput):
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	case errors.Is(err, service.ErrMissingConfiguration):
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Missing Square configuration",
			"details": err.Error(),
		})
	case errors.Is(err, credential.ErrNotFound), errors.Is(err, credential.ErrStoreUnavailable):
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "No Square token found",
			"details": err.Error(),
		})
	default:
		h.zaplog.Error("unexpected error", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Unexpected server error",
			"details": err.Error(),
		})
	}
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, body any) {
	responseJSON, err := json.Marshal(body)
	if err != nil {
		h.zaplog.Error("failed to encode response", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(responseJSON)
}

func (h *handler) writeFile(w http.ResponseWriter, summary report.Summary, build func(report.Summary) ([]byte, error), contentType, filename string) {
	data, err := build(summary)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
