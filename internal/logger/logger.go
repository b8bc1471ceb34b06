package logger

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/squaresync/internal/logger/config"
)

func NewZapLog(cfg config.Config) (*zap.Logger, error) {
	level := cfg.LogLevel
	if level == "" {
		level = "info"
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	zapcfg := zap.NewProductionConfig()
	zapcfg.Level = lvl
	return zapcfg.Build()
}

// RequestLogMdlw логирует входящий запрос и итог ответа.
// Тела не пишутся: в ответах callback есть токены.
func RequestLogMdlw(h http.HandlerFunc, zaplog *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		zaplog.Info("got incoming HTTP request",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
		)

		wl := newResponseWriterLogger(w)
		start := time.Now()
		h(wl, r)

		zaplog.Info("send HTTP response",
			zap.String("path", r.URL.Path),
			zap.Int("code", wl.statusCode),
			zap.Int("length", wl.length),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// RecoverMdlw превращает панику обработчика в ответ 500
func RecoverMdlw(h http.HandlerFunc, zaplog *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			zaplog.Error("handler panic",
				zap.String("path", r.URL.Path),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{
				"error":   "Unexpected server error",
				"details": fmt.Sprint(rec),
			})
		}()

		h(w, r)
	}
}

type responseWriterLogger struct {
	http.ResponseWriter
	statusCode int
	length     int
}

func newResponseWriterLogger(w http.ResponseWriter) *responseWriterLogger {
	return &responseWriterLogger{ResponseWriter: w, statusCode: http.StatusOK}
}

func (wl *responseWriterLogger) WriteHeader(code int) {
	wl.statusCode = code
	wl.ResponseWriter.WriteHeader(code)
}

func (wl *responseWriterLogger) Write(b []byte) (int, error) {
	n, err := wl.ResponseWriter.Write(b)
	wl.length += n
	return n, err
}
