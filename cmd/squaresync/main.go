package main

import (
	"log"

	"go.uber.org/zap"

	"github.com/iurnickita/squaresync/internal/auth"
	"github.com/iurnickita/squaresync/internal/config"
	"github.com/iurnickita/squaresync/internal/credential"
	"github.com/iurnickita/squaresync/internal/handler"
	"github.com/iurnickita/squaresync/internal/logger"
	"github.com/iurnickita/squaresync/internal/metrics"
	"github.com/iurnickita/squaresync/internal/notify"
	"github.com/iurnickita/squaresync/internal/service"
	"github.com/iurnickita/squaresync/internal/service/squareclient"
	"github.com/iurnickita/squaresync/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}
	defer zaplog.Sync()

	metrics.Init()

	// Без DATABASE_URI сервис работает, но токены не сохраняются
	var st store.Store
	if cfg.Store.DBDsn != "" {
		st, err = store.NewStore(cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()
	} else {
		zaplog.Warn("DATABASE_URI is not set, Square tokens will not be stored")
	}

	notifier, err := notify.NewNotifier(cfg.Notify)
	if err != nil {
		return err
	}
	if notifier != nil {
		defer notifier.Close()
		zaplog.Info("daily reports will be published",
			zap.String("exchange", cfg.Notify.Exchange),
			zap.String("routing_key", cfg.Notify.RoutingKey))
	}

	client := squareclient.NewSquareClient(cfg.Service.Square)
	auth := auth.NewAuth(cfg.Auth, cfg.Service.Square, client, credential.NewCredential(st), zaplog)
	service := service.NewService(cfg.Service, st, client, notifier, zaplog)

	return handler.Serve(cfg.Handler, auth, service, zaplog)
}
