package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	authConfig "github.com/iurnickita/squaresync/internal/auth/config"
	handlerConfig "github.com/iurnickita/squaresync/internal/handler/config"
	loggerConfig "github.com/iurnickita/squaresync/internal/logger/config"
	"github.com/iurnickita/squaresync/internal/model"
	notifyConfig "github.com/iurnickita/squaresync/internal/notify/config"
	serviceConfig "github.com/iurnickita/squaresync/internal/service/config"
	storeConfig "github.com/iurnickita/squaresync/internal/store/config"
)

type Config struct {
	Handler handlerConfig.Config
	Service serviceConfig.Config
	Auth    authConfig.Config
	Notify  notifyConfig.Config
	Store   storeConfig.Config
	Logger  loggerConfig.Config
}

const (
	defaultServerAddr = ":8080"
	defaultLogLevel   = "info"
	defaultImportDays = 7
	defaultStateTTL   = 10 * time.Minute
	defaultExchange   = "squaresync.reports"
	defaultRoutingKey = "reports.daily"
)

func GetConfig() (Config, error) {
	return load(os.Args[1:], os.Getenv)
}

// load: флаги, затем переменные окружения поверх них
func load(args []string, getenv func(string) string) (Config, error) {
	var cfg Config
	var locationsFile string

	fs := flag.NewFlagSet("squaresync", flag.ContinueOnError)
	fs.StringVar(&cfg.Handler.ServerAddr, "a", defaultServerAddr, "server address")
	fs.IntVar(&cfg.Handler.ImportDays, "days", defaultImportDays, "default import range in days")
	fs.StringVar(&cfg.Store.DBDsn, "d", "", "database DSN")
	fs.StringVar(&cfg.Logger.LogLevel, "l", defaultLogLevel, "log level")
	fs.StringVar(&cfg.Service.Square.Environment, "env", serviceConfig.EnvironmentProduction, "square environment (production|sandbox)")
	fs.StringVar(&locationsFile, "locations", "", "YAML file with tracked locations")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	env := func(key string, target *string) {
		if value := getenv(key); value != "" {
			*target = value
		}
	}

	env("SERVER_ADDRESS", &cfg.Handler.ServerAddr)
	env("DATABASE_URI", &cfg.Store.DBDsn)
	env("LOG_LEVEL", &cfg.Logger.LogLevel)
	env("LOCATIONS_FILE", &locationsFile)

	// Square
	square := &cfg.Service.Square
	env("SQUARE_CLIENT_ID", &square.ClientID)
	env("SQUARE_CLIENT_SECRET", &square.ClientSecret)
	env("SQUARE_REDIRECT_URL", &square.RedirectURL)
	env("SQUARE_ENVIRONMENT", &square.Environment)
	env("SQUARE_BASE_URL", &square.BaseURL)
	env("SQUARE_API_VERSION", &square.APIVersion)
	switch square.Environment {
	case serviceConfig.EnvironmentProduction, serviceConfig.EnvironmentSandbox:
	default:
		return Config{}, fmt.Errorf("unknown SQUARE_ENVIRONMENT %q", square.Environment)
	}
	// 0 - таймаут транспорта по умолчанию
	if value := getenv("SQUARE_TIMEOUT"); value != "" {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("SQUARE_TIMEOUT: %w", err)
		}
		square.Timeout = timeout
	}

	// OAuth
	cfg.Auth.StateTTL = defaultStateTTL
	env("OAUTH_STATE_SECRET", &cfg.Auth.StateSecret)
	if value := getenv("OAUTH_SCOPES"); value != "" {
		cfg.Auth.Scopes = strings.FieldsFunc(value, func(r rune) bool {
			return r == ',' || r == ' '
		})
	}
	cfg.Auth.PersistCredential = true
	if value := getenv("OAUTH_PERSIST_CREDENTIAL"); value != "" {
		persist, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("OAUTH_PERSIST_CREDENTIAL: %w", err)
		}
		cfg.Auth.PersistCredential = persist
	}

	// RabbitMQ
	cfg.Notify.Exchange = defaultExchange
	cfg.Notify.RoutingKey = defaultRoutingKey
	env("RABBITMQ_URL", &cfg.Notify.URL)
	env("RABBITMQ_EXCHANGE", &cfg.Notify.Exchange)
	env("RABBITMQ_ROUTING_KEY", &cfg.Notify.RoutingKey)

	cfg.Service.Locations = model.DefaultLocations
	if locationsFile != "" {
		locations, err := readLocations(locationsFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Service.Locations = locations
	}

	return cfg, nil
}

type locationsDoc struct {
	Locations []model.Location `yaml:"locations"`
}

func readLocations(path string) ([]model.Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locations file: %w", err)
	}

	var file locationsDoc
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse locations file: %w", err)
	}
	if len(file.Locations) == 0 {
		return nil, fmt.Errorf("locations file %s has no locations", path)
	}
	for i, location := range file.Locations {
		if location.ID == "" {
			return nil, fmt.Errorf("locations file %s: location %d has no id", path, i)
		}
	}
	return file.Locations, nil
}
