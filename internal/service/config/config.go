package config

import (
	"time"

	"github.com/iurnickita/squaresync/internal/model"
)

const (
	EnvironmentSandbox    = "sandbox"
	EnvironmentProduction = "production"
)

type SquareConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Environment  string
	BaseURL      string
	APIVersion   string
	Timeout      time.Duration
}

type Config struct {
	Square    SquareConfig
	Locations []model.Location
}
