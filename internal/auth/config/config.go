package config

import "time"

type Config struct {
	Scopes            []string
	StateSecret       string
	StateTTL          time.Duration
	PersistCredential bool
}
