package config

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
}
