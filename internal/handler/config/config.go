package config

type Config struct {
	ServerAddr string
	// значение days по умолчанию для импорта продаж
	ImportDays int
}
