// Package config содержит логику чтения конфигурации торгового автомата.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mmeshcher/vending-machine/internal/model"
)

const defaultRunAddress = "localhost:8080"

// ErrInvalidConfig возвращается при недопустимых значениях параметров.
var ErrInvalidConfig = errors.New("invalid config")

// Config содержит параметры конфигурации торгового автомата.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	OperatorKey string `env:"OPERATOR_KEY"`

	Catalog            map[string]int `env:"CATALOG" envSeparator:"," envKeyValSeparator:":" envDefault:"cola:100,chips:50,candy:65"`
	BankSeed           map[string]int `env:"BANK_SEED" envSeparator:"," envKeyValSeparator:":" envDefault:"nickel:20,dime:20,quarter:20"`
	InitialStock       int            `env:"INITIAL_STOCK" envDefault:"10"`
	RecheckExactChange bool           `env:"RECHECK_EXACT_CHANGE" envDefault:"false"`
	FlushInterval      time.Duration  `env:"FLUSH_INTERVAL" envDefault:"5s"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envOperatorKey := cfg.OperatorKey

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.OperatorKey, "k", "", "operator key")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envOperatorKey != "" {
		cfg.OperatorKey = envOperatorKey
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}

	if cfg.InitialStock < 0 {
		return nil, fmt.Errorf("%w: INITIAL_STOCK must not be negative", ErrInvalidConfig)
	}
	if cfg.FlushInterval <= 0 {
		return nil, fmt.Errorf("%w: FLUSH_INTERVAL must be positive", ErrInvalidConfig)
	}
	if len(cfg.Catalog) == 0 {
		return nil, fmt.Errorf("%w: CATALOG is empty", ErrInvalidConfig)
	}

	return cfg, nil
}

// Prices возвращает цены каталога в центах.
func (c *Config) Prices() map[model.ProductID]model.Cents {
	out := make(map[model.ProductID]model.Cents, len(c.Catalog))
	for id, price := range c.Catalog {
		out[model.ProductID(id)] = model.Cents(price)
	}
	return out
}

// Seed возвращает начальное содержимое резерва монет.
func (c *Config) Seed() map[model.Coin]int {
	out := make(map[model.Coin]int, len(c.BankSeed))
	for coin, n := range c.BankSeed {
		out[model.Coin(coin)] = n
	}
	return out
}
