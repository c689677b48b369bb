// Package config loads runtime configuration from environment variables
// and an optional shelfkeeper.yaml in the working directory.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type (
	Config struct {
		Storage
		Loans
	}

	Storage struct {
		// Backend selects the blob store: "badger" or "fs".
		Backend string
		// DataDir holds the store's files.
		DataDir string
		// SeedPath optionally points at a bundled seed database file.
		SeedPath string
	}

	Loans struct {
		// PeriodDays is the default loan length used to derive due dates.
		PeriodDays int
	}
)

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("shelfkeeper")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("storage.backend", "badger")
	v.SetDefault("storage.datadir", ".shelfkeeper")
	v.SetDefault("storage.seedpath", "")
	v.SetDefault("loans.perioddays", 14)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Storage: Storage{
			Backend:  v.GetString("storage.backend"),
			DataDir:  v.GetString("storage.datadir"),
			SeedPath: v.GetString("storage.seedpath"),
		},
		Loans: Loans{
			PeriodDays: v.GetInt("loans.perioddays"),
		},
	}
	switch cfg.Storage.Backend {
	case "badger", "fs":
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if cfg.Loans.PeriodDays < 1 {
		return nil, fmt.Errorf("loan period must be at least 1 day, got %d", cfg.Loans.PeriodDays)
	}
	return cfg, nil
}
