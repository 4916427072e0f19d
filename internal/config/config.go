package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Budget   BudgetConfig
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// BudgetConfig holds engine defaults.
type BudgetConfig struct {
	DefaultUserName string
	CurrencySymbol  string
}

// Load reads configuration from file and env. Env var overrides use prefix BUDGET_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "budget-engine", "budget.db"))
	v.SetDefault("budget.default_user_name", "default")
	v.SetDefault("budget.currency_symbol", "$")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("BUDGET_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "budget-engine"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("BUDGET")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Path returns the effective config file location: $BUDGET_CONFIG if
// set, the XDG-style default otherwise.
func Path() string {
	if p := os.Getenv("BUDGET_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "budget-engine", "config.toml")
}

// Save writes the provided config to disk, creating the config directory if needed.
func Save(cfg Config) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("server.port", cfg.Server.Port)
	v.Set("server.allowed_origins", cfg.Server.AllowedOrigins)
	v.Set("database.path", cfg.Database.Path)
	v.Set("budget.default_user_name", cfg.Budget.DefaultUserName)
	v.Set("budget.currency_symbol", cfg.Budget.CurrencySymbol)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
