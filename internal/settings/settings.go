package settings

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings holds the daemon's process-level configuration. The provider
// catalogue itself lives in its own TOML document (internal/catalog); these
// are only the knobs of the gateway process around it.
type Settings struct {
	Server  ServerSettings  `mapstructure:"server"`
	Gateway GatewaySettings `mapstructure:"gateway"`
	History HistorySettings `mapstructure:"history"`
}

type ServerSettings struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

type GatewaySettings struct {
	// ConfigFile overrides the platform-default catalogue location.
	ConfigFile string `mapstructure:"config_file"`
	// ConnectTimeout bounds the HTTP connect phase of upstream requests.
	// There is deliberately no overall streaming timeout.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type HistorySettings struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// Load reads settings from file or environment variables.
func Load() (*Settings, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("litreview")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("server.port", "8090")
	v.SetDefault("server.env", "development")
	v.SetDefault("gateway.config_file", "")
	v.SetDefault("gateway.connect_timeout", 30*time.Second)
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.dsn", "file:litreview.db?cache=shared&mode=rwc&_journal_mode=WAL&_busy_timeout=5000")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading settings file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unable to decode settings: %w", err)
	}

	return &s, nil
}
