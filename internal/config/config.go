// Package config reads the portal's configuration from the environment
// and an optional portal.yaml file.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Preference store backends
const (
	PreferencesFile     = "file"
	PreferencesPostgres = "postgres"
	PreferencesMongo    = "mongo"
)

// Config holds application configuration
type Config struct {
	Port               string   `mapstructure:"port"`
	BackendURL         string   `mapstructure:"medihope_api_url"`
	PreferencesBackend string   `mapstructure:"preferences_backend"`
	PreferencesPath    string   `mapstructure:"preferences_path"`
	DatabaseURL        string   `mapstructure:"database_url"`
	MongoURI           string   `mapstructure:"mongo_uri"`
	MongoDatabase      string   `mapstructure:"mongo_database"`
	KafkaBrokers       []string `mapstructure:"-"`
	OTLPEndpoint       string   `mapstructure:"otlp_endpoint"`
	Environment        string   `mapstructure:"environment"`
	LogLevel           string   `mapstructure:"log_level"`
}

// Load reads configuration. Environment variables take precedence over
// the file; both fall back to defaults.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("portal")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/medihope")

	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.KafkaBrokers = splitList(v.GetString("kafka_brokers"))

	if err := validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("medihope_api_url", "http://localhost:2004")
	v.SetDefault("preferences_backend", PreferencesFile)
	v.SetDefault("preferences_path", "medihope-preferences.json")
	v.SetDefault("database_url", "")
	v.SetDefault("mongo_uri", "")
	v.SetDefault("mongo_database", "medihope")
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
}

func validate(cfg Config) error {
	switch cfg.PreferencesBackend {
	case PreferencesFile:
	case PreferencesPostgres:
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when PREFERENCES_BACKEND=%s", PreferencesPostgres)
		}
	case PreferencesMongo:
		if cfg.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when PREFERENCES_BACKEND=%s", PreferencesMongo)
		}
	default:
		return fmt.Errorf("unknown PREFERENCES_BACKEND %q", cfg.PreferencesBackend)
	}
	if cfg.BackendURL == "" {
		return errors.New("MEDIHOPE_API_URL is required")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
