package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

const (
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
)

type Config struct {
	Env                string        `mapstructure:"ENV"`
	Port               string        `mapstructure:"PORT"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
	Source             string        `mapstructure:"SOURCE"`
	UpstreamURL        string        `mapstructure:"UPSTREAM_URL"`
	UpstreamTimeout    time.Duration `mapstructure:"UPSTREAM_TIMEOUT"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	CacheTTL           time.Duration `mapstructure:"CACHE_TTL"`
	APIKey             string        `mapstructure:"API_KEY"`
	CORSAllowed        string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	Timezone           string        `mapstructure:"TIMEZONE"`
	ConversationLimit  int           `mapstructure:"CONVERSATION_LIMIT"`
	MessageLimit       int           `mapstructure:"MESSAGE_LIMIT"`
	SearchDebounce     time.Duration `mapstructure:"SEARCH_DEBOUNCE"`
	BusinessHoursStart int           `mapstructure:"BUSINESS_HOURS_START"`
	BusinessHoursEnd   int           `mapstructure:"BUSINESS_HOURS_END"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SOURCE", SourceHTTP)
	v.SetDefault("UPSTREAM_URL", "http://localhost:8000")
	v.SetDefault("UPSTREAM_TIMEOUT", "30s")
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("TIMEZONE", "America/Sao_Paulo")
	v.SetDefault("CONVERSATION_LIMIT", 200)
	v.SetDefault("MESSAGE_LIMIT", 500)
	v.SetDefault("SEARCH_DEBOUNCE", "300ms")
	v.SetDefault("BUSINESS_HOURS_START", 8)
	v.SetDefault("BUSINESS_HOURS_END", 18)
	// Keys only present as defaults or env vars must be bound to be unmarshalled.
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "API_KEY"} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Source = strings.ToLower(strings.TrimSpace(cfg.Source))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Source {
	case SourceHTTP:
		if c.UpstreamURL == "" {
			return fmt.Errorf("UPSTREAM_URL is required when SOURCE=%s", SourceHTTP)
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when SOURCE=%s", SourcePostgres)
		}
	default:
		return fmt.Errorf("unknown SOURCE %q", c.Source)
	}
	if c.BusinessHoursStart < 0 || c.BusinessHoursEnd > 24 || c.BusinessHoursStart >= c.BusinessHoursEnd {
		return fmt.Errorf("invalid business hours %d-%d", c.BusinessHoursStart, c.BusinessHoursEnd)
	}
	return nil
}

// Location resolves TIMEZONE, falling back to UTC when the zone is unknown.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
