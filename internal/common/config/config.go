// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	BackOffice BackOfficeConfig `mapstructure:"backoffice"`
	Geo        GeoConfig        `mapstructure:"geo"`
	Engagement EngagementConfig `mapstructure:"engagement"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	LogIndex   string   `mapstructure:"log_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BackOfficeConfig holds the endpoints the storefront bootstrap data is
// fetched from (engagement settings, notification types, name list).
type BackOfficeConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// GeoConfig holds the geolocation collaborator endpoints. All of them are
// optional at runtime: a missing or failing endpoint degrades to nulls.
type GeoConfig struct {
	LookupURL     string `mapstructure:"lookup_url"`
	RegistryURL   string `mapstructure:"registry_url"`
	CitySearchURL string `mapstructure:"city_search_url"`
	DefaultCity   string `mapstructure:"default_city"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
}

// EngagementConfig holds the scheduler defaults used when the back-office
// settings fetch is unavailable or a field is absent.
type EngagementConfig struct {
	FirstDelayMs       int    `mapstructure:"first_delay_ms"`
	IntervalMs         int    `mapstructure:"interval_ms"`
	Order              string `mapstructure:"order"`
	MaxPerSession      int    `mapstructure:"max_per_session"`
	CitySearchRadiusKm int    `mapstructure:"city_search_radius_km"`
	DwellMs            int    `mapstructure:"dwell_ms"`
	DefaultName        string `mapstructure:"default_name"`
	SessionTTLHours    int    `mapstructure:"session_ttl_hours"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
