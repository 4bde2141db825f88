package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures configuration for both the API server and the command line client.
type Config struct {
	HTTPPort        int           `yaml:"http_port"`
	DatabaseDriver  string        `yaml:"database_driver"`
	DatabaseDSN     string        `yaml:"database_dsn"`
	SessionSecret   string        `yaml:"session_secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	StatsTimezone   string        `yaml:"stats_timezone"`

	OracleProvider    string        `yaml:"oracle_provider"`
	OpenRouterAPIKey  string        `yaml:"openrouter_api_key"`
	OpenRouterBaseURL string        `yaml:"openrouter_base_url"`
	OpenRouterModel   string        `yaml:"openrouter_model"`
	GeminiAPIKey      string        `yaml:"gemini_api_key"`
	GeminiModel       string        `yaml:"gemini_model"`
	OracleTimeout     time.Duration `yaml:"oracle_timeout"`
	SiteURL           string        `yaml:"site_url"`
	SiteName          string        `yaml:"site_name"`

	APIURL      string        `yaml:"api_url"`
	CacheURL    string        `yaml:"cache_url"`
	ProfileWait time.Duration `yaml:"profile_wait"`

	LogFormat string `yaml:"log_format"`
	LogLevel  string `yaml:"log_level"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

// Defaults returns the configuration used when neither a file nor the environment sets a value.
func Defaults() Config {
	return Config{
		HTTPPort:        8080,
		DatabaseDriver:  DriverSQLite,
		DatabaseDSN:     "file:genmode.db?_pragma=foreign_keys(1)",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 30 * 24 * time.Hour,
		StatsTimezone:   "Local",
		OracleProvider:  ProviderOpenRouter,
		OracleTimeout:   2 * time.Minute,
		SiteURL:         "https://genmode.com",
		SiteName:        "GenMode",
		APIURL:          "http://localhost:8080",
		ProfileWait:     time.Second,
		LogFormat:       "json",
		LogLevel:        "info",
	}
}

// Load reads the optional YAML file named by GENMODE_CONFIG_FILE and then applies
// GENMODE_* environment variables on top of it.
func Load() (Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("GENMODE_CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	invalid := make([]string, 0, 4)

	if portValue := strings.TrimSpace(os.Getenv("GENMODE_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "GENMODE_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if driver := strings.ToLower(strings.TrimSpace(os.Getenv("GENMODE_DATABASE_DRIVER"))); driver != "" {
		cfg.DatabaseDriver = driver
	}
	if cfg.DatabaseDriver != DriverSQLite && cfg.DatabaseDriver != DriverPostgres {
		invalid = append(invalid, "GENMODE_DATABASE_DRIVER")
	}

	setString(&cfg.DatabaseDSN, "GENMODE_DATABASE_DSN")
	setString(&cfg.SessionSecret, "GENMODE_SESSION_SECRET")
	setString(&cfg.StatsTimezone, "GENMODE_STATS_TIMEZONE")
	setString(&cfg.OpenRouterAPIKey, "GENMODE_OPENROUTER_API_KEY")
	setString(&cfg.OpenRouterBaseURL, "GENMODE_OPENROUTER_BASE_URL")
	setString(&cfg.OpenRouterModel, "GENMODE_OPENROUTER_MODEL")
	setString(&cfg.GeminiAPIKey, "GENMODE_GEMINI_API_KEY")
	setString(&cfg.GeminiModel, "GENMODE_GEMINI_MODEL")
	setString(&cfg.SiteURL, "GENMODE_SITE_URL")
	setString(&cfg.SiteName, "GENMODE_SITE_NAME")
	setString(&cfg.APIURL, "GENMODE_API_URL")
	setString(&cfg.CacheURL, "GENMODE_CACHE_URL")
	setString(&cfg.LogFormat, "GENMODE_LOG_FORMAT")
	setString(&cfg.LogLevel, "GENMODE_LOG_LEVEL")

	if provider := strings.ToLower(strings.TrimSpace(os.Getenv("GENMODE_ORACLE_PROVIDER"))); provider != "" {
		cfg.OracleProvider = provider
	}
	if cfg.OracleProvider != ProviderOpenRouter && cfg.OracleProvider != ProviderGemini {
		invalid = append(invalid, "GENMODE_ORACLE_PROVIDER")
	}

	for key, target := range map[string]*time.Duration{
		"GENMODE_ACCESS_TOKEN_TTL":  &cfg.AccessTokenTTL,
		"GENMODE_REFRESH_TOKEN_TTL": &cfg.RefreshTokenTTL,
		"GENMODE_ORACLE_TIMEOUT":    &cfg.OracleTimeout,
	} {
		if !setDuration(target, key, false) {
			invalid = append(invalid, key)
		}
	}
	if !setDuration(&cfg.ProfileWait, "GENMODE_PROFILE_WAIT", true) {
		invalid = append(invalid, "GENMODE_PROFILE_WAIT")
	}

	if _, err := cfg.Location(); err != nil {
		invalid = append(invalid, "GENMODE_STATS_TIMEZONE")
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment values: %s", strings.Join(sortedUnique(invalid), ", "))
	}

	return cfg, nil
}

// RequireServer reports the settings `serve` cannot run without.
func (c Config) RequireServer() error {
	missing := make([]string, 0, 2)
	if strings.TrimSpace(c.SessionSecret) == "" {
		missing = append(missing, "GENMODE_SESSION_SECRET")
	}
	switch c.OracleProvider {
	case ProviderGemini:
		if strings.TrimSpace(c.GeminiAPIKey) == "" {
			missing = append(missing, "GENMODE_GEMINI_API_KEY")
		}
	default:
		if strings.TrimSpace(c.OpenRouterAPIKey) == "" {
			missing = append(missing, "GENMODE_OPENROUTER_API_KEY")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Location resolves StatsTimezone.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.StatsTimezone)
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func setString(target *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*target = value
	}
}

func setDuration(target *time.Duration, key string, allowZero bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return true
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return false
	}
	*target = d
	return true
}

func sortedUnique(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
