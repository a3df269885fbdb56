// Package config loads process configuration from struct defaults, an
// optional YAML file, a .env file and the environment, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces environment overrides. Nesting uses a double
// underscore: CONTINUUM_DATABASE__URL sets database.url.
const EnvPrefix = "CONTINUUM_"

// ConfigPathEnvVar names a YAML file to load.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are tried when neither --config nor CONFIG_PATH is set.
var DefaultConfigPaths = []string{"continuum.yaml", "continuum.yml", "/etc/continuum/config.yaml"}

// envAliases maps the unprefixed variable names older deployments use.
var envAliases = map[string]string{
	"ADMIN_SECRET": "auth.admin_secret",
	"JWT_SECRET":   "auth.jwt_secret",
	"DATABASE_URL": "database.url",
	"REDIS_URL":    "redis.url",
	"GITHUB_TOKEN": "github.token",
	"API_URL":      "console.api_url",
	"LOG_LEVEL":    "log.level",
	"LOG_FORMAT":   "log.format",
	"PORT":         "server.port",
}

// sliceKeys hold comma separated lists when set from the environment
var sliceKeys = []string{"cors.origins"}

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Console   ConsoleConfig   `koanf:"console"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Auth      AuthConfig      `koanf:"auth"`
	GitHub    GitHubConfig    `koanf:"github"`
	Sync      SyncConfig      `koanf:"sync"`
	HTTP      HTTPConfig      `koanf:"http"`
	Log       LogConfig       `koanf:"log"`
	CORS      CORSConfig      `koanf:"cors"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`
}

// ConsoleConfig configures the admin console backend.
type ConsoleConfig struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port" validate:"min=1,max=65535"`
	APIURL       string `koanf:"api_url" validate:"omitempty,url"`
	CookieSecure bool   `koanf:"cookie_secure"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

// RedisConfig is optional; without a URL sessions and locks stay in process.
type RedisConfig struct {
	URL string `koanf:"url"`
}

type AuthConfig struct {
	AdminSecret string        `koanf:"admin_secret"`
	JWTSecret   string        `koanf:"jwt_secret"`
	SessionTTL  time.Duration `koanf:"session_ttl" validate:"min=1m"`
}

type GitHubConfig struct {
	Token   string `koanf:"token"`
	BaseURL string `koanf:"base_url" validate:"url"`
}

type SyncConfig struct {
	LockTTL    time.Duration `koanf:"lock_ttl" validate:"min=1s"`
	MaxSamples int           `koanf:"max_samples" validate:"min=1,max=500"`
	// Interval enables periodic syncs of active sources. Zero disables them.
	Interval   time.Duration `koanf:"interval" validate:"min=0"`
}

// HTTPConfig tunes outbound requests made by ingesters and the console.
type HTTPConfig struct {
	Timeout time.Duration `koanf:"timeout" validate:"min=1s"`
	Retries uint          `koanf:"retries" validate:"min=1,max=10"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

type CORSConfig struct {
	Origins []string `koanf:"origins"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests" validate:"min=1"`
	Window   time.Duration `koanf:"window" validate:"min=1s"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Host: "0.0.0.0", Port: 8000},
		Console: ConsoleConfig{Host: "0.0.0.0", Port: 3000, APIURL: "http://localhost:8000", CookieSecure: true},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: time.Minute,
		},
		Auth:      AuthConfig{SessionTTL: 7 * 24 * time.Hour},
		GitHub:    GitHubConfig{BaseURL: "https://api.github.com"},
		Sync:      SyncConfig{LockTTL: 15 * time.Minute, MaxSamples: 20},
		HTTP:      HTTPConfig{Timeout: 30 * time.Second, Retries: 3},
		Log:       LogConfig{Level: "info", Format: "json"},
		CORS:      CORSConfig{Origins: []string{"*"}},
		RateLimit: RateLimitConfig{Requests: 100, Window: time.Minute},
	}
}

// Load builds the configuration. path overrides the YAML file lookup.
func Load(path string) (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", aliasKey), nil); err != nil {
		return nil, fmt.Errorf("load environment aliases: %w", err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", prefixedKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if err := splitSliceKeys(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// aliasKey maps unprefixed variables; an empty result makes koanf skip the key.
func aliasKey(key string) string {
	return envAliases[key]
}

// prefixedKey turns CONTINUUM_AUTH__ADMIN_SECRET into auth.admin_secret.
func prefixedKey(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

func splitSliceKeys(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		s, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(key, parts); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the constraints every command shares.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	return nil
}

// ValidateAPI checks what the API server needs on top of Validate.
func (c *Config) ValidateAPI() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "database.url")
	}
	if c.Auth.AdminSecret == "" {
		missing = append(missing, "auth.admin_secret")
	}
	return missingKeys(missing)
}

// ValidateConsole checks what the console backend needs on top of Validate.
func (c *Config) ValidateConsole() error {
	var missing []string
	if c.Console.APIURL == "" {
		missing = append(missing, "console.api_url")
	}
	if c.Auth.AdminSecret == "" {
		missing = append(missing, "auth.admin_secret")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "auth.jwt_secret")
	}
	if err := missingKeys(missing); err != nil {
		return err
	}
	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 characters")
	}
	return nil
}

func missingKeys(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return fmt.Errorf("missing required configuration: %s", strings.Join(keys, ", "))
}

// ServerAddr is the API listen address.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ConsoleAddr is the console listen address.
func (c *Config) ConsoleAddr() string {
	return fmt.Sprintf("%s:%d", c.Console.Host, c.Console.Port)
}
