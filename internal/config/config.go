package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr              string
		CORSOrigins       []string      `mapstructure:"cors_origins"`
		TrustedProxies    []string      `mapstructure:"trusted_proxies"`
		ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
		ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	}
	Database struct {
		Driver       string
		Path         string
		DSN          string
		MaxOpenConns int `mapstructure:"max_open_conns"`
	}
	Auth struct {
		JWTSecret              string   `mapstructure:"jwt_secret"`
		PreviousSecrets        []string `mapstructure:"previous_secrets"`
		TokenTTLMinutes        int      `mapstructure:"token_ttl_minutes"`
		BcryptCost             int      `mapstructure:"bcrypt_cost"`
		HashConcurrency        int      `mapstructure:"hash_concurrency"`
		BootstrapAdminEmail    string   `mapstructure:"bootstrap_admin_email"`
		BootstrapAdminPassword string   `mapstructure:"bootstrap_admin_password"`
		BootstrapAdminName     string   `mapstructure:"bootstrap_admin_name"`
	}
	RateLimit struct {
		Backend  string
		Requests int
		Window   time.Duration
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
		URLExpiry time.Duration `mapstructure:"url_expiry"`
	}
	AWS struct {
		Profile string
	}
	Log struct {
		Level  string
		Format string
	}
}

// TokenTTL returns the configured access token lifetime.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("MEDTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8000")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:8080"})
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/medtrack.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.previous_secrets", []string{})
	v.SetDefault("auth.token_ttl_minutes", 60)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.hash_concurrency", 0)
	v.SetDefault("auth.bootstrap_admin_email", "")
	v.SetDefault("auth.bootstrap_admin_password", "")
	v.SetDefault("auth.bootstrap_admin_name", "Administrator")
	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.requests", 10)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "medtrack-exports")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.url_expiry", 15*time.Minute)
	v.SetDefault("aws.profile", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required for postgres")
	}
	switch c.RateLimit.Backend {
	case "memory", "redis", "off":
	default:
		return fmt.Errorf("unsupported rate limit backend %q", c.RateLimit.Backend)
	}
	return nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
