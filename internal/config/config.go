package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"gatekeeper/internal/authz"
	"gatekeeper/internal/password"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr            string
		ShutdownTimeout time.Duration
	}
	Log struct {
		Level  string
		Format string
	}
	Database struct {
		Driver string
		Path   string
		DSN    string
	}
	Auth struct {
		JWTSecret   string
		Issuer      string
		AccessTTL   time.Duration
		RefreshTTL  time.Duration
		BcryptCost  int
		AdminSecret string
	}
	Password struct {
		MinLength      int
		MaxLength      int
		RequireSpecial bool
	}
	Tokens struct {
		Store string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	RateLimit struct {
		PerMinute int
		Burst     int
	}
	Seed struct {
		Path string
	}
	Resources struct {
		Private []string
		Shared  []string
	}
}

// Load reads configuration from environment variables and optional config files.
// Every key can be set as GATEKEEPER_<SECTION>_<KEY>, e.g. GATEKEEPER_AUTH_JWTSECRET.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("GATEKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.shutdowntimeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/gatekeeper.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.issuer", "gatekeeper")
	v.SetDefault("auth.accessttl", 60*time.Minute)
	v.SetDefault("auth.refreshttl", 7*24*time.Hour)
	v.SetDefault("auth.bcryptcost", 10)
	v.SetDefault("auth.adminsecret", "")
	v.SetDefault("password.minlength", 6)
	v.SetDefault("password.maxlength", 20)
	v.SetDefault("password.requirespecial", false)
	v.SetDefault("tokens.store", "database")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ratelimit.perminute", 120)
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("seed.path", "")
	v.SetDefault("resources.private", []string{"todos", "books"})
	v.SetDefault("resources.shared", []string{"hotels", "countries", "restaurants", "products"})

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("auth.jwtsecret is required"))
	}
	if c.Auth.AccessTTL <= 0 {
		errs = append(errs, errors.New("auth.accessttl must be positive"))
	}
	if c.Auth.RefreshTTL <= 0 {
		errs = append(errs, errors.New("auth.refreshttl must be positive"))
	}
	if err := c.PasswordPolicy().Check(); err != nil {
		errs = append(errs, err)
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	switch c.Tokens.Store {
	case "database", "redis":
	default:
		errs = append(errs, fmt.Errorf("tokens.store %q is not supported", c.Tokens.Store))
	}
	if c.RateLimit.PerMinute < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("ratelimit values must not be negative"))
	}
	if _, err := c.ResourcePolicies(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// PasswordPolicy builds the password rules from the configured band.
func (c Config) PasswordPolicy() password.Policy {
	p := password.DefaultPolicy()
	p.MinLength = c.Password.MinLength
	p.MaxLength = c.Password.MaxLength
	p.RequireSpecial = c.Password.RequireSpecial
	return p
}

// ResourcePolicies assigns the private or shared template to every configured kind.
func (c Config) ResourcePolicies() (map[string]authz.Policy, error) {
	out := make(map[string]authz.Policy)
	add := func(kinds []string, template string) error {
		for _, kind := range kinds {
			kind = strings.ToLower(strings.TrimSpace(kind))
			if kind == "" {
				continue
			}
			if _, dup := out[kind]; dup {
				return fmt.Errorf("resource kind %q is configured more than once", kind)
			}
			p, err := authz.Template(template)
			if err != nil {
				return err
			}
			out[kind] = p
		}
		return nil
	}
	if err := add(c.Resources.Private, "private"); err != nil {
		return nil, err
	}
	if err := add(c.Resources.Shared, "shared"); err != nil {
		return nil, err
	}
	return out, nil
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
		line = strings.TrimPrefix(line, "export ")

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
