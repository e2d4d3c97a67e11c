package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values come from env (optionally seeded from a .env file by cmd/api).
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	LiveKit   LiveKitConfig
	Calls     CallsConfig
	Signaling SignalingConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type HTTPConfig struct {
	// AllowedOrigins for CORS; empty disables the CORS middleware.
	AllowedOrigins []string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// LiveKitConfig configures the media session provider.
type LiveKitConfig struct {
	URL          string
	APIKey       string
	APISecret    string
	RoomPrefix   string
	TokenTTL     time.Duration
	EmptyTimeout time.Duration
}

// CallsConfig tunes the orchestrator.
type CallsConfig struct {
	// RetryBudget bounds read-modify-write attempts per operation.
	RetryBudget int
	// RingTimeout is how long a session may stay RINGING before the janitor marks it MISSED.
	RingTimeout     time.Duration
	JanitorInterval time.Duration
}

type SignalingConfig struct {
	ChannelPrefix  string
	QueueSize      int
	Workers        int
	PublishTimeout time.Duration
	// MaxConnsPerUser caps concurrent websocket streams per user. 0 disables the cap.
	MaxConnsPerUser int
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port, parseErrs = requiredInt(parseErrs, "APP_PORT")
	c.HTTP.AllowedOrigins = splitList(os.Getenv("HTTP_ALLOWED_ORIGINS"))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port, parseErrs = requiredInt(parseErrs, "DB_PORT")
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port, parseErrs = requiredInt(parseErrs, "REDIS_PORT")
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	c.Redis.DB, parseErrs = optionalInt(parseErrs, "REDIS_DB")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL, parseErrs = optionalDuration(parseErrs, "JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL, parseErrs = optionalDuration(parseErrs, "JWT_REFRESH_TTL")

	c.LiveKit.URL = strings.TrimSpace(os.Getenv("LIVEKIT_URL"))
	c.LiveKit.APIKey = strings.TrimSpace(os.Getenv("LIVEKIT_API_KEY"))
	c.LiveKit.APISecret = os.Getenv("LIVEKIT_API_SECRET")
	c.LiveKit.RoomPrefix = strings.TrimSpace(os.Getenv("LIVEKIT_ROOM_PREFIX"))
	c.LiveKit.TokenTTL, parseErrs = optionalDuration(parseErrs, "LIVEKIT_TOKEN_TTL")
	c.LiveKit.EmptyTimeout, parseErrs = optionalDuration(parseErrs, "LIVEKIT_EMPTY_TIMEOUT")

	c.Calls.RetryBudget, parseErrs = optionalInt(parseErrs, "CALL_RETRY_BUDGET")
	c.Calls.RingTimeout, parseErrs = optionalDuration(parseErrs, "CALL_RING_TIMEOUT")
	c.Calls.JanitorInterval, parseErrs = optionalDuration(parseErrs, "CALL_JANITOR_INTERVAL")

	c.Signaling.ChannelPrefix = strings.TrimSpace(os.Getenv("SIGNALING_CHANNEL_PREFIX"))
	c.Signaling.QueueSize, parseErrs = optionalInt(parseErrs, "SIGNALING_QUEUE_SIZE")
	c.Signaling.Workers, parseErrs = optionalInt(parseErrs, "SIGNALING_WORKERS")
	c.Signaling.PublishTimeout, parseErrs = optionalDuration(parseErrs, "SIGNALING_PUBLISH_TIMEOUT")
	c.Signaling.MaxConnsPerUser, parseErrs = optionalInt(parseErrs, "SIGNALING_MAX_CONNS_PER_USER")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// WithDefaults fills optional values. Production must still set DB_SSLMODE explicitly.
func (c Config) WithDefaults() Config {
	if c.DB.SSLMode == "" && !c.IsProduction() {
		c.DB.SSLMode = "disable"
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.LiveKit.RoomPrefix == "" {
		c.LiveKit.RoomPrefix = "call-"
	}
	if c.LiveKit.TokenTTL <= 0 {
		c.LiveKit.TokenTTL = 2 * time.Hour
	}
	if c.LiveKit.EmptyTimeout <= 0 {
		c.LiveKit.EmptyTimeout = 5 * time.Minute
	}
	if c.Calls.RetryBudget <= 0 {
		c.Calls.RetryBudget = 3
	}
	if c.Calls.RingTimeout <= 0 {
		c.Calls.RingTimeout = 45 * time.Second
	}
	if c.Calls.JanitorInterval <= 0 {
		c.Calls.JanitorInterval = 15 * time.Second
	}
	if c.Signaling.ChannelPrefix == "" {
		c.Signaling.ChannelPrefix = "calls"
	}
	if c.Signaling.QueueSize <= 0 {
		c.Signaling.QueueSize = 1024
	}
	if c.Signaling.Workers <= 0 {
		c.Signaling.Workers = 4
	}
	if c.Signaling.PublishTimeout <= 0 {
		c.Signaling.PublishTimeout = 3 * time.Second
	}
	if c.Signaling.MaxConnsPerUser < 0 {
		c.Signaling.MaxConnsPerUser = 0
	}
	return c
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if !validPort(c.App.Port) {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if !validPort(c.DB.Port) {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		errs = append(errs, errors.New("DB_SSLMODE is required in production"))
	} else if !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if !validPort(c.Redis.Port) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.LiveKit.URL == "" {
		errs = append(errs, errors.New("LIVEKIT_URL is required"))
	}
	if c.LiveKit.APIKey == "" {
		errs = append(errs, errors.New("LIVEKIT_API_KEY is required"))
	}
	if c.LiveKit.APISecret == "" {
		errs = append(errs, errors.New("LIVEKIT_API_SECRET is required"))
	}

	if c.Calls.RetryBudget < 1 || c.Calls.RetryBudget > 10 {
		errs = append(errs, fmt.Errorf("CALL_RETRY_BUDGET must be between 1 and 10, got %d", c.Calls.RetryBudget))
	}
	if c.Calls.RingTimeout < 5*time.Second {
		errs = append(errs, fmt.Errorf("CALL_RING_TIMEOUT must be at least 5s, got %s", c.Calls.RingTimeout))
	}
	if c.Calls.JanitorInterval <= 0 {
		errs = append(errs, errors.New("CALL_JANITOR_INTERVAL must be positive"))
	}

	if c.Signaling.Workers <= 0 || c.Signaling.QueueSize <= 0 {
		errs = append(errs, errors.New("SIGNALING_WORKERS and SIGNALING_QUEUE_SIZE must be positive"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Contains secrets; never log.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func requiredInt(errs []error, key string) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, append(errs, fmt.Errorf("%s is required", key))
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func optionalInt(errs []error, key string) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func optionalDuration(errs []error, key string) (time.Duration, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be a duration, got %q", key, v))
	}
	return d, errs
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validPort(p int) bool { return p > 0 && p <= 65535 }

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
