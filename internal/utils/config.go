package utils

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// MinimumSecretLength is the smallest accepted HMAC key, in bytes (256 bits).
const MinimumSecretLength = 32

const (
	defaultRefreshTokenExpiryHours = 7 * 24
	defaultAuthRateLimit           = 5
)

var (
	ErrJwtSecretInvalid   = errors.New("jwt secret is invalid or missing")
	ErrInvalidConfigValue = errors.New("invalid configuration value")
)

type DatabaseConfig struct {
	PostgresHost     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
}

func (c *DatabaseConfig) DSN() string {
	host := c.PostgresHost
	if host == "" {
		host = "localhost"
	}
	return "host=" + host + " user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" port=5432 sslmode=disable TimeZone=UTC"
}

type ServerConfig struct {
	Port string
}

type AdminConfig struct {
	Username string
	Password string
}

// JwtConfig carries the signing material shared by every resource server.
type JwtConfig struct {
	SecretKey          string
	Issuer             string
	Audience           string
	RefreshTokenExpiry int // hours
}

func (c *JwtConfig) Validate() error {
	if len(c.SecretKey) < MinimumSecretLength {
		return ErrJwtSecretInvalid
	}
	return nil
}

type RateLimitConfig struct {
	AuthPerSecond float64
}

type Config struct {
	Database  *DatabaseConfig
	Server    *ServerConfig
	Admin     *AdminConfig
	Jwt       *JwtConfig
	RateLimit *RateLimitConfig
}

func LoadConfig(dotenvPath string) (*Config, error) {
	err := godotenv.Load(dotenvPath)
	if err != nil {
		return nil, err
	}

	dbCfg := &DatabaseConfig{
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
	}
	serverCfg := &ServerConfig{
		Port: os.Getenv("SERVER_PORT"),
	}
	adminCfg := &AdminConfig{
		Username: os.Getenv("ADMIN_USERNAME"),
		Password: os.Getenv("ADMIN_PASSWORD"),
	}

	refreshExpiry, err := intFromEnv("REFRESH_TOKEN_EXPIRY_HOURS", defaultRefreshTokenExpiryHours)
	if err != nil {
		return nil, err
	}
	jwtCfg := &JwtConfig{
		SecretKey:          os.Getenv("JWT_SECRET_KEY"),
		Issuer:             os.Getenv("JWT_ISSUER"),
		Audience:           os.Getenv("JWT_AUDIENCE"),
		RefreshTokenExpiry: refreshExpiry,
	}
	if err := jwtCfg.Validate(); err != nil {
		return nil, err
	}

	rate, err := intFromEnv("AUTH_RATE_LIMIT_PER_SECOND", defaultAuthRateLimit)
	if err != nil {
		return nil, err
	}
	rateCfg := &RateLimitConfig{AuthPerSecond: float64(rate)}

	cfg := &Config{dbCfg, serverCfg, adminCfg, jwtCfg, rateCfg}
	return cfg, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, ErrInvalidConfigValue
	}
	return v, nil
}
