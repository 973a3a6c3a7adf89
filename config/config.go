package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultPort        = 8888
	MinPort            = 1024
	MaxPort            = 65535
	DefaultEnvFile     = ".env"
	DefaultAdminAddr   = ":8080"
	DefaultSQLitePath  = "./data/sessions.db"
	DefaultDataDir     = "./sessions"
	DefaultStoreDriver = "file"
)

var ErrInvalidPort = errors.New("invalid port")

type DBConfig struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
}

type CalcConfig struct {
	Host           string
	Port           int
	MaxSessions    int
	MaxConnections int
	SessionIDRange int
	Framing        string
	SendQueue      int
	CommandRate    float64
	CommandBurst   int
	AcceptRate     float64
	TLSCertFile    string
	TLSKeyFile     string
}

type StoreConfig struct {
	Driver     string
	DataDir    string
	SQLitePath string
}

type AdminConfig struct {
	Addr   string
	APIKey string
}

type LogConfig struct {
	Level  string
	Format string
}

type Config struct {
	Calc  CalcConfig
	Store StoreConfig
	DB    DBConfig
	Admin AdminConfig
	Log   LogConfig
}

// GetConfig loads envFile into the environment when it exists and reads the
// configuration from the environment. A missing env file is not an error.
func GetConfig(envFile string) (Config, error) {
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
		log.Printf("ℹ️  No %s file, using environment", envFile)
	}

	var errs []error
	intEnv := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		errs = append(errs, err)
		return v
	}
	floatEnv := func(key string, fallback float64) float64 {
		v, err := getEnvFloat(key, fallback)
		errs = append(errs, err)
		return v
	}

	cfg := Config{
		Calc: CalcConfig{
			Host:           getEnv("CALC_HOST", "0.0.0.0"),
			Port:           intEnv("CALC_PORT", DefaultPort),
			MaxSessions:    intEnv("CALC_MAX_SESSIONS", 128),
			MaxConnections: intEnv("CALC_MAX_CONNECTIONS", 128),
			SessionIDRange: intEnv("CALC_SESSION_ID_RANGE", 10000),
			Framing:        strings.ToLower(getEnv("CALC_FRAMING", "line")),
			SendQueue:      intEnv("CALC_SEND_QUEUE", 64),
			CommandRate:    floatEnv("CALC_COMMAND_RATE", 0),
			CommandBurst:   intEnv("CALC_COMMAND_BURST", 20),
			AcceptRate:     floatEnv("CALC_ACCEPT_RATE", 100),
			TLSCertFile:    os.Getenv("CALC_TLS_CERT_FILE"),
			TLSKeyFile:     os.Getenv("CALC_TLS_KEY_FILE"),
		},
		Store: StoreConfig{
			Driver:     strings.ToLower(getEnv("STORE_DRIVER", DefaultStoreDriver)),
			DataDir:    getEnv("DATA_DIR", DefaultDataDir),
			SQLitePath: getEnv("SQLITE_PATH", DefaultSQLitePath),
		},
		DB: DBConfig{
			DBHost:     getEnv("DB_HOST", "localhost"),
			DBPort:     getEnv("DB_PORT", "5432"),
			DBUser:     os.Getenv("DB_USER"),
			DBPassword: os.Getenv("DB_PASSWORD"),
			DBName:     os.Getenv("DB_NAME"),
			DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Admin: AdminConfig{
			Addr:   lookupEnv("ADMIN_ADDR", DefaultAdminAddr),
			APIKey: os.Getenv("ADMIN_API_KEY"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
	}
	if err := errors.Join(errs...); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if err := ValidatePort(c.Calc.Port); err != nil {
		errs = append(errs, err)
	}
	if c.Calc.MaxSessions <= 0 {
		errs = append(errs, fmt.Errorf("CALC_MAX_SESSIONS must be positive, got %d", c.Calc.MaxSessions))
	}
	if c.Calc.MaxConnections <= 0 {
		errs = append(errs, fmt.Errorf("CALC_MAX_CONNECTIONS must be positive, got %d", c.Calc.MaxConnections))
	}
	if c.Calc.SessionIDRange < c.Calc.MaxSessions {
		errs = append(errs, fmt.Errorf("CALC_SESSION_ID_RANGE (%d) must be at least CALC_MAX_SESSIONS (%d)",
			c.Calc.SessionIDRange, c.Calc.MaxSessions))
	}
	if c.Calc.SendQueue <= 0 {
		errs = append(errs, fmt.Errorf("CALC_SEND_QUEUE must be positive, got %d", c.Calc.SendQueue))
	}
	if c.Calc.CommandRate < 0 {
		errs = append(errs, fmt.Errorf("CALC_COMMAND_RATE must not be negative, got %g", c.Calc.CommandRate))
	}
	switch c.Calc.Framing {
	case "line", "frame":
	default:
		errs = append(errs, fmt.Errorf("unknown CALC_FRAMING %q", c.Calc.Framing))
	}
	switch c.Store.Driver {
	case "file", "sqlite", "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}
	if (c.Calc.TLSCertFile == "") != (c.Calc.TLSKeyFile == "") {
		errs = append(errs, errors.New("CALC_TLS_CERT_FILE and CALC_TLS_KEY_FILE must be set together"))
	}
	return errors.Join(errs...)
}

// ValidatePort rejects ports outside [MinPort, MaxPort].
func ValidatePort(port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	return nil
}

// ListenAddr is the host:port the calculator listens on.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Calc.Host, strconv.Itoa(c.Calc.Port))
}

// getEnv returns the value of the environment variable named by the key.
// If the variable is not set, it returns the fallback value.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// lookupEnv is getEnv, except that a variable set to "" wins over fallback.
func lookupEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback, fmt.Errorf("%s: %q is not an integer", key, value)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback, fmt.Errorf("%s: %q is not a number", key, value)
	}
	return f, nil
}
