package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppName string `mapstructure:"app_name"`
	Env     string `mapstructure:"app_env"`
	Host    string `mapstructure:"http_host"`
	Port    int    `mapstructure:"http_port"`

	CORSOrigins []string `mapstructure:"cors_origins"`

	DB        DBConfig        `mapstructure:",squash"`
	JWT       JWTConfig       `mapstructure:",squash"`
	Log       LogConfig       `mapstructure:",squash"`
	WebSocket WebSocketConfig `mapstructure:",squash"`
}

type DBConfig struct {
	Driver     string `mapstructure:"database_driver"`
	Host       string `mapstructure:"db_host"`
	Port       int    `mapstructure:"db_port"`
	User       string `mapstructure:"db_user"`
	Password   string `mapstructure:"db_password"`
	Name       string `mapstructure:"db_name"`
	SSLMode    string `mapstructure:"db_sslmode"`
	SQLitePath string `mapstructure:"sqlite_path"`
	MaxOpen    int    `mapstructure:"db_max_open"`
	MaxIdle    int    `mapstructure:"db_max_idle"`
}

type JWTConfig struct {
	Secret    string        `mapstructure:"jwt_secret"`
	ExpiresIn time.Duration `mapstructure:"jwt_expire"`
	Issuer    string        `mapstructure:"jwt_issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"log_level"`
	Format string `mapstructure:"log_format"`
}

type WebSocketConfig struct {
	AllowedOrigins []string      `mapstructure:"ws_allowed_origins"`
	SendBuffer     int           `mapstructure:"ws_send_buffer"`
	WriteWait      time.Duration `mapstructure:"ws_write_wait"`
	PongWait       time.Duration `mapstructure:"ws_pong_wait"`
	PingPeriod     time.Duration `mapstructure:"ws_ping_period"`
	MaxMessageSize int64         `mapstructure:"ws_max_message_size"`
	AuthTimeout    time.Duration `mapstructure:"ws_auth_timeout"`
}

var defaults = map[string]any{
	"app_name":            "Chat App Backend API",
	"app_env":             "development",
	"http_host":           "0.0.0.0",
	"http_port":           5000,
	"cors_origins":        "http://localhost:3000,http://localhost:5173",
	"database_driver":     "postgres",
	"db_host":             "localhost",
	"db_port":             5432,
	"db_user":             "postgres",
	"db_password":         "postgres",
	"db_name":             "chatapp_db",
	"db_sslmode":          "disable",
	"sqlite_path":         "chatapp.db",
	"db_max_open":         10,
	"db_max_idle":         2,
	"jwt_secret":          "",
	"jwt_expire":          "168h",
	"jwt_issuer":          "chatapp",
	"log_level":           "info",
	"log_format":          "console",
	"ws_allowed_origins":  "",
	"ws_send_buffer":      256,
	"ws_write_wait":       "10s",
	"ws_pong_wait":        "60s",
	"ws_ping_period":      "54s",
	"ws_max_message_size": 64 * 1024,
	"ws_auth_timeout":     "10s",
}

// Load reads an optional .env file, an optional config.yaml and the process environment,
// in increasing order of precedence.
func Load() (*Config, error) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(v.GetString("cors_origins"))
	cfg.WebSocket.AllowedOrigins = splitList(v.GetString("ws_allowed_origins"))
	if len(cfg.WebSocket.AllowedOrigins) == 0 {
		cfg.WebSocket.AllowedOrigins = cfg.CORSOrigins
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	switch cfg.DB.Driver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DB.Driver)
	}
	if cfg.WebSocket.PingPeriod >= cfg.WebSocket.PongWait {
		return nil, fmt.Errorf("WS_PING_PERIOD must be shorter than WS_PONG_WAIT")
	}
	if cfg.IsProduction() {
		cfg.Log.Format = "json"
	}
	if cfg.WebSocket.SendBuffer <= 0 {
		cfg.WebSocket.SendBuffer = 256
	}
	return &cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DatabaseURL builds the PostgreSQL connection URL.
func (c *DBConfig) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Name,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return res
}
