package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	// Realtime behaviour.
	HeartbeatInterval   time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	HandshakeTimeout    time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`
	InactivityThreshold time.Duration `mapstructure:"inactivity_threshold" yaml:"inactivity_threshold"`
	PresenceSweep       time.Duration `mapstructure:"presence_sweep" yaml:"presence_sweep"`
	TypingThrottle      time.Duration `mapstructure:"typing_throttle" yaml:"typing_throttle"`
	RateLimitPerMinute  int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	// Retention.
	HistoryCap       int `mapstructure:"history_cap" yaml:"history_cap"`
	NotificationCap  int `mapstructure:"notification_cap" yaml:"notification_cap"`
	NotificationDays int `mapstructure:"notification_days" yaml:"notification_days"`

	// Client reconnection budget, advertised via /api/config.
	ReconnectAttempts int           `mapstructure:"reconnect_attempts" yaml:"reconnect_attempts"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`

	// Store backend: memory, sqlite or redis.
	StoreBackend string `mapstructure:"store_backend" yaml:"store_backend"`
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
	RedisAddr    string `mapstructure:"redis_addr" yaml:"redis_addr"`

	// Identity tokens.
	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",

		HeartbeatInterval:   10 * time.Second,
		HandshakeTimeout:    5 * time.Second,
		InactivityThreshold: 5 * time.Minute,
		PresenceSweep:       60 * time.Second,
		TypingThrottle:      time.Second,
		RateLimitPerMinute:  600,

		HistoryCap:       1000,
		NotificationCap:  100,
		NotificationDays: 30,

		ReconnectAttempts: 5,
		ReconnectDelay:    2 * time.Second,

		StoreBackend: "memory",
		DatabasePath: "pulsechat.db",
		RedisAddr:    "localhost:6379",

		JWTSecret:   "dev-secret-change-me",
		JWTIssuer:   "pulsechat",
		JWTAudience: "pulsechat-clients",
		JWTTTL:      24 * time.Hour,
	}
}
