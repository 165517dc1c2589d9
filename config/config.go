package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"libreserve-backend/internal/policy"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Library    LibraryConfig    `yaml:"library"`
	Auth       AuthConfig       `yaml:"auth"`
	Redis      RedisConfig      `yaml:"redis"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Roster     RosterConfig     `yaml:"roster"`
	Sweeper    SweeperConfig    `yaml:"sweeper"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	Timezone        string  `yaml:"timezone"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogQueries             bool   `yaml:"log_queries"`
}

// LibraryConfig holds the seating rules. Keys keep the names librarians
// already use for them.
type LibraryConfig struct {
	NumberOfSeats                        int  `yaml:"numberOfSeats"`
	ReserveLibrarianSeat                 bool `yaml:"reserveLibrarianSeat"`
	NumberOfLibrarians                   int  `yaml:"numberOfLibrarians"`
	RecommendedCheckInTime               int  `yaml:"recommendedCheckInTime"`
	AllowEarlyCheckIn                    bool `yaml:"allowEarlyCheckIn"`
	AllowedEarlyCheckInMinutes           int  `yaml:"allowedEarlyCheckInMinutes"`
	AllowLateCheckIn                     bool `yaml:"allowLateCheckIn"`
	AllowedLateCheckInTimeInMinutes      int  `yaml:"allowedLateCheckInTimeInMinutes"`
	BookingTimeAllowedInMinutes          int  `yaml:"bookingTimeAllowedInMinutes"`
	AllowTimeExtension                   bool `yaml:"allowTimeExtension"`
	MaximumTimeExtensionAllowedInMinutes int  `yaml:"maximumTimeExtensionAllowedInMinutes"`
	AllowMultipleTimeExtension           bool `yaml:"allowMultipleTimeExtension"`
}

// AuthConfig holds the JWT settings for librarian tokens.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret"`
	Issuer          string        `yaml:"issuer"`
	TokenTTLMinutes int           `yaml:"token_ttl_minutes"`
	TokenTTL        time.Duration `yaml:"-"`
	RevocationStore string        `yaml:"revocation_store"` // memory or redis
}

// RedisConfig is only used when auth.revocation_store is redis.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// RosterConfig holds the student roster sync configuration.
type RosterConfig struct {
	Enabled               bool              `yaml:"enabled"`
	UniversityURL         string            `yaml:"universityUrl"`
	IntervalSeconds       int               `yaml:"interval_seconds"`
	Interval              time.Duration     `yaml:"-"` // Ignored by YAML parser
	HTTPProxy             string            `yaml:"http_proxy"`
	Headers               map[string]string `yaml:"headers"`
	PageSize              int               `yaml:"page_size"`
	ConnectTimeoutSeconds int               `yaml:"connect_timeout_seconds"`
	ReadTimeoutSeconds    int               `yaml:"read_timeout_seconds"`
}

// SweeperConfig holds the reservation lifecycle sweeper configuration.
type SweeperConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
}

// Policy converts the library section into a validated policy snapshot.
func (l LibraryConfig) Policy() (policy.Policy, error) {
	p := policy.Policy{
		NumberOfSeats:                        l.NumberOfSeats,
		ReserveLibrarianSeat:                 l.ReserveLibrarianSeat,
		NumberOfLibrarians:                   l.NumberOfLibrarians,
		RecommendedCheckInTime:               l.RecommendedCheckInTime,
		AllowEarlyCheckIn:                    l.AllowEarlyCheckIn,
		AllowedEarlyCheckInMinutes:           l.AllowedEarlyCheckInMinutes,
		AllowLateCheckIn:                     l.AllowLateCheckIn,
		AllowedLateCheckInTimeInMinutes:      l.AllowedLateCheckInTimeInMinutes,
		BookingTimeAllowedInMinutes:          l.BookingTimeAllowedInMinutes,
		AllowTimeExtension:                   l.AllowTimeExtension,
		MaximumTimeExtensionAllowedInMinutes: l.MaximumTimeExtensionAllowedInMinutes,
		AllowMultipleTimeExtension:           l.AllowMultipleTimeExtension,
	}
	if err := p.Validate(); err != nil {
		return policy.Policy{}, err
	}
	return p, nil
}

// Location resolves server.timezone, falling back to the host zone.
func (s ServerConfig) Location() *time.Location {
	if s.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		log.Printf("invalid server.timezone %q, using local time: %v", s.Timezone, err)
		return time.Local
	}
	return loc
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported database.driver %q", cfg.Database.Driver)
	}

	if cfg.Auth.TokenTTLMinutes <= 0 {
		cfg.Auth.TokenTTLMinutes = 8 * 60
	}
	cfg.Auth.TokenTTL = time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute
	if cfg.Auth.RevocationStore == "" {
		cfg.Auth.RevocationStore = "memory"
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "libreserve:revoked:"
	}

	if cfg.Roster.IntervalSeconds <= 0 {
		cfg.Roster.IntervalSeconds = 3600
	}
	cfg.Roster.Interval = time.Duration(cfg.Roster.IntervalSeconds) * time.Second
	if cfg.Roster.PageSize <= 0 {
		cfg.Roster.PageSize = 100
	}
	if cfg.Roster.ConnectTimeoutSeconds <= 0 {
		cfg.Roster.ConnectTimeoutSeconds = 10
	}
	if cfg.Roster.ReadTimeoutSeconds <= 0 {
		cfg.Roster.ReadTimeoutSeconds = 30
	}

	if cfg.Sweeper.IntervalSeconds <= 0 {
		cfg.Sweeper.IntervalSeconds = 60
	}
	cfg.Sweeper.Interval = time.Duration(cfg.Sweeper.IntervalSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 100
	}

	if _, err := cfg.Library.Policy(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
