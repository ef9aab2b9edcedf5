package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML, .env and env.
type Config struct {
	ServerPort string

	OpenWeatherBaseURL string
	OpenWeatherAPIKey  string
	UpstreamTimeout    time.Duration

	RequestTimeout time.Duration

	CacheBackend string // "sqlite" or "memcached"
	DBPath       string
	TTLCurrent   time.Duration
	TTLForecast  time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RateLimitRPS   int
	RateLimitBurst int

	BreakerEnabled     bool
	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration

	CORSOrigins []string

	PurgeInterval   time.Duration
	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend     string `yaml:"backend"`
		DBPath      string `yaml:"db_path"`
		TTLCurrent  string `yaml:"ttl_current"`
		TTLForecast string `yaml:"ttl_forecast"`
		Memcached   struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		PurgeInterval string `yaml:"purge_interval"`
	} `yaml:"cache"`

	Reliability struct {
		RateLimitRPS       int    `yaml:"rate_limit_rps"`
		RateLimitBurst     int    `yaml:"rate_limit_burst"`
		BreakerEnabled     bool   `yaml:"breaker_enabled"`
		BreakerMaxRequests int    `yaml:"breaker_max_requests"`
		BreakerInterval    string `yaml:"breaker_interval"`
		BreakerTimeout     string `yaml:"breaker_timeout"`
	} `yaml:"reliability"`

	CORS struct {
		Origins []string `yaml:"origins"`
	} `yaml:"cors"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (optional), a .env
// file (optional) and the environment. Environment values win. The API
// key comes from OPENWEATHER_API_KEY only and is required.
func Load() (*Config, error) {
	// .env populates the process environment before reads; missing file
	// is fine.
	_ = godotenv.Load()

	var fc fileConfig
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = envDefault("PORT", fc.Server.Port)
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.OpenWeatherBaseURL = envDefault("OPENWEATHER_BASE_URL", fc.WeatherAPI.BaseURL)
	if cfg.OpenWeatherBaseURL == "" {
		cfg.OpenWeatherBaseURL = "https://api.openweathermap.org/data/2.5"
	}
	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	if cfg.OpenWeatherAPIKey == "" {
		return nil, fmt.Errorf("OPENWEATHER_API_KEY required (set env or .env)")
	}
	cfg.UpstreamTimeout = parseDuration(fc.WeatherAPI.Timeout, 8*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 10*time.Second)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(envDefault("CACHE_BACKEND", fc.Cache.Backend)))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "sqlite"
	}
	cfg.DBPath = envDefault("DB_PATH", fc.Cache.DBPath)
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "weather_cache.db")
	}
	cfg.TTLCurrent = envSeconds("CACHE_TTL_CURRENT", parseDuration(fc.Cache.TTLCurrent, 600*time.Second))
	cfg.TTLForecast = envSeconds("CACHE_TTL_FORECAST", parseDuration(fc.Cache.TTLForecast, 1800*time.Second))

	cfg.MemcachedAddrs = envDefault("MEMCACHED_ADDRS", fc.Cache.Memcached.Addrs)
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.BreakerEnabled = fc.Reliability.BreakerEnabled
	// Clamp before the unsigned conversion; a negative value would wrap.
	if fc.Reliability.BreakerMaxRequests > 0 {
		cfg.BreakerMaxRequests = uint32(fc.Reliability.BreakerMaxRequests)
	} else {
		cfg.BreakerMaxRequests = 5
	}
	cfg.BreakerInterval = parseDuration(fc.Reliability.BreakerInterval, 1*time.Minute)
	cfg.BreakerTimeout = parseDuration(fc.Reliability.BreakerTimeout, 2*time.Minute)

	if origins := os.Getenv("CORS_ORIGIN"); origins != "" {
		cfg.CORSOrigins = splitOrigins(origins)
	} else if len(fc.CORS.Origins) > 0 {
		cfg.CORSOrigins = fc.CORS.Origins
	} else {
		cfg.CORSOrigins = []string{"http://localhost:5173"}
	}

	cfg.PurgeInterval = parseDurationOrZero(envDefault("PURGE_INTERVAL", fc.Cache.PurgeInterval), time.Hour)
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envSeconds reads an integer-seconds environment value, keeping fallback
// on absence or parse failure.
func envSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on
// empty string or parse error. Zero and negative values pass through
// (zero disables the purge scheduler).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. The request timeout must leave
// room for the upstream call; the backend must be a known value.
func validate(cfg *Config) error {
	if cfg.UpstreamTimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.UpstreamTimeout {
		cfg.RequestTimeout = cfg.UpstreamTimeout + time.Second
	}
	switch cfg.CacheBackend {
	case "sqlite", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be sqlite or memcached, got %q", cfg.CacheBackend)
	}
	return nil
}
