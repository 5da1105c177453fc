package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Redis     RedisConfig     `json:"redis"`
	Database  DatabaseConfig  `json:"database"`
	Auth      AuthConfig      `json:"auth"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Monitor   MonitorConfig   `json:"monitor"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (r RedisConfig) GetRedisAddr() string {
	return r.Host + ":" + r.Port
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
	SSLMode  string `json:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type AuthConfig struct {
	JWTSecret   string `json:"jwt_secret"`
	ExpiryHours int    `json:"expiry_hours"`
}

type RateLimitConfig struct {
	Policies []PolicyConfig     `json:"policies"`
	Tiers    map[string]float64 `json:"tiers"`
	Default  PolicyConfig       `json:"default"`
	Adaptive AdaptiveConfig     `json:"adaptive"`
}

type PolicyConfig struct {
	Endpoint string `json:"endpoint"`
	Capacity int    `json:"capacity"`
	Window   string `json:"window"`
}

type AdaptiveConfig struct {
	LowLoadThreshold  int     `json:"low_load_threshold"`
	HighLoadThreshold int     `json:"high_load_threshold"`
	BoostFactor       float64 `json:"boost_factor"`
	ShedFactor        float64 `json:"shed_factor"`
	LoadWindowSeconds int     `json:"load_window_seconds"`
}

type MonitorConfig struct {
	SlowQueryMs           float64 `json:"slow_query_ms"`
	VerySlowQueryMs       float64 `json:"very_slow_query_ms"`
	HighCPUPercent        float64 `json:"high_cpu_percent"`
	HighMemoryPercent     float64 `json:"high_memory_percent"`
	MaxConcurrentQueries  int     `json:"max_concurrent_queries"`
	SampleIntervalSeconds int     `json:"sample_interval_seconds"`
}

func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()
	config.applyEnvOverrides()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.Environment == "" {
		c.Server.Environment = "development"
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == "" {
		c.Redis.Port = "6379"
	}
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == "" {
		c.Database.Port = "5432"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Auth.ExpiryHours <= 0 {
		c.Auth.ExpiryHours = 24
	}
	if len(c.RateLimit.Tiers) == 0 {
		c.RateLimit.Tiers = map[string]float64{
			"free":       1.0,
			"premium":    2.0,
			"enterprise": 5.0,
		}
	}
	if c.Monitor.SampleIntervalSeconds <= 0 {
		c.Monitor.SampleIntervalSeconds = 30
	}
}

// Secrets come from the environment, never from config.json
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Server.Environment = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		c.Redis.Port = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		c.Database.Port = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("JWT_EXPIRY_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil {
			c.Auth.ExpiryHours = hours
		}
	}
}
