// Package config provides runtime configuration values for the service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration knobs for storage, messaging, and the server.
// Values come from an optional YAML file overridden by environment variables.
type Config struct {
	HTTPAddr        string        `yaml:"http_addr"`
	MySQLDSN        string        `yaml:"mysql_dsn"`
	RedisAddr       string        `yaml:"redis_addr"`
	KafkaBrokers    []string      `yaml:"kafka_brokers"`
	KafkaTopic      string        `yaml:"kafka_topic"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	LogPretty       bool          `yaml:"log_pretty"`
}

func Default() Config {
	return Config{
		HTTPAddr:        ":8080",
		MySQLDSN:        "root:root@tcp(localhost:3306)/storefront?parseTime=true",
		RedisAddr:       "localhost:6379",
		KafkaTopic:      "order-events",
		SweepInterval:   time.Minute,
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        "info",
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durenvs(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	sec, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(sec) * time.Second
}

func boolenv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Load reads the YAML file at path (if non-empty) and applies environment
// overrides on top of it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.HTTPAddr = getenv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.MySQLDSN = getenv("MYSQL_DSN", cfg.MySQLDSN)
	cfg.RedisAddr = getenv("REDIS_ADDR", cfg.RedisAddr)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = strings.Split(v, ",")
	}
	cfg.KafkaTopic = getenv("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.SweepInterval = durenvs("SWEEP_INTERVAL", cfg.SweepInterval)
	cfg.ShutdownTimeout = durenvs("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogPretty = boolenv("LOG_PRETTY", cfg.LogPretty)
	return cfg, nil
}
