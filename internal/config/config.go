// Package config loads btsim settings. Defaults are overlaid by a YAML file,
// then by BTSIM_* environment variables, which may come from .env files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/btcore/internal/core/agent"
	"github.com/zeusync/btcore/internal/core/observability/log"
)

const envPrefix = "BTSIM_"

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Simulation SimulationConfig `yaml:"simulation"`
	Redis      RedisConfig      `yaml:"redis"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type SimulationConfig struct {
	Workers int `yaml:"workers"`
	// Delta is the simulated seconds per frame; zero uses wall time.
	Delta float64 `yaml:"delta"`
	// Ticks bounds a batch run; zero runs in real time until interrupted.
	Ticks       int           `yaml:"ticks"`
	Interval    time.Duration `yaml:"interval"`
	FaultPolicy string        `yaml:"fault_policy"`
	Agents      int           `yaml:"agents"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// MetricsConfig.Addr enables the Prometheus endpoint when not empty.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Simulation: SimulationConfig{
			Workers:     runtime.NumCPU(),
			Delta:       1.0 / 60,
			Interval:    time.Second / 60,
			FaultPolicy: string(agent.FaultAbort),
			Agents:      1,
		},
		Redis: RedisConfig{Prefix: "btcore:template:"},
	}
}

// Load reads path over the defaults, applies the environment and validates.
// An empty path skips the file.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err = dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(envFiles...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv loads the given .env files (".env" when none are named; missing
// files are ignored) without overriding variables already set, then copies
// every BTSIM_* variable into cfg.
func (c *Config) ApplyEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env files: %w", err)
	}

	var errs []error
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = f
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("LOG_LEVEL", &c.Log.Level)
	num("WORKERS", &c.Simulation.Workers)
	float("DELTA", &c.Simulation.Delta)
	num("TICKS", &c.Simulation.Ticks)
	dur("INTERVAL", &c.Simulation.Interval)
	str("FAULT_POLICY", &c.Simulation.FaultPolicy)
	num("AGENTS", &c.Simulation.Agents)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	num("REDIS_DB", &c.Redis.DB)
	str("REDIS_PREFIX", &c.Redis.Prefix)
	dur("REDIS_TTL", &c.Redis.TTL)
	str("METRICS_ADDR", &c.Metrics.Addr)
	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	var errs []error
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := agent.ParseFaultPolicy(c.Simulation.FaultPolicy); err != nil {
		errs = append(errs, err)
	}
	s := c.Simulation
	if s.Workers < 1 {
		errs = append(errs, fmt.Errorf("simulation.workers must be at least 1, got %d", s.Workers))
	}
	if s.Delta < 0 || math.IsNaN(s.Delta) || math.IsInf(s.Delta, 0) {
		errs = append(errs, fmt.Errorf("simulation.delta must be a finite non-negative number, got %v", s.Delta))
	}
	if s.Ticks < 0 {
		errs = append(errs, fmt.Errorf("simulation.ticks must not be negative, got %d", s.Ticks))
	}
	if s.Interval <= 0 {
		errs = append(errs, fmt.Errorf("simulation.interval must be positive, got %s", s.Interval))
	}
	if s.Agents < 0 {
		errs = append(errs, fmt.Errorf("simulation.agents must not be negative, got %d", s.Agents))
	}
	if c.Redis.TTL < 0 {
		errs = append(errs, fmt.Errorf("redis.ttl must not be negative, got %s", c.Redis.TTL))
	}
	return errors.Join(errs...)
}
