// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads pipeline configuration from an optional YAML file
// with FLOW_* environment overrides on top. Every knob has a production
// default, so an empty config is a valid one.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings such as
// "250ms" or "24h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port  int  `yaml:"port"`
	Debug bool `yaml:"debug"`
}

// QueueConfig configures the ingestion queue.
type QueueConfig struct {
	Capacity int `yaml:"capacity"`

	// BackpressureThreshold is the utilization percentage above which
	// the health endpoint reports degraded.
	BackpressureThreshold int `yaml:"backpressureThreshold"`

	// EnqueueTimeout bounds how long a submission waits for queue space
	// before it is rejected.
	EnqueueTimeout Duration `yaml:"enqueueTimeout"`
}

// WorkerConfig configures the ingestion worker pool.
type WorkerConfig struct {
	Count       int      `yaml:"count"`
	PollTimeout Duration `yaml:"pollTimeout"`
	DrainGrace  Duration `yaml:"drainGrace"`
}

// TraceConfig configures the runtime trace buffer.
type TraceConfig struct {
	TTL              Duration `yaml:"ttl"`
	MaxCount         int      `yaml:"maxCount"`
	EvictionInterval Duration `yaml:"evictionInterval"`
	UnmergedBound    Duration `yaml:"unmergedBound"`
	DedupEnabled     bool     `yaml:"dedupEnabled"`
}

// ValidatorConfig configures graph validation of merge results.
type ValidatorConfig struct {
	Strict bool `yaml:"strict"`
}

// ExportConfig configures the optional Neo4j analytics push.
type ExportConfig struct {
	Enabled  bool     `yaml:"enabled"`
	URI      string   `yaml:"uri"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Timeout  Duration `yaml:"timeout"`
}

// Config is the full pipeline configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Queue     QueueConfig     `yaml:"queue"`
	Worker    WorkerConfig    `yaml:"worker"`
	Trace     TraceConfig     `yaml:"trace"`
	Validator ValidatorConfig `yaml:"validator"`
	Export    ExportConfig    `yaml:"export"`
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port: 8093,
		},
		Queue: QueueConfig{
			Capacity:              10000,
			BackpressureThreshold: 80,
			EnqueueTimeout:        Duration(5 * time.Second),
		},
		Worker: WorkerConfig{
			Count:       2,
			PollTimeout: Duration(100 * time.Millisecond),
			DrainGrace:  Duration(5 * time.Second),
		},
		Trace: TraceConfig{
			TTL:              Duration(10 * time.Minute),
			MaxCount:         100000,
			EvictionInterval: Duration(60 * time.Second),
			UnmergedBound:    Duration(24 * time.Hour),
			DedupEnabled:     true,
		},
		Validator: ValidatorConfig{
			Strict: false,
		},
		Export: ExportConfig{
			Enabled: false,
			URI:     "bolt://localhost:7687",
			Timeout: Duration(30 * time.Second),
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("config: queue capacity must be positive, got %d", c.Queue.Capacity)
	}
	if c.Queue.BackpressureThreshold < 1 || c.Queue.BackpressureThreshold > 100 {
		return fmt.Errorf("config: backpressure threshold must be in [1,100], got %d", c.Queue.BackpressureThreshold)
	}
	if c.Worker.Count <= 0 {
		return fmt.Errorf("config: worker count must be positive, got %d", c.Worker.Count)
	}
	if c.Trace.MaxCount <= 0 {
		return fmt.Errorf("config: trace max count must be positive, got %d", c.Trace.MaxCount)
	}
	if c.Export.Enabled && c.Export.URI == "" {
		return fmt.Errorf("config: export enabled but no uri set")
	}
	return nil
}

// applyEnv layers FLOW_* environment variables over the loaded values.
// Unset or malformed variables leave the current value in place.
func applyEnv(cfg *Config) {
	envInt("FLOW_SERVER_PORT", &cfg.Server.Port)
	envBool("FLOW_SERVER_DEBUG", &cfg.Server.Debug)
	envInt("FLOW_QUEUE_CAPACITY", &cfg.Queue.Capacity)
	envInt("FLOW_QUEUE_BACKPRESSURE_THRESHOLD", &cfg.Queue.BackpressureThreshold)
	envDuration("FLOW_QUEUE_ENQUEUE_TIMEOUT", &cfg.Queue.EnqueueTimeout)
	envInt("FLOW_WORKER_COUNT", &cfg.Worker.Count)
	envDuration("FLOW_WORKER_POLL_TIMEOUT", &cfg.Worker.PollTimeout)
	envDuration("FLOW_WORKER_DRAIN_GRACE", &cfg.Worker.DrainGrace)
	envDuration("FLOW_TRACE_TTL", &cfg.Trace.TTL)
	envInt("FLOW_TRACE_MAX_COUNT", &cfg.Trace.MaxCount)
	envDuration("FLOW_TRACE_EVICTION_INTERVAL", &cfg.Trace.EvictionInterval)
	envDuration("FLOW_TRACE_UNMERGED_BOUND", &cfg.Trace.UnmergedBound)
	envBool("FLOW_TRACE_DEDUP_ENABLED", &cfg.Trace.DedupEnabled)
	envBool("FLOW_VALIDATOR_STRICT", &cfg.Validator.Strict)
	envBool("FLOW_EXPORT_ENABLED", &cfg.Export.Enabled)
	envString("FLOW_EXPORT_URI", &cfg.Export.URI)
	envString("FLOW_EXPORT_USERNAME", &cfg.Export.Username)
	envString("FLOW_EXPORT_PASSWORD", &cfg.Export.Password)
	envDuration("FLOW_EXPORT_TIMEOUT", &cfg.Export.Timeout)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = Duration(parsed)
		}
	}
}
