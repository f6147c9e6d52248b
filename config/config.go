// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/absmach/bodyrace/payload"
	"gopkg.in/yaml.v3"
)

// Broker implementation selectors.
const (
	BrokerMQTT = "mqtt"
	BrokerNATS = "nats"
)

// Consumer dispatch modes.
const (
	DispatchWorker = "worker"
	DispatchInline = "inline"
)

// Config holds all configuration for a reproduction run.
type Config struct {
	Broker    BrokerConfig    `yaml:"broker"`
	Topic     TopicConfig     `yaml:"topic"`
	Producer  ProducerConfig  `yaml:"producer"`
	Consumer  ConsumerConfig  `yaml:"consumer"`
	Client    ClientConfig    `yaml:"client"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// BrokerConfig holds embedded broker settings.
type BrokerConfig struct {
	Type string `yaml:"type"` // mqtt, nats
	URL  string `yaml:"url"`  // e.g. tcp://localhost:61616

	// Maximum message size in bytes accepted by the broker
	MaxMessageBytes int `yaml:"max_message_bytes"`

	// Messages above this size are reported as large
	LargeMessageThreshold int `yaml:"large_message_threshold"`

	StartupTimeout time.Duration `yaml:"startup_timeout"`
	LogLevel       string        `yaml:"log_level"`
}

// TopicConfig names the publish/subscribe destination.
type TopicConfig struct {
	Name string `yaml:"name"`
}

// ProducerConfig holds producer loop settings.
type ProducerConfig struct {
	ClientID     string        `yaml:"client_id"`
	MessageBytes int           `yaml:"message_bytes"` // approximate payload size
	Interval     time.Duration `yaml:"interval"`      // fixed delay between sends
}

// ConsumerConfig holds consumer loop settings.
type ConsumerConfig struct {
	ClientID string `yaml:"client_id"`
	Dispatch string `yaml:"dispatch"` // worker, inline
	Workers  int    `yaml:"workers"`
	Buffer   int    `yaml:"buffer"`
}

// ClientConfig holds settings shared by producer and consumer connections.
type ClientConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	QoS            byte          `yaml:"qos"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json, console
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	Enabled         bool    `yaml:"enabled"`
	Endpoint        string  `yaml:"endpoint"` // OTLP gRPC endpoint
	ServiceName     string  `yaml:"service_name"`
	ServiceVersion  string  `yaml:"service_version"`
	MetricsEnabled  bool    `yaml:"metrics_enabled"`
	TracesEnabled   bool    `yaml:"traces_enabled"`
	TraceSampleRate float64 `yaml:"trace_sample_rate"` // 0.0 to 1.0
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			Type:                  BrokerMQTT,
			URL:                   "tcp://localhost:61616",
			MaxMessageBytes:       8 * 1024 * 1024,
			LargeMessageThreshold: 100 * 1024,
			StartupTimeout:        5 * time.Second,
			LogLevel:              "error",
		},
		Topic: TopicConfig{
			Name: "random.topic",
		},
		Producer: ProducerConfig{
			ClientID:     "bodyrace-producer",
			MessageBytes: 200 * 1024,
			Interval:     time.Second,
		},
		Consumer: ConsumerConfig{
			ClientID: "bodyrace-consumer",
			Dispatch: DispatchWorker,
			Workers:  1,
			Buffer:   256,
		},
		Client: ClientConfig{
			ConnectTimeout: 10 * time.Second,
			QoS:            1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Enabled:         false,
			Endpoint:        "localhost:4317",
			ServiceName:     "bodyrace",
			ServiceVersion:  "0.1.0",
			MetricsEnabled:  true,
			TracesEnabled:   false,
			TraceSampleRate: 1.0,
		},
	}
}

// Load loads configuration from a YAML file.
// If the file doesn't exist, returns default configuration.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	validBrokers := map[string]bool{BrokerMQTT: true, BrokerNATS: true}
	if !validBrokers[c.Broker.Type] {
		return fmt.Errorf("broker.type must be one of: mqtt, nats")
	}
	if _, err := c.BrokerAddr(); err != nil {
		return fmt.Errorf("broker.url: %w", err)
	}
	if c.Broker.MaxMessageBytes < 1024 {
		return fmt.Errorf("broker.max_message_bytes must be at least 1KB")
	}
	if c.Broker.LargeMessageThreshold < 1 {
		return fmt.Errorf("broker.large_message_threshold must be positive")
	}
	if c.Broker.StartupTimeout <= 0 {
		return fmt.Errorf("broker.startup_timeout must be positive")
	}
	if !validLevel(c.Broker.LogLevel) {
		return fmt.Errorf("broker.log_level must be one of: debug, info, warn, error")
	}

	if c.Topic.Name == "" {
		return fmt.Errorf("topic.name cannot be empty")
	}

	if c.Producer.ClientID == "" {
		return fmt.Errorf("producer.client_id cannot be empty")
	}
	if c.Producer.MessageBytes < 4 {
		return fmt.Errorf("producer.message_bytes must be at least 4")
	}
	if n := payload.EncodedSize(c.Producer.MessageBytes); n > c.Broker.MaxMessageBytes {
		return fmt.Errorf("producer.message_bytes encodes to %d bytes, above broker.max_message_bytes (%d)", n, c.Broker.MaxMessageBytes)
	}
	if c.Producer.Interval <= 0 {
		return fmt.Errorf("producer.interval must be positive")
	}

	if c.Consumer.ClientID == "" {
		return fmt.Errorf("consumer.client_id cannot be empty")
	}
	if c.Consumer.ClientID == c.Producer.ClientID {
		return fmt.Errorf("consumer.client_id must differ from producer.client_id")
	}
	if c.Consumer.Dispatch != DispatchWorker && c.Consumer.Dispatch != DispatchInline {
		return fmt.Errorf("consumer.dispatch must be one of: worker, inline")
	}
	if c.Consumer.Workers < 1 {
		return fmt.Errorf("consumer.workers must be at least 1")
	}
	if c.Consumer.Buffer < 1 {
		return fmt.Errorf("consumer.buffer must be at least 1")
	}

	if c.Client.ConnectTimeout <= 0 {
		return fmt.Errorf("client.connect_timeout must be positive")
	}
	if c.Client.QoS > 2 {
		return fmt.Errorf("client.qos must be 0, 1 or 2")
	}

	if !validLevel(c.Log.Level) {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true, "console": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: text, json, console")
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return fmt.Errorf("telemetry.endpoint cannot be empty when telemetry enabled")
		}
		if c.Telemetry.ServiceName == "" {
			return fmt.Errorf("telemetry.service_name cannot be empty when telemetry enabled")
		}
		if c.Telemetry.TraceSampleRate < 0.0 || c.Telemetry.TraceSampleRate > 1.0 {
			return fmt.Errorf("telemetry.trace_sample_rate must be between 0.0 and 1.0")
		}
	}

	return nil
}

// BrokerAddr returns the host:port part of the broker URL.
func (c *Config) BrokerAddr() (string, error) {
	u, err := url.Parse(c.Broker.URL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", c.Broker.URL)
	}
	if _, _, err := net.SplitHostPort(u.Host); err != nil {
		return "", err
	}
	return u.Host, nil
}

func validLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
