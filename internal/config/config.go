package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GeneratorConfig drives the synthetic stream generator.
type GeneratorConfig struct {
	Count        int     `yaml:"count"`
	Seed         int64   `yaml:"seed"`
	RecordFormat string  `yaml:"record_format"`
	ByteOrder    string  `yaml:"byte_order"`
	Compression  string  `yaml:"compression"`
	IPv6Fraction float64 `yaml:"ipv6_fraction"`
	StartTime    string  `yaml:"start_time"`
	Sensor       uint16  `yaml:"sensor"`
}

// APIConfig holds the settings for the metadata HTTP service.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	RootPath   string `yaml:"root_path"`
}

// BusConfig holds the NATS transport settings for IPFIX messages.
type BusConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// ClickHouseConfig holds the connection settings for the flow store.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config is the top-level configuration struct shared by the tools.
type Config struct {
	Generator  GeneratorConfig  `yaml:"generator"`
	API        APIConfig        `yaml:"api"`
	Bus        BusConfig        `yaml:"bus"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	return &cfg, nil
}
