// Package config loads the optional perfmon configuration file. TOML and YAML
// are accepted, chosen by file extension. Durations accept day units such as
// "1d" and sizes accept units such as "64KB".
package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/BurntSushi/toml"
	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"
	"k8s.io/kube-openapi/pkg/validation/strfmt"
)

type Format string

const (
	TOML Format = "toml"
	YAML Format = "yaml"
)

type Config struct {
	LogLevel  string          `toml:"log_level" yaml:"log_level"`
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Monitor   MonitorConfig   `toml:"monitor" yaml:"monitor"`
	Collector CollectorConfig `toml:"collector" yaml:"collector"`
	Export    ExportConfig    `toml:"export" yaml:"export"`
}

type ServerConfig struct {
	Host            string  `toml:"host" yaml:"host"`
	Port            int     `toml:"port" yaml:"port"`
	MaxBodySize     string  `toml:"max_body_size" yaml:"max_body_size"`
	IngestRate      float64 `toml:"ingest_rate" yaml:"ingest_rate"`
	IngestBurst     int     `toml:"ingest_burst" yaml:"ingest_burst"`
	ProcessInterval string  `toml:"process_interval" yaml:"process_interval"`
}

type MonitorConfig struct {
	BufferSize     int                `toml:"buffer_size" yaml:"buffer_size"`
	ThrottleWindow string             `toml:"throttle_window" yaml:"throttle_window"`
	SendTimeout    string             `toml:"send_timeout" yaml:"send_timeout"`
	SessionTimeout string             `toml:"session_timeout" yaml:"session_timeout"`
	AnalyticsURL   string             `toml:"analytics_url" yaml:"analytics_url"`
	EntryStream    string             `toml:"entry_stream" yaml:"entry_stream"`
	CreateFifo     bool               `toml:"create_fifo" yaml:"create_fifo"`
	Budgets        map[string]float64 `toml:"budgets" yaml:"budgets"`
}

type CollectorConfig struct {
	Host        string `toml:"host" yaml:"host"`
	Port        int    `toml:"port" yaml:"port"`
	HistorySize int    `toml:"history_size" yaml:"history_size"`
	MaxBodySize string `toml:"max_body_size" yaml:"max_body_size"`
	Output      string `toml:"output" yaml:"output"`
}

type ExportConfig struct {
	Provider   string `toml:"provider" yaml:"provider"`
	ChunkSize  string `toml:"chunk_size" yaml:"chunk_size"`
	SizeLimit  string `toml:"size_limit" yaml:"size_limit"`
	BufferSize string `toml:"buffer_size" yaml:"buffer_size"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8000,
			MaxBodySize: "1MB",
			IngestRate:  50,
			IngestBurst: 100,
		},
		Monitor: MonitorConfig{
			BufferSize:     100,
			ThrottleWindow: "30s",
			SendTimeout:    "10s",
			SessionTimeout: "30m",
		},
		Collector: CollectorConfig{
			Host:        "0.0.0.0",
			Port:        8001,
			HistorySize: 100,
			MaxBodySize: "64KB",
		},
		Export: ExportConfig{
			Provider:   "local",
			ChunkSize:  "16MB",
			SizeLimit:  "1GB",
			BufferSize: "1MB",
		},
	}
}

// FormatOf derives the file format from the extension of path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOML, nil
	case ".yaml", ".yml":
		return YAML, nil
	default:
		return "", errors.Errorf("unsupported config file extension %q", filepath.Ext(path))
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to read config file")
	}
	return Parse(data, format)
}

// Parse decodes data over the defaults and validates the result.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := Default()
	switch format {
	case TOML:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, errors.WrapIf(err, "invalid toml config")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Errorf("unknown config key %q", undecoded[0].String())
		}
	case YAML:
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.WrapIf(err, "invalid yaml config")
		}
	default:
		return nil, errors.Errorf("unsupported config format %q", format)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every duration and size field.
func (c *Config) Validate() error {
	var errs []error
	check := func(field string, err error) {
		if err != nil {
			errs = append(errs, errors.WrapIf(err, field))
		}
	}

	_, err := ParseSize(c.Server.MaxBodySize)
	check("server.max_body_size", err)
	_, err = ParseDuration(c.Server.ProcessInterval)
	check("server.process_interval", err)
	_, err = ParseDuration(c.Monitor.ThrottleWindow)
	check("monitor.throttle_window", err)
	_, err = ParseDuration(c.Monitor.SendTimeout)
	check("monitor.send_timeout", err)
	_, err = ParseDuration(c.Monitor.SessionTimeout)
	check("monitor.session_timeout", err)
	_, err = ParseSize(c.Collector.MaxBodySize)
	check("collector.max_body_size", err)
	_, err = ParseSize(c.Export.ChunkSize)
	check("export.chunk_size", err)
	_, err = ParseSize(c.Export.SizeLimit)
	check("export.size_limit", err)
	_, err = ParseSize(c.Export.BufferSize)
	check("export.buffer_size", err)

	if c.Monitor.BufferSize < 0 {
		errs = append(errs, errors.New("monitor.buffer_size: must not be negative"))
	}
	for name, v := range c.Monitor.Budgets {
		if v < 0 {
			errs = append(errs, errors.Errorf("monitor.budgets.%s: must not be negative", name))
		}
	}
	return errors.Combine(errs...)
}

// Encode writes c in format.
func (c *Config) Encode(format Format) ([]byte, error) {
	switch format {
	case TOML:
		var sb strings.Builder
		if err := toml.NewEncoder(&sb).Encode(c); err != nil {
			return nil, err
		}
		return []byte(sb.String()), nil
	case YAML:
		return yaml.Marshal(c)
	default:
		return nil, errors.Errorf("unsupported config format %q", format)
	}
}

// ParseDuration parses a duration, accepting day and week units. An empty
// string is zero.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return strfmt.ParseDuration(s)
}

// ParseSize parses a byte size. An empty string is zero.
func ParseSize(s string) (datasize.ByteSize, error) {
	if s == "" {
		return 0, nil
	}
	return datasize.ParseString(s)
}
