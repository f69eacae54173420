package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable pointing at an optional YAML file.
const FileEnv = "IOCLENS_CONFIG"

type Config struct {
	HTTPAddr string `yaml:"http_addr" envconfig:"HTTP_ADDR"`
	GRPCAddr string `yaml:"grpc_addr" envconfig:"GRPC_ADDR"`
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`

	MaxTextBytes int `yaml:"max_text_bytes" envconfig:"MAX_TEXT_BYTES"`
	MaxURLLen    int `yaml:"max_url_len" envconfig:"MAX_URL_LEN"`
	DecodeRounds int `yaml:"decode_rounds" envconfig:"DECODE_ROUNDS"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST"`

	// HistorySessions bounds how many client sessions keep export history.
	HistorySessions int `yaml:"history_sessions" envconfig:"HISTORY_SESSIONS"`

	// DefangDefault applies when a request does not say whether to defang.
	DefangDefault bool `yaml:"defang_default" envconfig:"DEFANG_DEFAULT"`
}

func Default() Config {
	return Config{
		HTTPAddr:        ":8080",
		GRPCAddr:        ":9090",
		LogLevel:        "info",
		MaxTextBytes:    1 << 20,
		MaxURLLen:       8192,
		DecodeRounds:    3,
		RateLimitRPS:    50,
		RateLimitBurst:  100,
		HistorySessions: 1024,
		DefangDefault:   true,
	}
}

// Load builds the config from defaults, then the YAML file named by
// IOCLENS_CONFIG (if any), then environment variables, and validates it.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Validate reports every bad field at once.
func (c Config) Validate() error {
	var errs []string

	if c.HTTPAddr == "" {
		errs = append(errs, "HTTP_ADDR must not be empty")
	}
	if c.GRPCAddr == "" {
		errs = append(errs, "GRPC_ADDR must not be empty")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("LOG_LEVEL=%q: must be debug, info, warn or error", c.LogLevel))
	}
	if c.MaxTextBytes < 1 || c.MaxTextBytes > 16<<20 {
		errs = append(errs, fmt.Sprintf("MAX_TEXT_BYTES=%d: must be 1..%d", c.MaxTextBytes, 16<<20))
	}
	if c.MaxURLLen < 64 || c.MaxURLLen > 65536 {
		errs = append(errs, fmt.Sprintf("MAX_URL_LEN=%d: must be 64..65536", c.MaxURLLen))
	}
	if c.DecodeRounds < 1 || c.DecodeRounds > 10 {
		errs = append(errs, fmt.Sprintf("DECODE_ROUNDS=%d: must be 1..10", c.DecodeRounds))
	}
	if c.RateLimitRPS <= 0 {
		errs = append(errs, fmt.Sprintf("RATE_LIMIT_RPS=%g: must be > 0", c.RateLimitRPS))
	}
	if c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Sprintf("RATE_LIMIT_BURST=%d: must be >= 1", c.RateLimitBurst))
	}

	if c.HistorySessions < 1 || c.HistorySessions > 1<<20 {
		errs = append(errs, fmt.Sprintf("HISTORY_SESSIONS=%d: must be 1..%d", c.HistorySessions, 1<<20))
	}

	if len(errs) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("invalid config:\n")
	for i, e := range errs {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e)
	}
	return errors.New(sb.String())
}
