package qdb

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file form of the client settings shared by tools built on
// this package.
type Config struct {
	ClusterURI string         `yaml:"cluster_uri"`
	Timeout    time.Duration  `yaml:"timeout"`
	Security   SecurityConfig `yaml:"security"`
	Log        LogConfig      `yaml:"log"`
	Library    LibraryConfig  `yaml:"library"`
	Batch      BatchConfig    `yaml:"batch"`
}

type SecurityConfig struct {
	ClusterPublicKeyFile string `yaml:"cluster_public_key_file"`
	UserCredentialsFile  string `yaml:"user_credentials_file"`
}

func (s SecurityConfig) enabled() bool {
	return s.ClusterPublicKeyFile != "" || s.UserCredentialsFile != ""
}

type BatchConfig struct {
	ShardSize time.Duration `yaml:"shard_size"`
	PushMode  string        `yaml:"push_mode"`
}

const DefaultClusterURI = "qdb://127.0.0.1:2836"

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() Config {
	return Config{
		ClusterURI: DefaultClusterURI,
		Timeout:    DefaultTimeout,
		Log:        LogConfig{Level: "info", Encoding: "json"},
		Batch:      BatchConfig{ShardSize: DefaultShardSize, PushMode: PushNormal.String()},
	}
}

// LoadConfig applies, in order, the defaults, the YAML file at path when
// path is not empty, and the QDB_CLUSTER_URI and QDB_LIB_PATH environment
// variables. ${VAR} references in the file are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		content := substituteEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	if uri := os.Getenv("QDB_CLUSTER_URI"); uri != "" {
		cfg.ClusterURI = uri
	}
	if lib := os.Getenv("QDB_LIB_PATH"); lib != "" {
		cfg.Library.Path = lib
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the settings that Open would otherwise reject later.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.ClusterURI, "qdb://") {
		return fmt.Errorf("cluster_uri %q: expected qdb://host:port", c.ClusterURI)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.Batch.ShardSize < time.Millisecond {
		return fmt.Errorf("batch.shard_size must be at least 1ms, got %v", c.Batch.ShardSize)
	}
	if _, err := ParsePushMode(c.Batch.PushMode); err != nil {
		return fmt.Errorf("batch.push_mode: %w", err)
	}
	return nil
}

// Options turns the settings into Open options. Security files are read
// here.
func (c Config) Options() ([]Option, error) {
	opts := []Option{WithTimeout(c.Timeout), WithLibrary(c.Library)}
	if c.Security.enabled() {
		sec, err := LoadSecurity(c.Security.ClusterPublicKeyFile, c.Security.UserCredentialsFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithSecurity(sec))
	}
	return opts, nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
