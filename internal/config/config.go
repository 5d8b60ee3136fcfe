// Package config loads wikindex configuration from defaults, the user
// config file, a project config file (YAML or TOML) and WIKINDEX_* environment
// variables, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Dedup policies for the index queue.
const (
	DedupNone     = "none"
	DedupKeepLast = "keep_last"
)

// Content source types.
const (
	SourceFS  = "fs"
	SourceSQL = "sql"
)

// Config represents the complete wikindex configuration.
type Config struct {
	Version int           `yaml:"version" toml:"version" json:"version"`
	Index   IndexConfig   `yaml:"index" toml:"index" json:"index"`
	Updater UpdaterConfig `yaml:"updater" toml:"updater" json:"updater"`
	Extract ExtractConfig `yaml:"extract" toml:"extract" json:"extract"`
	Source  SourceConfig  `yaml:"source" toml:"source" json:"source"`
	Notify  NotifyConfig  `yaml:"notify" toml:"notify" json:"notify"`
	Search  SearchConfig  `yaml:"search" toml:"search" json:"search"`
	Server  ServerConfig  `yaml:"server" toml:"server" json:"server"`
	Rebuild RebuildConfig `yaml:"rebuild" toml:"rebuild" json:"rebuild"`
}

// IndexConfig configures index storage.
type IndexConfig struct {
	// Paths lists index locations. The first one is the writable index;
	// the rest are opened read-only and searched alongside it.
	Paths []string `yaml:"paths" toml:"paths" json:"paths"`
	// Compact forces a segment merge after every committed drain cycle.
	Compact bool `yaml:"compact" toml:"compact" json:"compact"`
}

// UpdaterConfig configures the background index worker.
type UpdaterConfig struct {
	// Interval between drain cycles (default: "300s").
	Interval string `yaml:"interval" toml:"interval" json:"interval"`
	// WriterRetries is how many extra attempts are made to open the writer.
	WriterRetries int `yaml:"writer_retries" toml:"writer_retries" json:"writer_retries"`
	// Dedup is "none" or "keep_last".
	Dedup string `yaml:"dedup" toml:"dedup" json:"dedup"`
}

// ExtractConfig configures attachment text extraction.
type ExtractConfig struct {
	// TikaURL enables legacy office formats through an Apache Tika server.
	TikaURL string `yaml:"tika_url" toml:"tika_url" json:"tika_url"`
	// Timeout bounds a single remote extraction call.
	Timeout string `yaml:"timeout" toml:"timeout" json:"timeout"`
}

// SourceConfig selects the content source.
type SourceConfig struct {
	Type string `yaml:"type" toml:"type" json:"type"`
	// Root is the wiki directory for the fs source.
	Root string `yaml:"root" toml:"root" json:"root"`
	// Driver is "sqlite" or "postgres" for the sql source.
	Driver string `yaml:"driver" toml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" toml:"dsn" json:"dsn"`
}

// NotifyConfig configures change notification adapters.
type NotifyConfig struct {
	// Watch enables fsnotify watching of the fs source root.
	Watch bool        `yaml:"watch" toml:"watch" json:"watch"`
	Kafka KafkaConfig `yaml:"kafka" toml:"kafka" json:"kafka"`
	Redis RedisConfig `yaml:"redis" toml:"redis" json:"redis"`
}

// KafkaConfig configures the Kafka change-event listener.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" toml:"brokers" json:"brokers"`
	Topic   string   `yaml:"topic" toml:"topic" json:"topic"`
	Group   string   `yaml:"group" toml:"group" json:"group"`
}

// RedisConfig configures the Redis pub/sub change-event listener.
type RedisConfig struct {
	Addr    string `yaml:"addr" toml:"addr" json:"addr"`
	Channel string `yaml:"channel" toml:"channel" json:"channel"`
}

// SearchConfig configures the query side.
type SearchConfig struct {
	CacheSize  int `yaml:"cache_size" toml:"cache_size" json:"cache_size"`
	MaxResults int `yaml:"max_results" toml:"max_results" json:"max_results"`
	// URLTemplate builds attachment download URLs. Placeholders:
	// {wiki} {container} {page} {filename}.
	URLTemplate string `yaml:"url_template" toml:"url_template" json:"url_template"`
}

// ServerConfig configures the HTTP server started by `wikindex serve`.
type ServerConfig struct {
	Addr      string  `yaml:"addr" toml:"addr" json:"addr"`
	LogLevel  string  `yaml:"log_level" toml:"log_level" json:"log_level"`
	RateLimit float64 `yaml:"rate_limit" toml:"rate_limit" json:"rate_limit"`
}

// RebuildConfig configures full re-indexing.
type RebuildConfig struct {
	// Parallelism is the number of namespaces enumerated concurrently.
	Parallelism int `yaml:"parallelism" toml:"parallelism" json:"parallelism"`
}

// NewConfig creates a Config with defaults applied.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			Paths:   []string{filepath.Join(defaultDataDir(), "index")},
			Compact: true,
		},
		Updater: UpdaterConfig{
			Interval:      "300s",
			WriterRetries: 2,
			Dedup:         DedupNone,
		},
		Extract: ExtractConfig{
			Timeout: "30s",
		},
		Source: SourceConfig{
			Type:   SourceFS,
			Root:   "wiki",
			Driver: "sqlite",
		},
		Notify: NotifyConfig{
			Kafka: KafkaConfig{Topic: "wiki-changes", Group: "wikindex"},
			Redis: RedisConfig{Channel: "wiki-changes"},
		},
		Search: SearchConfig{
			CacheSize:   512,
			MaxResults:  50,
			URLTemplate: "/download/{wiki}/{container}/{page}/{filename}",
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8787",
			LogLevel:  "info",
			RateLimit: 20,
		},
		Rebuild: RebuildConfig{
			Parallelism: 1,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".wikindex")
	}
	return filepath.Join(home, ".wikindex")
}

// GetUserConfigPath returns the user configuration file path, honouring
// XDG_CONFIG_HOME.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "wikindex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "wikindex", "config.yaml")
	}
	return filepath.Join(home, ".config", "wikindex", "config.yaml")
}

// Load loads configuration for the given project directory:
//  1. Hardcoded defaults
//  2. User config (~/.config/wikindex/config.yaml)
//  3. Project config (wikindex.yaml, wikindex.yml or wikindex.toml in dir)
//  4. Environment variables (WIKINDEX_*)
func Load(dir string) (*Config, error) {
	project := ""
	for _, name := range []string{"wikindex.yaml", "wikindex.yml", "wikindex.toml"} {
		if path := filepath.Join(dir, name); fileExists(path) {
			project = path
			break
		}
	}
	return load(project)
}

// LoadPath is Load with an explicit project config file, which must exist.
func LoadPath(path string) (*Config, error) {
	if !fileExists(path) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return load(path)
}

func load(project string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.LoadFile(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if project != "" {
		if err := cfg.LoadFile(project); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile merges a YAML or TOML file (chosen by extension) into c. Keys
// present in the file replace the current value, including false, zero and
// negative values; absent keys keep it.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Decode into a copy so a parse error leaves c untouched.
	merged := c.clone()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, merged); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, merged); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	*c = *merged
	return nil
}

// clone copies c, including its slices.
func (c *Config) clone() *Config {
	out := *c
	out.Index.Paths = append([]string(nil), c.Index.Paths...)
	out.Notify.Kafka.Brokers = append([]string(nil), c.Notify.Kafka.Brokers...)
	return &out
}

// applyEnvOverrides applies WIKINDEX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("WIKINDEX_INDEX_PATHS"); v != "" {
		c.Index.Paths = splitList(v)
	}
	if v := os.Getenv("WIKINDEX_UPDATER_INTERVAL"); v != "" {
		c.Updater.Interval = v
	}
	if v := os.Getenv("WIKINDEX_UPDATER_DEDUP"); v != "" {
		c.Updater.Dedup = v
	}
	if v := os.Getenv("WIKINDEX_TIKA_URL"); v != "" {
		c.Extract.TikaURL = v
	}
	if v := os.Getenv("WIKINDEX_SOURCE_TYPE"); v != "" {
		c.Source.Type = v
	}
	if v := os.Getenv("WIKINDEX_SOURCE_ROOT"); v != "" {
		c.Source.Root = v
	}
	if v := os.Getenv("WIKINDEX_SOURCE_DSN"); v != "" {
		c.Source.DSN = v
	}
	if v := os.Getenv("WIKINDEX_KAFKA_BROKERS"); v != "" {
		c.Notify.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("WIKINDEX_REDIS_ADDR"); v != "" {
		c.Notify.Redis.Addr = v
	}
	if v := os.Getenv("WIKINDEX_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("WIKINDEX_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("WIKINDEX_REBUILD_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Rebuild.Parallelism = n
		}
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if len(c.Index.Paths) == 0 || c.Index.Paths[0] == "" {
		return fmt.Errorf("index.paths must name at least one location")
	}

	if d, err := time.ParseDuration(c.Updater.Interval); err != nil || d <= 0 {
		return fmt.Errorf("updater.interval must be a positive duration, got %q", c.Updater.Interval)
	}
	if c.Updater.WriterRetries < 0 {
		return fmt.Errorf("updater.writer_retries must be non-negative, got %d", c.Updater.WriterRetries)
	}
	switch c.Updater.Dedup {
	case DedupNone, DedupKeepLast:
	default:
		return fmt.Errorf("updater.dedup must be 'none' or 'keep_last', got %s", c.Updater.Dedup)
	}

	if c.Extract.Timeout != "" {
		if _, err := time.ParseDuration(c.Extract.Timeout); err != nil {
			return fmt.Errorf("extract.timeout is not a duration: %q", c.Extract.Timeout)
		}
	}

	switch c.Source.Type {
	case SourceFS:
		if c.Source.Root == "" {
			return fmt.Errorf("source.root is required for the fs source")
		}
	case SourceSQL:
		if c.Source.Driver != "sqlite" && c.Source.Driver != "postgres" {
			return fmt.Errorf("source.driver must be 'sqlite' or 'postgres', got %s", c.Source.Driver)
		}
		if c.Source.DSN == "" {
			return fmt.Errorf("source.dsn is required for the sql source")
		}
	default:
		return fmt.Errorf("source.type must be 'fs' or 'sql', got %s", c.Source.Type)
	}

	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.max_results must be non-negative, got %d", c.Search.MaxResults)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	if c.Rebuild.Parallelism < 1 {
		return fmt.Errorf("rebuild.parallelism must be at least 1, got %d", c.Rebuild.Parallelism)
	}
	return nil
}

// UpdaterInterval returns the parsed drain-cycle interval.
func (c *Config) UpdaterInterval() time.Duration {
	d, err := time.ParseDuration(c.Updater.Interval)
	if err != nil || d <= 0 {
		return 300 * time.Second
	}
	return d
}

// ExtractTimeout returns the parsed remote extraction timeout.
func (c *Config) ExtractTimeout() time.Duration {
	d, err := time.ParseDuration(c.Extract.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
