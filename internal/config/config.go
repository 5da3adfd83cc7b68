package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultPurgeInterval is how often `jch serve` purges when
// server.purge_interval is unset.
const DefaultPurgeInterval = 24 * time.Hour

// Config represents the main configuration for jch.
type Config struct {
	BaseDir        string `toml:"base_dir"`
	HistoryRoot    string `toml:"history_root"`
	JobHistoryRoot string `toml:"job_history_root,omitempty"` // defaults to <history_root>/jobs
	ObjectsDir     string `toml:"objects_dir"`
	LogDir         string `toml:"log_dir"`

	// MaxDaysToKeepEntries is kept as a string, the way the plugin stored
	// it. Empty or non-numeric disables purging.
	MaxDaysToKeepEntries string `toml:"max_days_to_keep_entries"`

	// ExcludePatterns are regular expressions; system settings whose name
	// matches one are not recorded.
	ExcludePatterns []string `toml:"exclude_patterns,omitempty"`

	// Users is the static permission table. An empty table grants every
	// capability to everyone.
	Users []UserConfig `toml:"users,omitempty"`

	Database   DatabaseConfig   `toml:"database"`
	Archive    ArchiveConfig    `toml:"archive"`
	Encryption EncryptionConfig `toml:"encryption"`
	Server     ServerConfig     `toml:"server"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// UserConfig grants capabilities to one subject.
type UserConfig struct {
	Name         string   `toml:"name"`
	Capabilities []string `toml:"capabilities"` // "configure_system", "configure_jobs"
}

// EncryptionConfig holds paths to the age key pair used for archive encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
	Armor          bool   `toml:"armor"` // PEM-armored ciphertext
}

// ArchiveConfig represents the vault purged records are copied to.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ArchiveConfig struct {
	Enabled bool   `toml:"enabled"`
	Type    string `toml:"type"` // "memory", "s3", or "filesystem"
	Encrypt bool   `toml:"encrypt"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // for S3-compatible stores

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// DatabaseConfig represents configuration for the operation log.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ServerConfig configures `jch serve`.
type ServerConfig struct {
	Listen        string `toml:"listen"`
	PurgeInterval string `toml:"purge_interval,omitempty"` // Go duration, e.g. "6h"
}

// MetricsConfig configures metrics export.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`

	// TextfilePath, when set, receives the metrics after each CLI
	// command in the node_exporter textfile format.
	TextfilePath string `toml:"textfile_path,omitempty"`
}

// NewConfig creates a new Config rooted at baseDir with default paths.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:     baseDir,
		HistoryRoot: filepath.Join(baseDir, "config-history"),
		ObjectsDir:  filepath.Join(baseDir, "objects"),
		LogDir:      filepath.Join(baseDir, "log"),
		ExcludePatterns: []string{
			"queue|nodeMonitors|UpdateCenter|global-build-stats",
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Archive: ArchiveConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "archive"),
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "jch.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "jch.key"),
		},
		Server: ServerConfig{
			Listen:        "127.0.0.1:8080",
			PurgeInterval: DefaultPurgeInterval.String(),
		},
	}
}

// PurgeIntervalDuration parses server.purge_interval.
func (c *Config) PurgeIntervalDuration() (time.Duration, error) {
	if c.Server.PurgeInterval == "" {
		return DefaultPurgeInterval, nil
	}
	d, err := time.ParseDuration(c.Server.PurgeInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid purge_interval %q: %w", c.Server.PurgeInterval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("purge_interval must be positive, got %s", d)
	}
	return d, nil
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	if c.HistoryRoot == "" {
		return fmt.Errorf("history_root is required")
	}
	for _, u := range c.Users {
		if u.Name == "" {
			return fmt.Errorf("user entry without a name")
		}
	}
	if c.Archive.Enabled {
		switch c.Archive.Type {
		case "memory", "filesystem", "s3":
		default:
			return fmt.Errorf("unknown archive type: %q", c.Archive.Type)
		}
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to path, creating its directory.
func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to a new config file at path. An existing file is never
// overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
