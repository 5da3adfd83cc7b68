package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir:              "/var/lib/jch",
		HistoryRoot:          "/var/lib/jch/config-history",
		ObjectsDir:           "/var/lib/jch/objects",
		LogDir:               "/var/lib/jch/log",
		MaxDaysToKeepEntries: "30",
		ExcludePatterns:      []string{"^queue$", "nodeMonitors"},
		Users: []UserConfig{
			{Name: "admin", Capabilities: []string{"configure_system", "configure_jobs"}},
			{Name: "dev", Capabilities: []string{"configure_jobs"}},
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: "/var/lib/jch/db"},
		Archive:  ArchiveConfig{Enabled: true, Type: "s3", S3Bucket: "history", S3Region: "eu-west-1", Encrypt: true},
		Server:   ServerConfig{Listen: ":9090", PurgeInterval: "6h"},
		Metrics:  MetricsConfig{Enabled: true, TextfilePath: "/var/lib/node_exporter/jch.prom"},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.HistoryRoot != original.HistoryRoot {
		t.Errorf("HistoryRoot = %q, want %q", got.HistoryRoot, original.HistoryRoot)
	}
	if got.MaxDaysToKeepEntries != "30" {
		t.Errorf("MaxDaysToKeepEntries = %q, want %q", got.MaxDaysToKeepEntries, "30")
	}
	if len(got.ExcludePatterns) != 2 {
		t.Errorf("len(ExcludePatterns) = %d, want 2", len(got.ExcludePatterns))
	}
	if len(got.Users) != 2 {
		t.Fatalf("len(Users) = %d, want 2", len(got.Users))
	}
	if got.Users[1].Name != "dev" || len(got.Users[1].Capabilities) != 1 {
		t.Errorf("Users[1] = %+v", got.Users[1])
	}
	if got.Archive.Type != "s3" || got.Archive.S3Bucket != "history" || !got.Archive.Encrypt {
		t.Errorf("Archive = %+v", got.Archive)
	}
	if got.Server.Listen != ":9090" {
		t.Errorf("Server.Listen = %q, want %q", got.Server.Listen, ":9090")
	}
	if got.Metrics.TextfilePath != original.Metrics.TextfilePath {
		t.Errorf("Metrics.TextfilePath = %q, want %q", got.Metrics.TextfilePath, original.Metrics.TextfilePath)
	}
}

func TestManager_Read_PluginStyleMaxDays(t *testing.T) {
	input := `
history_root = "/h"
max_days_to_keep_entries = ""
`
	cfg, err := (&Manager{}).Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cfg.MaxDaysToKeepEntries != "" {
		t.Errorf("MaxDaysToKeepEntries = %q, want empty", cfg.MaxDaysToKeepEntries)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/jch")

	tests := []struct {
		field string
		got   string
		want  string
	}{
		{"BaseDir", cfg.BaseDir, "/data/jch"},
		{"HistoryRoot", cfg.HistoryRoot, "/data/jch/config-history"},
		{"ObjectsDir", cfg.ObjectsDir, "/data/jch/objects"},
		{"LogDir", cfg.LogDir, "/data/jch/log"},
		{"Database.DataDir", cfg.Database.DataDir, "/data/jch/db"},
		{"Archive.FSRoot", cfg.Archive.FSRoot, "/data/jch/archive"},
		{"Encryption.PublicKeyPath", cfg.Encryption.PublicKeyPath, "/data/jch/keys/jch.pub"},
		{"Encryption.PrivateKeyPath", cfg.Encryption.PrivateKeyPath, "/data/jch/keys/jch.key"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.field, tt.got, tt.want)
		}
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on default config error = %v", err)
	}
}

func TestConfig_PurgeIntervalDuration(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    time.Duration
		wantErr bool
	}{
		{name: "unset uses default", value: "", want: DefaultPurgeInterval},
		{name: "hours", value: "6h", want: 6 * time.Hour},
		{name: "garbage", value: "soon", wantErr: true},
		{name: "zero", value: "0s", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Server: ServerConfig{PurgeInterval: tt.value}}
			got, err := cfg.PurgeIntervalDuration()
			if (err != nil) != tt.wantErr {
				t.Fatalf("PurgeIntervalDuration() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("PurgeIntervalDuration() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing history root", mutate: func(c *Config) { c.HistoryRoot = "" }, wantErr: true},
		{name: "unnamed user", mutate: func(c *Config) { c.Users = []UserConfig{{}} }, wantErr: true},
		{name: "bad archive type", mutate: func(c *Config) {
			c.Archive.Enabled = true
			c.Archive.Type = "tape"
		}, wantErr: true},
		{name: "disabled archive type ignored", mutate: func(c *Config) { c.Archive.Type = "tape" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("/data/jch")
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "jch.toml")

		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "jch.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "jch.toml")
		cfg := NewConfig(dir)
		cfg.MaxDaysToKeepEntries = "14"

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.MaxDaysToKeepEntries != "14" {
			t.Errorf("MaxDaysToKeepEntries = %q, want %q", got.MaxDaysToKeepEntries, "14")
		}
		if got.HistoryRoot != cfg.HistoryRoot {
			t.Errorf("HistoryRoot = %q, want %q", got.HistoryRoot, cfg.HistoryRoot)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/jch.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
