package archive

import (
	"context"
	"path/filepath"
	"testing"

	"jch-go/internal/config"
)

func TestNewVaultFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ArchiveConfig
		wantErr bool
	}{
		{name: "memory", cfg: config.ArchiveConfig{Type: "memory"}},
		{name: "filesystem", cfg: config.ArchiveConfig{Type: "filesystem", FSRoot: filepath.Join(t.TempDir(), "a")}},
		{name: "filesystem without root", cfg: config.ArchiveConfig{Type: "filesystem"}, wantErr: true},
		{name: "s3 without bucket", cfg: config.ArchiveConfig{Type: "s3"}, wantErr: true},
		{name: "unknown", cfg: config.ArchiveConfig{Type: "tape"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewVaultFromConfig(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewVaultFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got == nil {
				t.Error("NewVaultFromConfig() returned nil vault")
			}
		})
	}
}
