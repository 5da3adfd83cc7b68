package encryption

import (
	"path/filepath"
	"testing"

	"jch-go/internal/config"
)

func TestNewEncryptorFromConfig(t *testing.T) {
	dir := t.TempDir()
	keys := config.EncryptionConfig{
		PublicKeyPath:  filepath.Join(dir, "jch.pub"),
		PrivateKeyPath: filepath.Join(dir, "jch.key"),
	}

	tests := []struct {
		name    string
		cfg     config.EncryptionConfig
		want    string
		wantErr bool
	}{
		{name: "default is age", cfg: keys, want: "age"},
		{name: "explicit age", cfg: config.EncryptionConfig{Type: "age", PublicKeyPath: keys.PublicKeyPath, PrivateKeyPath: keys.PrivateKeyPath}, want: "age"},
		{name: "age without keys", cfg: config.EncryptionConfig{Type: "age"}, wantErr: true},
		{name: "test", cfg: config.EncryptionConfig{Type: "test"}, want: "test"},
		{name: "unknown", cfg: config.EncryptionConfig{Type: "rot13"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewEncryptorFromConfig(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewEncryptorFromConfig() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewEncryptorFromConfig() error = %v", err)
			}
			switch tt.want {
			case "age":
				if _, ok := enc.(*AgeEncryptor); !ok {
					t.Errorf("got %T, want *AgeEncryptor", enc)
				}
			case "test":
				if _, ok := enc.(*TestEncryptor); !ok {
					t.Errorf("got %T, want *TestEncryptor", enc)
				}
			}
		})
	}
}
