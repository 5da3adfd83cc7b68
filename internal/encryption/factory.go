package encryption

import (
	"fmt"

	"jch-go/internal/config"
	"jch-go/internal/history"
)

// NewEncryptorFromConfig creates the archive Encryptor named by cfg.Type.
// The age encryptor needs both key paths; the test encryptor needs none.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (history.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("age encryption requires public_key_path and private_key_path")
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown archive encryption type: %q", cfg.Type)
	}
}
