package archive

import (
	"context"
	"fmt"

	"jch-go/internal/config"
	"jch-go/internal/history"
)

// NewVaultFromConfig creates a Vault implementation based on the archive config type.
func NewVaultFromConfig(ctx context.Context, cfg config.ArchiveConfig) (history.Vault, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault(), nil
	case "s3":
		return NewS3Vault(ctx, cfg)
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem archive requires fs_root to be set")
		}
		return NewFileSystemVault(cfg.FSRoot)
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}
