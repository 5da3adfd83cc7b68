package testutil

import (
	"jch-go/internal/encryption"
	"jch-go/internal/history"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() history.Encryptor {
	return encryption.NewTestEncryptor()
}
