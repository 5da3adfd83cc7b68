package history

import "io"

// Vault is a key/value object store used to archive purged records.
// Keys are slash-separated paths.
type Vault interface {
	// PutObject stores size bytes read from r under key, replacing any
	// previous object.
	PutObject(key string, r io.Reader, size int64) error

	// GetObject writes the object stored under key to w. A missing key
	// fails with ErrNotFound.
	GetObject(key string, w io.Writer) error

	// ValidateSetup verifies that the vault is reachable and writable.
	ValidateSetup() error
}

// Encryptor encrypts archived objects. Encryption uses the public key only;
// decryption requires unlocking the private key with a passphrase.
type Encryptor interface {
	// Setup generates a key pair and protects the private key with
	// passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key and returns a context that can
	// decrypt archived objects.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}

// Archiver keeps a copy of a record before the purger deletes it.
type Archiver interface {
	Archive(rec *Record, content []byte) error
}
