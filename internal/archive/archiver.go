package archive

import (
	"bytes"
	"fmt"
	"io"

	"jch-go/internal/history"
	"jch-go/internal/store"
)

// Archiver copies records into a vault before the purger deletes them.
// Each record becomes two objects, its descriptor and its snapshot, both
// encrypted when an encryptor is set.
type Archiver struct {
	vault     history.Vault
	encryptor history.Encryptor
}

var _ history.Archiver = (*Archiver)(nil)

// NewArchiver creates an Archiver. encryptor may be nil to store plain
// objects.
func NewArchiver(vault history.Vault, encryptor history.Encryptor) *Archiver {
	return &Archiver{vault: vault, encryptor: encryptor}
}

// Archive stores rec and its snapshot. content may be nil.
func (a *Archiver) Archive(rec *history.Record, content []byte) error {
	desc, err := store.EncodeDescriptor(rec)
	if err != nil {
		return err
	}
	if err := a.put(Key(rec.Root, rec.ObjectName, rec.Timestamp, store.HistoryFile), desc); err != nil {
		return err
	}
	if content == nil {
		return nil
	}
	return a.put(Key(rec.Root, rec.ObjectName, rec.Timestamp, store.ConfigFile), content)
}

func (a *Archiver) put(key string, data []byte) error {
	if a.encryptor != nil {
		var buf bytes.Buffer
		if err := a.encryptor.Encrypt(bytes.NewReader(data), &buf); err != nil {
			return fmt.Errorf("encrypting %s: %w", key, err)
		}
		data = buf.Bytes()
	}
	if err := a.vault.PutObject(key, bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("archiving %s: %w", key, err)
	}
	return nil
}

// Retrieve writes an archived object to w. dec decrypts it and must be
// nil for plain archives.
func Retrieve(vault history.Vault, key string, dec history.DecryptionContext, w io.Writer) error {
	if dec == nil {
		return vault.GetObject(key, w)
	}

	var buf bytes.Buffer
	if err := vault.GetObject(key, &buf); err != nil {
		return err
	}
	if err := dec.Decrypt(&buf, w); err != nil {
		return fmt.Errorf("decrypting %s: %w", key, err)
	}
	return nil
}
