package history

import (
	"errors"
	"fmt"
	"strconv"
)

// RestoreResult describes a restored object.
type RestoreResult struct {
	Name         string // name the object was recreated under
	Handle       *ObjectHandle
	Source       string // timestamp of the snapshot used
	HistoryMoved bool   // false if relocating the old history failed
}

// Restorer brings deleted objects back to life.
type Restorer struct {
	store  Store
	host   Host
	logger Logger
}

// NewRestorer creates a Restorer.
func NewRestorer(store Store, host Host, logger Logger) *Restorer {
	return &Restorer{store: store, host: host, logger: logger}
}

// Restore recreates the deleted object deletedName from its last readable
// snapshot, under its base name or the first free "<base>_N" variant, and
// carries its history over to the new name. Once the host has created the
// object, a failure to relocate the history does not undo the restore;
// the result reports HistoryMoved=false.
func (r *Restorer) Restore(auth Authorization, deletedName string) (*RestoreResult, error) {
	if !auth.ConfigureJobs {
		return nil, fmt.Errorf("%w: %s may not restore jobs", ErrPermissionDenied, auth.Subject)
	}
	if err := ValidateName(deletedName); err != nil {
		return nil, err
	}
	if !IsDeletedName(deletedName) {
		return nil, fmt.Errorf("%w: not a deleted object: %s", ErrInvalidInput, deletedName)
	}

	source, content, err := r.lastSnapshot(deletedName)
	if err != nil {
		return nil, err
	}

	newName := r.freeName(BaseName(deletedName))
	handle, err := r.host.CreateObject(newName, content)
	if err != nil {
		return nil, fmt.Errorf("%w: creating %s: %w", ErrHostOperationFailed, newName, err)
	}

	result := &RestoreResult{Name: newName, Handle: handle, Source: source.Timestamp, HistoryMoved: true}
	if err := r.store.MoveHistory(RootJobs, deletedName, newName); err != nil {
		r.logger.Error("moving history failed", "from", deletedName, "to", newName, "error", err)
		result.HistoryMoved = false
	}
	r.logger.Info("object restored", "from", deletedName, "name", newName, "snapshot", source.Timestamp, "user", auth.Subject)

	r.markRestored(newName)
	return result, nil
}

// lastSnapshot picks the newest record with content, falling back to the
// second newest. An object deleted while disabled has no snapshot in its
// final record.
func (r *Restorer) lastSnapshot(name string) (*Record, []byte, error) {
	records, err := r.store.ListRecords(RootJobs, name)
	if err != nil {
		return nil, nil, fmt.Errorf("listing records for %s: %w", name, err)
	}

	for i := len(records) - 1; i >= 0 && i >= len(records)-2; i-- {
		content, err := r.store.ReadContent(records[i])
		if err != nil {
			r.logger.Warn("unreadable snapshot", "name", name, "timestamp", records[i].Timestamp, "error", err)
			continue
		}
		if content != nil {
			return records[i], content, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: no readable snapshot for %s", ErrRestoreFailed, name)
}

// freeName returns base if no live object uses it, otherwise the first
// free name of base_0, base_1, ...
func (r *Restorer) freeName(base string) string {
	if !r.host.HasObject(base) {
		return base
	}
	for i := 0; ; i++ {
		candidate := base + "_" + strconv.Itoa(i)
		if !r.host.HasObject(candidate) {
			return candidate
		}
	}
}

// markRestored rewrites the earliest record of name from Created to
// Restored.
func (r *Restorer) markRestored(name string) {
	records, err := r.store.ListRecords(RootJobs, name)
	if err != nil || len(records) == 0 {
		if err != nil {
			r.logger.Warn("reading restored history failed", "name", name, "error", err)
		}
		return
	}

	first := records[0]
	if first.Operation != OpCreated {
		return
	}
	first.Operation = OpRestored
	if err := r.store.UpdateRecord(first); err != nil && !errors.Is(err, ErrNotFound) {
		r.logger.Warn("rewriting lifecycle record failed", "name", name, "timestamp", first.Timestamp, "error", err)
	}
}
