package testutil

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"jch-go/internal/history"
	"jch-go/internal/store"
)

// NewTestStore creates a FileSystemStore rooted in a fresh temp directory.
func NewTestStore(t *testing.T) *store.FileSystemStore {
	t.Helper()
	return store.NewFileSystemStore(filepath.Join(t.TempDir(), "config-history"), "", history.NewNopLogger())
}

// SnapshotXML is the snapshot content AddRecord writes by default.
func SnapshotXML(name, ts string) []byte {
	return []byte("<project>\n  <description>" + name + "</description>\n  <saved>" + ts + "</saved>\n</project>\n")
}

// History writes records with explicit timestamps into a store.
type History struct {
	t     *testing.T
	store history.Store
}

// NewHistory creates a fixture builder over s.
func NewHistory(t *testing.T, s history.Store) *History {
	return &History{t: t, store: s}
}

// AddRecord writes a record with SnapshotXML content.
func (h *History) AddRecord(root history.RootKind, name, ts string, op history.Operation) *history.Record {
	h.t.Helper()
	return h.AddRecordContent(root, name, ts, op, SnapshotXML(name, ts))
}

// AddRecordContent writes a record with the given content. nil content
// leaves the record without a snapshot.
func (h *History) AddRecordContent(root history.RootKind, name, ts string, op history.Operation, content []byte) *history.Record {
	h.t.Helper()
	rec := &history.Record{
		Root:       root,
		ObjectName: name,
		Timestamp:  ts,
		Operation:  op,
		User:       "alice",
		UserID:     "alice",
	}
	if err := h.store.WriteRecord(rec, content); err != nil {
		h.t.Fatalf("WriteRecord(%s/%s) error = %v", name, ts, err)
	}
	rec.HasContent = content != nil
	return rec
}

// DaysAgo formats the timestamp d days before now.
func DaysAgo(now time.Time, d int) string {
	return history.FormatTimestamp(now.Add(-time.Duration(d) * 24 * time.Hour))
}

// Timestamps returns the timestamps of an object's records in ascending
// order.
func (h *History) Timestamps(root history.RootKind, name string) []string {
	h.t.Helper()
	records, err := h.store.ListRecords(root, name)
	if err != nil {
		h.t.Fatalf("ListRecords(%s) error = %v", name, err)
	}
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Timestamp)
	}
	return out
}

// FaultyStore wraps a Store and injects failures into its mutations.
type FaultyStore struct {
	history.Store

	// MoveErr, when set, is returned by MoveHistory.
	MoveErr error

	// FailDelete selects the records DeleteRecord refuses to delete.
	FailDelete func(rec *history.Record) bool
}

func (f *FaultyStore) MoveHistory(root history.RootKind, from, to string) error {
	if f.MoveErr != nil {
		return f.MoveErr
	}
	return f.Store.MoveHistory(root, from, to)
}

func (f *FaultyStore) DeleteRecord(rec *history.Record) error {
	if f.FailDelete != nil && f.FailDelete(rec) {
		return fmt.Errorf("deleting %s/%s: permission denied", rec.ObjectName, rec.Timestamp)
	}
	return f.Store.DeleteRecord(rec)
}
