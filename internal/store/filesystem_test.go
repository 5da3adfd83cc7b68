package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"jch-go/internal/history"
)

func newTestStore(t *testing.T) (*FileSystemStore, string) {
	t.Helper()
	root := t.TempDir()
	return NewFileSystemStore(root, "", history.NewNopLogger()), root
}

func mustWrite(t *testing.T, s *FileSystemStore, root history.RootKind, name, ts string, op history.Operation, content string) {
	t.Helper()
	rec := &history.Record{Root: root, ObjectName: name, Timestamp: ts, Operation: op, User: "alice", UserID: "alice"}
	var data []byte
	if content != "" {
		data = []byte(content)
	}
	if err := s.WriteRecord(rec, data); err != nil {
		t.Fatalf("WriteRecord(%s/%s) error = %v", name, ts, err)
	}
}

func TestFileSystemStore_ObjectDir(t *testing.T) {
	s, root := newTestStore(t)

	tests := []struct {
		root history.RootKind
		name string
		want string
	}{
		{history.RootSystem, "config", filepath.Join(root, "config")},
		{history.RootJobs, "Foo", filepath.Join(root, "jobs", "Foo")},
		{history.RootJobs, "folder/child", filepath.Join(root, "jobs", "folder", "jobs", "child")},
		{history.RootJobs, "a/b/c", filepath.Join(root, "jobs", "a", "jobs", "b", "jobs", "c")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.ObjectDir(tt.root, tt.name); got != tt.want {
				t.Errorf("ObjectDir() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileSystemStore_WriteAndRead(t *testing.T) {
	s, root := newTestStore(t)
	mustWrite(t, s, history.RootJobs, "Foo", "2024-01-01_10-00-00", history.OpCreated, "<project/>")

	dir := filepath.Join(root, "jobs", "Foo", "2024-01-01_10-00-00")
	desc, err := os.ReadFile(filepath.Join(dir, HistoryFile))
	if err != nil {
		t.Fatalf("reading descriptor: %v", err)
	}
	want := "<?xml version='1.0' encoding='UTF-8'?>\n" +
		"<hudson.plugins.jobConfigHistory.HistoryDescr>\n" +
		"  <user>alice</user>\n" +
		"  <userId>alice</userId>\n" +
		"  <operation>Created</operation>\n" +
		"  <timestamp>2024-01-01_10-00-00</timestamp>\n" +
		"</hudson.plugins.jobConfigHistory.HistoryDescr>\n"
	if string(desc) != want {
		t.Errorf("descriptor =\n%s\nwant\n%s", desc, want)
	}

	rec, err := s.ReadRecord(history.RootJobs, "Foo", "2024-01-01_10-00-00")
	if err != nil {
		t.Fatalf("ReadRecord() error = %v", err)
	}
	if rec == nil {
		t.Fatal("ReadRecord() returned nil")
	}
	if rec.Operation != history.OpCreated || rec.User != "alice" || !rec.HasContent {
		t.Errorf("ReadRecord() = %+v", rec)
	}

	content, err := s.ReadContent(rec)
	if err != nil {
		t.Fatalf("ReadContent() error = %v", err)
	}
	if string(content) != "<project/>" {
		t.Errorf("ReadContent() = %q", content)
	}

	// No temp directories are left behind.
	entries, _ := os.ReadDir(filepath.Join(root, "jobs", "Foo"))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tmpPrefix) {
			t.Errorf("leftover temp entry %s", e.Name())
		}
	}
}

func TestFileSystemStore_WriteRecordRejectsDuplicate(t *testing.T) {
	s, _ := newTestStore(t)
	mustWrite(t, s, history.RootSystem, "config", "2024-01-01_10-00-00", history.OpChanged, "a")

	rec := &history.Record{Root: history.RootSystem, ObjectName: "config", Timestamp: "2024-01-01_10-00-00", Operation: history.OpChanged}
	if err := s.WriteRecord(rec, []byte("b")); err == nil {
		t.Fatal("WriteRecord() expected error for existing record")
	}
}

func TestFileSystemStore_ReadAbsent(t *testing.T) {
	s, _ := newTestStore(t)

	rec, err := s.ReadRecord(history.RootJobs, "Missing", "2024-01-01_10-00-00")
	if err != nil || rec != nil {
		t.Errorf("ReadRecord() = %v, %v; want nil, nil", rec, err)
	}

	records, err := s.ListRecords(history.RootJobs, "Missing")
	if err != nil || len(records) != 0 {
		t.Errorf("ListRecords() = %v, %v; want empty", records, err)
	}

	mustWrite(t, s, history.RootJobs, "Foo", "2024-01-01_10-00-00", history.OpDeleted, "")
	rec, err = s.ReadRecord(history.RootJobs, "Foo", "2024-01-01_10-00-00")
	if err != nil {
		t.Fatalf("ReadRecord() error = %v", err)
	}
	if rec.HasContent {
		t.Error("HasContent = true for record without snapshot")
	}
	content, err := s.ReadContent(rec)
	if err != nil || content != nil {
		t.Errorf("ReadContent() = %q, %v; want nil, nil", content, err)
	}
}

func TestFileSystemStore_ListRecords(t *testing.T) {
	s, root := newTestStore(t)
	mustWrite(t, s, history.RootJobs, "Foo", "2024-01-03_00-00-00", history.OpChanged, "c")
	mustWrite(t, s, history.RootJobs, "Foo", "2024-01-01_00-00-00", history.OpCreated, "a")
	mustWrite(t, s, history.RootJobs, "Foo", "2024-01-02_00-00-00", history.OpChanged, "b")

	// Not records: bad name, and a directory without a descriptor.
	os.MkdirAll(filepath.Join(root, "jobs", "Foo", "not-a-timestamp"), 0755)
	os.MkdirAll(filepath.Join(root, "jobs", "Foo", "2024-01-04_00-00-00"), 0755)

	records, err := s.ListRecords(history.RootJobs, "Foo")
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}

	var got []string
	for _, r := range records {
		got = append(got, r.Timestamp)
	}
	want := []string{"2024-01-01_00-00-00", "2024-01-02_00-00-00", "2024-01-03_00-00-00"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ListRecords() = %v, want %v", got, want)
	}
}

func TestFileSystemStore_ListObjectNames(t *testing.T) {
	s, _ := newTestStore(t)
	mustWrite(t, s, history.RootJobs, "Bar", "2024-01-01_00-00-00", history.OpCreated, "x")
	mustWrite(t, s, history.RootJobs, "Foo_deleted_20240101_000000", "2024-01-01_00-00-00", history.OpDeleted, "")

	all, err := s.ListObjectNames(history.RootJobs, false)
	if err != nil {
		t.Fatalf("ListObjectNames() error = %v", err)
	}
	if want := []string{"Bar", "Foo_deleted_20240101_000000"}; !reflect.DeepEqual(all, want) {
		t.Errorf("ListObjectNames(false) = %v, want %v", all, want)
	}

	deleted, err := s.ListObjectNames(history.RootJobs, true)
	if err != nil {
		t.Fatalf("ListObjectNames() error = %v", err)
	}
	if want := []string{"Foo_deleted_20240101_000000"}; !reflect.DeepEqual(deleted, want) {
		t.Errorf("ListObjectNames(true) = %v, want %v", deleted, want)
	}
}

func TestFileSystemStore_UpdateRecord(t *testing.T) {
	s, _ := newTestStore(t)
	mustWrite(t, s, history.RootJobs, "Foo", "2024-01-01_00-00-00", history.OpCreated, "x")

	rec, _ := s.ReadRecord(history.RootJobs, "Foo", "2024-01-01_00-00-00")
	rec.Operation = history.OpRestored
	if err := s.UpdateRecord(rec); err != nil {
		t.Fatalf("UpdateRecord() error = %v", err)
	}

	got, _ := s.ReadRecord(history.RootJobs, "Foo", "2024-01-01_00-00-00")
	if got.Operation != history.OpRestored {
		t.Errorf("Operation = %s, want Restored", got.Operation)
	}
	content, _ := s.ReadContent(got)
	if string(content) != "x" {
		t.Errorf("snapshot changed: %q", content)
	}

	missing := &history.Record{Root: history.RootJobs, ObjectName: "Nope", Timestamp: "2024-01-01_00-00-00"}
	if err := s.UpdateRecord(missing); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("UpdateRecord(missing) error = %v, want ErrNotFound", err)
	}
}

func TestFileSystemStore_DeleteRecord(t *testing.T) {
	s, _ := newTestStore(t)
	mustWrite(t, s, history.RootSystem, "config", "2024-01-01_00-00-00", history.OpChanged, "x")
	mustWrite(t, s, history.RootSystem, "config", "2024-01-02_00-00-00", history.OpChanged, "y")

	rec, _ := s.ReadRecord(history.RootSystem, "config", "2024-01-01_00-00-00")
	if err := s.DeleteRecord(rec); err != nil {
		t.Fatalf("DeleteRecord() error = %v", err)
	}

	records, _ := s.ListRecords(history.RootSystem, "config")
	if len(records) != 1 || records[0].Timestamp != "2024-01-02_00-00-00" {
		t.Errorf("remaining records = %v", records)
	}
}

func TestFileSystemStore_MoveHistory(t *testing.T) {
	t.Run("moves all records and removes source", func(t *testing.T) {
		s, root := newTestStore(t)
		mustWrite(t, s, history.RootJobs, "Foo_deleted_x", "2024-01-01_00-00-00", history.OpCreated, "a")
		mustWrite(t, s, history.RootJobs, "Foo_deleted_x", "2024-01-02_00-00-00", history.OpDeleted, "")

		if err := s.MoveHistory(history.RootJobs, "Foo_deleted_x", "Foo"); err != nil {
			t.Fatalf("MoveHistory() error = %v", err)
		}

		if _, err := os.Stat(filepath.Join(root, "jobs", "Foo_deleted_x")); !os.IsNotExist(err) {
			t.Errorf("source directory still exists: %v", err)
		}
		records, _ := s.ListRecords(history.RootJobs, "Foo")
		if len(records) != 2 {
			t.Errorf("moved records = %d, want 2", len(records))
		}
	})

	t.Run("merges into existing target", func(t *testing.T) {
		s, _ := newTestStore(t)
		mustWrite(t, s, history.RootJobs, "Foo", "2024-01-05_00-00-00", history.OpCreated, "new")
		mustWrite(t, s, history.RootJobs, "Old", "2024-01-01_00-00-00", history.OpCreated, "old")

		if err := s.MoveHistory(history.RootJobs, "Old", "Foo"); err != nil {
			t.Fatalf("MoveHistory() error = %v", err)
		}
		records, _ := s.ListRecords(history.RootJobs, "Foo")
		if len(records) != 2 {
			t.Errorf("records = %d, want 2", len(records))
		}
	})

	t.Run("colliding record shifts to an earlier second", func(t *testing.T) {
		s, _ := newTestStore(t)
		mustWrite(t, s, history.RootJobs, "Foo", "2024-01-01_00-00-00", history.OpCreated, "new")
		mustWrite(t, s, history.RootJobs, "Old", "2023-12-31_23-59-59", history.OpCreated, "old")
		mustWrite(t, s, history.RootJobs, "Old", "2024-01-01_00-00-00", history.OpDeleted, "")

		if err := s.MoveHistory(history.RootJobs, "Old", "Foo"); err != nil {
			t.Fatalf("MoveHistory() error = %v", err)
		}

		records, err := s.ListRecords(history.RootJobs, "Foo")
		if err != nil {
			t.Fatalf("ListRecords() error = %v", err)
		}
		want := []struct {
			ts string
			op history.Operation
		}{
			{"2023-12-31_23-59-58", history.OpDeleted},
			{"2023-12-31_23-59-59", history.OpCreated},
			{"2024-01-01_00-00-00", history.OpCreated},
		}
		if len(records) != len(want) {
			t.Fatalf("records = %d, want %d", len(records), len(want))
		}
		for i, w := range want {
			if records[i].Timestamp != w.ts || records[i].Operation != w.op {
				t.Errorf("record %d = %s %s, want %s %s", i, records[i].Timestamp, records[i].Operation, w.ts, w.op)
			}
		}

		data, err := os.ReadFile(filepath.Join(s.ObjectDir(history.RootJobs, "Foo"), "2023-12-31_23-59-58", HistoryFile))
		if err != nil {
			t.Fatalf("reading descriptor: %v", err)
		}
		if !strings.Contains(string(data), "<timestamp>2023-12-31_23-59-58</timestamp>") {
			t.Errorf("descriptor not retimed:\n%s", data)
		}
	})

	t.Run("unshiftable entry is a partial failure", func(t *testing.T) {
		s, _ := newTestStore(t)
		mustWrite(t, s, history.RootJobs, "Foo", "2024-01-01_00-00-00", history.OpCreated, "new")
		mustWrite(t, s, history.RootJobs, "Foo/child", "2024-01-01_00-00-00", history.OpCreated, "x")
		mustWrite(t, s, history.RootJobs, "Old", "2024-01-02_00-00-00", history.OpChanged, "old")
		mustWrite(t, s, history.RootJobs, "Old/child", "2024-01-02_00-00-00", history.OpCreated, "y")

		err := s.MoveHistory(history.RootJobs, "Old", "Foo")
		if !errors.Is(err, history.ErrPartialFailure) {
			t.Fatalf("MoveHistory() error = %v, want ErrPartialFailure", err)
		}
		if n := len(mustList(t, s, "Foo")); n != 2 {
			t.Errorf("Foo records = %d, want 2", n)
		}
		if n := len(mustList(t, s, "Old/child")); n != 1 {
			t.Errorf("nested history left at source = %d, want 1", n)
		}
	})

	t.Run("missing source", func(t *testing.T) {
		s, _ := newTestStore(t)
		err := s.MoveHistory(history.RootJobs, "Nope", "Foo")
		if !errors.Is(err, history.ErrNotFound) {
			t.Errorf("MoveHistory() error = %v, want ErrNotFound", err)
		}
	})
}

func TestFileSystemStore_Walk(t *testing.T) {
	s, _ := newTestStore(t)
	ts := "2024-01-01_00-00-00"
	mustWrite(t, s, history.RootJobs, "Alpha", ts, history.OpCreated, "x")
	mustWrite(t, s, history.RootJobs, "folder", ts, history.OpCreated, "x")
	mustWrite(t, s, history.RootJobs, "folder/child", ts, history.OpCreated, "x")
	mustWrite(t, s, history.RootJobs, "folder/sub/leaf", ts, history.OpCreated, "x")
	mustWrite(t, s, history.RootJobs, "folder/gone_deleted_20240101_000000", ts, history.OpDeleted, "")
	mustWrite(t, s, history.RootJobs, "Zed_deleted_20240101_000000", ts, history.OpDeleted, "")
	mustWrite(t, s, history.RootSystem, "config", ts, history.OpChanged, "x")

	collect := func(root history.RootKind, onlyDeleted bool) []string {
		var names []string
		err := s.Walk(root, onlyDeleted, func(name string) error {
			names = append(names, name)
			return nil
		})
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		return names
	}

	t.Run("job root", func(t *testing.T) {
		got := collect(history.RootJobs, false)
		want := []string{
			"Alpha", "Zed_deleted_20240101_000000", "folder",
			"folder/child", "folder/gone_deleted_20240101_000000", "folder/sub", "folder/sub/leaf",
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Walk() = %v, want %v", got, want)
		}
	})

	t.Run("only deleted", func(t *testing.T) {
		got := collect(history.RootJobs, true)
		want := []string{"Zed_deleted_20240101_000000", "folder/gone_deleted_20240101_000000"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Walk() = %v, want %v", got, want)
		}
	})

	t.Run("system root skips jobs", func(t *testing.T) {
		got := collect(history.RootSystem, false)
		if want := []string{"config"}; !reflect.DeepEqual(got, want) {
			t.Errorf("Walk() = %v, want %v", got, want)
		}
	})

	t.Run("callback error stops walk", func(t *testing.T) {
		stop := errors.New("stop")
		calls := 0
		err := s.Walk(history.RootJobs, false, func(string) error {
			calls++
			return stop
		})
		if !errors.Is(err, stop) || calls != 1 {
			t.Errorf("Walk() = %v after %d calls", err, calls)
		}
	})
}

func mustList(t *testing.T, s *FileSystemStore, name string) []*history.Record {
	t.Helper()
	records, err := s.ListRecords(history.RootJobs, name)
	if err != nil {
		t.Fatalf("ListRecords(%s) error = %v", name, err)
	}
	return records
}
