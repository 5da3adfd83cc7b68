package database

import (
	"testing"
)

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestSQLiteDatabase_Operations(t *testing.T) {
	t.Run("create and finish", func(t *testing.T) {
		db := newTestDB(t)

		op, err := db.CreateOperation("Purge", "max_days=7")
		if err != nil {
			t.Fatalf("CreateOperation() error = %v", err)
		}
		if op.ID == 0 {
			t.Fatal("CreateOperation() returned ID 0")
		}
		if op.Status != "running" {
			t.Errorf("Status = %q, want running", op.Status)
		}

		if err := db.FinishOperation(op.ID, "success"); err != nil {
			t.Fatalf("FinishOperation() error = %v", err)
		}

		got, err := db.FindOperation(op.ID)
		if err != nil {
			t.Fatalf("FindOperation() error = %v", err)
		}
		if got == nil {
			t.Fatal("FindOperation() returned nil")
		}
		if got.Status != "success" || !got.FinishedAt.Valid {
			t.Errorf("FindOperation() = %+v, want finished success", got)
		}
		if got.Operation != "Purge" || got.Parameters != "max_days=7" {
			t.Errorf("FindOperation() = %+v", got)
		}
	})

	t.Run("finish unknown id", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.FinishOperation(42, "error"); err == nil {
			t.Error("FinishOperation() expected error for unknown id")
		}
	})

	t.Run("find missing returns nil", func(t *testing.T) {
		db := newTestDB(t)
		got, err := db.FindOperation(7)
		if err != nil {
			t.Fatalf("FindOperation() error = %v", err)
		}
		if got != nil {
			t.Errorf("FindOperation() = %v, want nil", got)
		}
	})

	t.Run("list newest first with limit", func(t *testing.T) {
		db := newTestDB(t)
		for _, name := range []string{"Purge", "Restore", "SaveJob"} {
			if _, err := db.CreateOperation(name, ""); err != nil {
				t.Fatalf("CreateOperation() error = %v", err)
			}
		}

		ops, err := db.ListOperations(2)
		if err != nil {
			t.Fatalf("ListOperations() error = %v", err)
		}
		if len(ops) != 2 {
			t.Fatalf("ListOperations() returned %d, want 2", len(ops))
		}
		if ops[0].Operation != "SaveJob" || ops[1].Operation != "Restore" {
			t.Errorf("ListOperations() order = %s, %s", ops[0].Operation, ops[1].Operation)
		}
	})

	t.Run("max id", func(t *testing.T) {
		db := newTestDB(t)

		id, err := db.MaxOperationID()
		if err != nil {
			t.Fatalf("MaxOperationID() error = %v", err)
		}
		if id != 0 {
			t.Errorf("MaxOperationID() = %d, want 0", id)
		}

		op, _ := db.CreateOperation("Purge", "")
		id, err = db.MaxOperationID()
		if err != nil {
			t.Fatalf("MaxOperationID() error = %v", err)
		}
		if id != op.ID {
			t.Errorf("MaxOperationID() = %d, want %d", id, op.ID)
		}
	})
}
