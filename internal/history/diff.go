package history

import (
	"fmt"

	"jch-go/internal/linediff"
)

// DiffEngine compares two revisions of an object.
type DiffEngine struct {
	store  Store
	logger Logger
}

// NewDiffEngine creates a DiffEngine reading from store.
func NewDiffEngine(store Store, logger Logger) *DiffEngine {
	return &DiffEngine{store: store, logger: logger}
}

// Lines returns the line diff between two revisions of a system setting or
// deleted job. The result is empty when either revision cannot be read or
// the subject may not view the object. A traversal attempt in name fails
// with ErrInvalidInput.
func (d *DiffEngine) Lines(auth Authorization, name, timestamp1, timestamp2 string) ([]linediff.Line, error) {
	if !auth.CanReadObject(name) {
		return []linediff.Line{}, nil
	}
	return d.lines(snapshotRoot(name), name, timestamp1, timestamp2)
}

// JobLines is Lines for a job's own history.
func (d *DiffEngine) JobLines(auth Authorization, name, timestamp1, timestamp2 string) ([]linediff.Line, error) {
	if !auth.ConfigureJobs {
		return []linediff.Line{}, nil
	}
	return d.lines(RootJobs, name, timestamp1, timestamp2)
}

// Unified renders the same comparison as Lines as a unified diff. The
// output is empty when the revisions are identical or unreadable.
func (d *DiffEngine) Unified(auth Authorization, root RootKind, name, timestamp1, timestamp2 string) ([]byte, error) {
	allowed := auth.ConfigureJobs
	if root == RootSystem || IsDeletedName(name) {
		allowed = auth.CanReadObject(name)
	}
	if !allowed {
		return nil, nil
	}

	a, b, err := d.revisions(root, name, timestamp1, timestamp2)
	if err != nil || a == nil || b == nil {
		return nil, err
	}
	return linediff.Unified(
		fmt.Sprintf("%s@%s", name, timestamp1),
		fmt.Sprintf("%s@%s", name, timestamp2),
		linediff.Split(string(a)),
		linediff.Split(string(b)),
		linediff.DefaultContext,
	)
}

func (d *DiffEngine) lines(root RootKind, name, timestamp1, timestamp2 string) ([]linediff.Line, error) {
	a, b, err := d.revisions(root, name, timestamp1, timestamp2)
	if err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return []linediff.Line{}, nil
	}
	return linediff.Diff(linediff.Split(string(a)), linediff.Split(string(b))), nil
}

// revisions loads both snapshots. A nil slice means that side is
// unreadable.
func (d *DiffEngine) revisions(root RootKind, name, timestamp1, timestamp2 string) ([]byte, []byte, error) {
	a, err := ReadSnapshot(d.store, root, name, timestamp1)
	if err != nil {
		return nil, nil, err
	}
	b, err := ReadSnapshot(d.store, root, name, timestamp2)
	if err != nil {
		return nil, nil, err
	}
	if a == nil || b == nil {
		d.logger.Debug("revision unreadable", "name", name, "timestamp1", timestamp1, "timestamp2", timestamp2)
	}
	return a, b, nil
}
