package history

import (
	"errors"
	"fmt"
	"time"
)

// maxCollisionBumps bounds how far a record timestamp is advanced when the
// current second is already taken.
const maxCollisionBumps = 60

// Actor identifies who made a change.
type Actor struct {
	Name string
	ID   string
}

// NameMatcher decides which system setting names are not recorded.
type NameMatcher interface {
	Match(name string) bool
}

// Recorder is the write path: it records configuration changes as the host
// reports them.
type Recorder struct {
	store   Store
	clock   Clock
	exclude NameMatcher
	metrics Metrics
	logger  Logger
}

// NewRecorder creates a Recorder. exclude may be nil.
func NewRecorder(store Store, clock Clock, exclude NameMatcher, metrics Metrics, logger Logger) *Recorder {
	return &Recorder{store: store, clock: clock, exclude: exclude, metrics: metrics, logger: logger}
}

// Record stores a snapshot of name. System settings matching the exclude
// patterns are skipped and yield a nil record. If a record already exists
// for the current second, the timestamp advances to the next free second.
func (r *Recorder) Record(root RootKind, name string, op Operation, actor Actor, content []byte) (*Record, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if root == RootSystem && r.exclude != nil && r.exclude.Match(name) {
		r.logger.Debug("not recording excluded setting", "name", name)
		return nil, nil
	}

	now := r.clock.Now()
	for i := 0; i < maxCollisionBumps; i++ {
		ts := FormatTimestamp(now.Add(time.Duration(i) * time.Second))
		existing, err := r.store.ReadRecord(root, name, ts)
		if err != nil {
			return nil, fmt.Errorf("checking record %s/%s: %w", name, ts, err)
		}
		if existing != nil {
			continue
		}

		rec := &Record{
			Root:       root,
			ObjectName: name,
			Timestamp:  ts,
			Operation:  op,
			User:       actor.Name,
			UserID:     actor.ID,
		}
		if err := r.store.WriteRecord(rec, content); err != nil {
			// Another writer may have taken this second meanwhile.
			if again, _ := r.store.ReadRecord(root, name, ts); again != nil {
				continue
			}
			return nil, fmt.Errorf("writing record %s/%s: %w", name, ts, err)
		}

		r.metrics.RecordWritten(root, op)
		r.logger.Debug("recorded change", "root", root.String(), "name", name, "operation", string(op), "timestamp", ts)
		return rec, nil
	}
	return nil, fmt.Errorf("no free timestamp for %s after %d attempts", name, maxCollisionBumps)
}

// RecordDeleted records the final Deleted entry of a job and moves its
// history under a deleted-marked name, which it returns. content may be
// nil when the job had no readable configuration.
func (r *Recorder) RecordDeleted(name string, actor Actor, content []byte) (string, error) {
	rec, err := r.Record(RootJobs, name, OpDeleted, actor, content)
	if err != nil {
		return "", err
	}

	ts, err := ParseTimestamp(rec.Timestamp)
	if err != nil {
		return "", err
	}
	deletedName := DeletedName(name, ts)
	if err := r.store.MoveHistory(RootJobs, name, deletedName); err != nil {
		return "", fmt.Errorf("moving history of %s: %w", name, err)
	}
	r.logger.Info("job history marked deleted", "name", name, "history", deletedName)
	return deletedName, nil
}

// RecordRenamed moves a job's history to its new name and records a
// Renamed entry there.
func (r *Recorder) RecordRenamed(oldName, newName string, actor Actor, content []byte) (*Record, error) {
	if err := ValidateName(oldName); err != nil {
		return nil, err
	}
	if err := ValidateName(newName); err != nil {
		return nil, err
	}

	if err := r.store.MoveHistory(RootJobs, oldName, newName); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("moving history of %s: %w", oldName, err)
	}
	return r.Record(RootJobs, newName, OpRenamed, actor, content)
}
