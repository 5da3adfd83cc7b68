package history

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Filters accepted by QueryEngine.Configs. Any other value is treated as
// a single job name.
const (
	FilterSystem  = "system"
	FilterAll     = "all"
	FilterJobs    = "jobs"
	FilterDeleted = "deleted"
	FilterCreated = "created"
)

// NoPermissionMessage is returned in place of content the subject may not
// see.
const NoPermissionMessage = "No permission to view config files"

// QueryEngine builds filtered, sorted views over a Store.
type QueryEngine struct {
	store  Store
	logger Logger
}

// NewQueryEngine creates a QueryEngine reading from store.
func NewQueryEngine(store Store, logger Logger) *QueryEngine {
	return &QueryEngine{store: store, logger: logger}
}

// Configs returns the history entries selected by filter, newest first.
// An empty filter means "system".
func (q *QueryEngine) Configs(auth Authorization, filter string) ([]*ConfigInfo, error) {
	var configs []*ConfigInfo
	switch filter {
	case "", FilterSystem:
		sys, err := q.SystemConfigs(auth)
		if err != nil {
			return nil, err
		}
		configs = sys
	case FilterAll:
		for _, mode := range []string{FilterJobs, FilterDeleted} {
			jobs, err := q.JobConfigs(auth, mode)
			if err != nil {
				return nil, err
			}
			configs = append(configs, jobs...)
		}
		sys, err := q.SystemConfigs(auth)
		if err != nil {
			return nil, err
		}
		configs = append(configs, sys...)
	default:
		jobs, err := q.JobConfigs(auth, filter)
		if err != nil {
			return nil, err
		}
		configs = jobs
	}

	SortConfigs(configs)
	return configs, nil
}

// SystemConfigs returns every record under the system root, skipping the
// jobs subdirectory. Empty without the configure-system capability.
func (q *QueryEngine) SystemConfigs(auth Authorization) ([]*ConfigInfo, error) {
	configs := []*ConfigInfo{}
	if !auth.ConfigureSystem {
		return configs, nil
	}

	names, err := q.store.ListObjectNames(RootSystem, false)
	if err != nil {
		return nil, fmt.Errorf("listing system history: %w", err)
	}

	for _, name := range names {
		if name == JobsDir {
			continue
		}
		records, err := q.store.ListRecords(RootSystem, name)
		if err != nil {
			return nil, fmt.Errorf("listing records for %s: %w", name, err)
		}
		for _, rec := range records {
			configs = append(configs, &ConfigInfo{Record: rec, Link: contentLink(rec, nil)})
		}
	}
	return configs, nil
}

// JobConfigs returns job history entries for one mode: "jobs" (all
// records of live objects), "deleted" (the final Deleted record of each
// deleted object), "created" (the initial Created record of each live
// object), or a single job name. Empty without the configure-jobs
// capability.
func (q *QueryEngine) JobConfigs(auth Authorization, mode string) ([]*ConfigInfo, error) {
	configs := []*ConfigInfo{}
	if !auth.ConfigureJobs {
		return configs, nil
	}

	switch mode {
	case FilterJobs, FilterDeleted, FilterCreated:
	default:
		if err := ValidateName(mode); err != nil {
			return nil, err
		}
		records, err := q.store.ListRecords(RootJobs, mode)
		if err != nil {
			return nil, fmt.Errorf("listing records for %s: %w", mode, err)
		}
		for _, rec := range records {
			configs = append(configs, &ConfigInfo{Record: rec, Link: contentLink(rec, records)})
		}
		return configs, nil
	}

	err := q.store.Walk(RootJobs, mode == FilterDeleted, func(name string) error {
		records, err := q.store.ListRecords(RootJobs, name)
		if err != nil {
			return fmt.Errorf("listing records for %s: %w", name, err)
		}
		configs = append(configs, selectForMode(mode, name, records)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return configs, nil
}

// selectForMode applies the first/last-record rules of the "created" and
// "deleted" views. records must be in ascending order.
func selectForMode(mode, name string, records []*Record) []*ConfigInfo {
	if len(records) == 0 {
		return nil
	}

	switch mode {
	case FilterCreated:
		if IsDeletedName(leafName(name)) {
			return nil
		}
		first := records[0]
		if first.Operation != OpCreated {
			return nil
		}
		return []*ConfigInfo{{Record: first, Link: contentLink(first, records)}}
	case FilterDeleted:
		last := records[len(records)-1]
		if last.Operation != OpDeleted {
			return nil
		}
		return []*ConfigInfo{{Record: last, Link: contentLink(last, records)}}
	default:
		if IsDeletedName(leafName(name)) {
			return nil
		}
		out := make([]*ConfigInfo, 0, len(records))
		for _, rec := range records {
			out = append(out, &ConfigInfo{Record: rec, Link: contentLink(rec, records)})
		}
		return out
	}
}

// SingleConfigs returns every record of one system setting or deleted
// job, newest first.
func (q *QueryEngine) SingleConfigs(name string) ([]*ConfigInfo, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	records, err := q.store.ListRecords(snapshotRoot(name), name)
	if err != nil {
		return nil, fmt.Errorf("listing records for %s: %w", name, err)
	}

	configs := make([]*ConfigInfo, 0, len(records))
	for _, rec := range records {
		configs = append(configs, &ConfigInfo{Record: rec})
	}
	SortConfigs(configs)
	return configs, nil
}

// RawContent returns the snapshot of a system setting or deleted job at
// timestamp. Subjects without access get NoPermissionMessage.
func (q *QueryEngine) RawContent(auth Authorization, name, timestamp string) (string, error) {
	if !auth.CanReadObject(name) {
		return NoPermissionMessage, nil
	}
	return q.rawContent(snapshotRoot(name), name, timestamp)
}

// JobRawContent returns the snapshot of a job at timestamp.
func (q *QueryEngine) JobRawContent(auth Authorization, name, timestamp string) (string, error) {
	if !auth.ConfigureJobs {
		return NoPermissionMessage, nil
	}
	return q.rawContent(RootJobs, name, timestamp)
}

func (q *QueryEngine) rawContent(root RootKind, name, timestamp string) (string, error) {
	content, err := ReadSnapshot(q.store, root, name, timestamp)
	if err != nil {
		return "", err
	}
	if content == nil {
		return "", fmt.Errorf("%w: no snapshot for %s at %s", ErrNotFound, name, timestamp)
	}
	return string(content), nil
}

// ReadSnapshot loads the snapshot of name at timestamp. A null name or a
// malformed timestamp reads as absent; a traversal attempt fails with
// ErrInvalidInput.
func ReadSnapshot(store Store, root RootKind, name, timestamp string) ([]byte, error) {
	ok, err := CheckParameters(name, timestamp)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	rec, err := store.ReadRecord(root, name, timestamp)
	if err != nil {
		return nil, fmt.Errorf("reading record %s/%s: %w", name, timestamp, err)
	}
	if rec == nil {
		return nil, nil
	}
	return store.ReadContent(rec)
}

// SortConfigs orders configs newest first, breaking ties by object name.
func SortConfigs(configs []*ConfigInfo) {
	slices.SortStableFunc(configs, func(a, b *ConfigInfo) int {
		if c := strings.Compare(b.Timestamp, a.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.ObjectName, b.ObjectName)
	})
}

// contentLink builds the link under which a record's snapshot is served.
// Deleted objects point at their second-to-last record because the last
// one usually has no snapshot. records, when given, is the object's full
// ascending history.
func contentLink(rec *Record, records []*Record) string {
	v := url.Values{}
	v.Set("name", rec.ObjectName)

	switch {
	case rec.IsJob() && IsDeletedName(rec.ObjectName):
		if len(records) < 2 {
			return ""
		}
		v.Set("timestamp", records[len(records)-2].Timestamp)
		return "/api/v1/raw?" + v.Encode()
	case rec.IsJob():
		v.Set("timestamp", rec.Timestamp)
		return "/api/v1/jobs/raw?" + v.Encode()
	default:
		v.Set("timestamp", rec.Timestamp)
		return "/api/v1/raw?" + v.Encode()
	}
}

// snapshotRoot picks the root a bare object name is looked up in outside
// a job's own page: deleted jobs live in the job root, everything else is
// a system setting.
func snapshotRoot(name string) RootKind {
	if IsDeletedName(name) {
		return RootJobs
	}
	return RootSystem
}

func leafName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}
