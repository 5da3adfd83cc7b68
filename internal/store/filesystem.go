// Package store implements history.Store on a directory hierarchy:
//
//	<root>/
//	  <objectName>/
//	    <timestamp>/
//	      history.xml   (metadata descriptor)
//	      config.xml    (configuration snapshot, optional)
//
// Nested containers keep their children below a "jobs" subdirectory, so
// the object "folder/child" lives at <root>/folder/jobs/child.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jch-go/internal/history"
)

const (
	// HistoryFile is the metadata descriptor of a record.
	HistoryFile = "history.xml"

	// ConfigFile is the configuration snapshot of a record.
	ConfigFile = "config.xml"

	tmpPrefix = ".tmp-"
)

// FileSystemStore is the filesystem implementation of history.Store.
// It holds no locks; concurrent writers are tolerated by writing records
// into a temp directory and renaming it into place.
type FileSystemStore struct {
	systemRoot string
	jobRoot    string
	logger     history.Logger
}

var _ history.Store = (*FileSystemStore)(nil)

// NewFileSystemStore creates a store over the two history roots. An empty
// jobRoot defaults to <systemRoot>/jobs. The roots are not created until
// the first write.
func NewFileSystemStore(systemRoot, jobRoot string, logger history.Logger) *FileSystemStore {
	if jobRoot == "" {
		jobRoot = filepath.Join(systemRoot, history.JobsDir)
	}
	return &FileSystemStore{
		systemRoot: systemRoot,
		jobRoot:    jobRoot,
		logger:     logger,
	}
}

// Root returns the directory of a history root.
func (s *FileSystemStore) Root(root history.RootKind) string {
	if root == history.RootJobs {
		return s.jobRoot
	}
	return s.systemRoot
}

// ObjectDir returns the history directory of an object.
func (s *FileSystemStore) ObjectDir(root history.RootKind, name string) string {
	if root != history.RootJobs {
		return filepath.Join(s.systemRoot, name)
	}
	return filepath.Join(s.jobRoot, filepath.FromSlash(history.NestedPath(name)))
}

func (s *FileSystemStore) recordDir(rec *history.Record) string {
	return filepath.Join(s.ObjectDir(rec.Root, rec.ObjectName), rec.Timestamp)
}

// ListObjectNames returns the object directories directly below a root.
func (s *FileSystemStore) ListObjectNames(root history.RootKind, onlyDeleted bool) ([]string, error) {
	entries, err := readDirs(s.Root(root))
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, name := range entries {
		if onlyDeleted && !history.IsDeletedName(name) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// ListRecords returns an object's records in ascending timestamp order.
// Directories without a readable descriptor are skipped.
func (s *FileSystemStore) ListRecords(root history.RootKind, name string) ([]*history.Record, error) {
	dir := s.ObjectDir(root, name)
	entries, err := readDirs(dir)
	if err != nil {
		return nil, err
	}

	var records []*history.Record
	for _, ts := range entries {
		if !history.ValidTimestamp(ts) {
			continue
		}
		rec, err := s.ReadRecord(root, name, ts)
		if err != nil {
			s.logger.Warn("skipping unreadable history entry", "dir", filepath.Join(dir, ts), "error", err)
			continue
		}
		if rec == nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadRecord returns a single record, or nil if it does not exist.
func (s *FileSystemStore) ReadRecord(root history.RootKind, name, timestamp string) (*history.Record, error) {
	rec := &history.Record{Root: root, ObjectName: name, Timestamp: timestamp}
	dir := s.recordDir(rec)

	data, err := os.ReadFile(filepath.Join(dir, HistoryFile))
	if err != nil {
		if isAbsent(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading descriptor: %w", err)
	}

	d, err := decodeDescriptor(data)
	if err != nil {
		return nil, err
	}
	rec.Operation = history.Operation(d.Operation)
	rec.User = d.User
	rec.UserID = d.UserID

	if info, err := os.Stat(filepath.Join(dir, ConfigFile)); err == nil && info.Mode().IsRegular() {
		rec.HasContent = true
	}
	return rec, nil
}

// ReadContent returns a record's snapshot, or nil if it has none.
func (s *FileSystemStore) ReadContent(rec *history.Record) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.recordDir(rec), ConfigFile))
	if err != nil {
		if isAbsent(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return data, nil
}

// WriteRecord persists a new record. The record directory appears
// atomically: files are written into a temp directory which is then
// renamed to the timestamp.
func (s *FileSystemStore) WriteRecord(rec *history.Record, content []byte) error {
	objectDir := s.ObjectDir(rec.Root, rec.ObjectName)
	dest := filepath.Join(objectDir, rec.Timestamp)

	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("record already exists: %s", dest)
	}
	if err := os.MkdirAll(objectDir, 0755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	tmpDir, err := os.MkdirTemp(objectDir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}

	// Clean up temp directory on failure
	success := false
	defer func() {
		if !success {
			os.RemoveAll(tmpDir)
		}
	}()

	desc, err := EncodeDescriptor(rec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(tmpDir, HistoryFile), desc, 0644); err != nil {
		return fmt.Errorf("writing descriptor: %w", err)
	}
	if content != nil {
		if err := os.WriteFile(filepath.Join(tmpDir, ConfigFile), content, 0644); err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
	}

	if err := os.Rename(tmpDir, dest); err != nil {
		return fmt.Errorf("moving record into place: %w", err)
	}

	success = true
	rec.HasContent = content != nil
	return nil
}

// UpdateRecord rewrites the descriptor of an existing record.
func (s *FileSystemStore) UpdateRecord(rec *history.Record) error {
	dir := s.recordDir(rec)
	if _, err := os.Stat(dir); err != nil {
		if isAbsent(err) {
			return fmt.Errorf("%w: record %s/%s", history.ErrNotFound, rec.ObjectName, rec.Timestamp)
		}
		return fmt.Errorf("stat record: %w", err)
	}

	desc, err := EncodeDescriptor(rec)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, HistoryFile), desc)
}

// DeleteRecord removes a record's directory subtree.
func (s *FileSystemStore) DeleteRecord(rec *history.Record) error {
	dir := s.recordDir(rec)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting %s: %w", dir, err)
	}
	return nil
}

// MoveHistory moves every child of the source object directory into the
// target directory and removes the source. A record whose timestamp is
// already taken in the target is shifted to the closest earlier free
// second, so it still sorts before the target's own record. Children that
// cannot be moved are left behind and reported together as a partial
// failure.
func (s *FileSystemStore) MoveHistory(root history.RootKind, from, to string) error {
	src := s.ObjectDir(root, from)
	dst := s.ObjectDir(root, to)

	entries, err := os.ReadDir(src)
	if err != nil {
		if isAbsent(err) {
			return fmt.Errorf("%w: no history for %s", history.ErrNotFound, from)
		}
		return fmt.Errorf("reading %s: %w", src, err)
	}

	if err := os.MkdirAll(dst, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if exists(filepath.Join(dst, name)) {
			shifted, ok := freeEarlierSecond(src, dst, name)
			if !ok {
				errs = append(errs, fmt.Errorf("target already exists: %s", filepath.Join(dst, name)))
				continue
			}
			if err := os.Rename(filepath.Join(src, name), filepath.Join(dst, shifted)); err != nil {
				errs = append(errs, fmt.Errorf("moving %s: %w", name, err))
				continue
			}
			if err := retimeDescriptor(filepath.Join(dst, shifted), shifted); err != nil {
				s.logger.Warn("descriptor keeps its old timestamp", "dir", filepath.Join(dst, shifted), "error", err)
			}
			s.logger.Info("shifted colliding record", "name", to, "from", name, "to", shifted)
			continue
		}
		if err := os.Rename(filepath.Join(src, name), filepath.Join(dst, name)); err != nil {
			errs = append(errs, fmt.Errorf("moving %s: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: moving history %s to %s: %w", history.ErrPartialFailure, from, to, errors.Join(errs...))
	}

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("%w: removing %s: %w", history.ErrPartialFailure, src, err)
	}
	return nil
}

// maxShift bounds how many seconds a colliding record may move back.
const maxShift = 60

// freeEarlierSecond finds the latest timestamp before ts that neither
// directory uses. Entries that are not timestamps cannot be shifted.
func freeEarlierSecond(src, dst, ts string) (string, bool) {
	t, err := history.ParseTimestamp(ts)
	if err != nil {
		return "", false
	}
	for i := 1; i <= maxShift; i++ {
		candidate := history.FormatTimestamp(t.Add(-time.Duration(i) * time.Second))
		if !exists(filepath.Join(dst, candidate)) && !exists(filepath.Join(src, candidate)) {
			return candidate, true
		}
	}
	return "", false
}

// retimeDescriptor rewrites the timestamp stored in a record's descriptor.
func retimeDescriptor(dir, ts string) error {
	path := filepath.Join(dir, HistoryFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading descriptor: %w", err)
	}
	d, err := decodeDescriptor(data)
	if err != nil {
		return err
	}
	desc, err := EncodeDescriptor(&history.Record{
		User:      d.User,
		UserID:    d.UserID,
		Operation: history.Operation(d.Operation),
		Timestamp: ts,
	})
	if err != nil {
		return err
	}
	return writeFileAtomic(path, desc)
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Walk visits every object of a root. In the job root, an object that
// holds a "jobs" subdirectory is a container and its children are visited
// with a "parent/" name prefix. With onlyDeleted, fn sees only
// deleted-marked objects but live containers are still descended.
// Traversal uses an explicit work list, so nesting depth does not grow the
// call stack.
func (s *FileSystemStore) Walk(root history.RootKind, onlyDeleted bool, fn history.WalkFunc) error {
	type item struct {
		dir    string
		prefix string
	}
	work := []item{{dir: s.Root(root)}}

	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]

		names, err := readDirs(cur.dir)
		if err != nil {
			return err
		}

		var nested []item
		for _, name := range names {
			if root == history.RootSystem && name == history.JobsDir {
				continue
			}
			full := cur.prefix + name
			if !onlyDeleted || history.IsDeletedName(name) {
				if err := fn(full); err != nil {
					return err
				}
			}

			if root != history.RootJobs {
				continue
			}
			jobs := filepath.Join(cur.dir, name, history.JobsDir)
			if info, err := os.Stat(jobs); err == nil && info.IsDir() {
				nested = append(nested, item{dir: jobs, prefix: full + "/"})
			}
		}

		// Push in reverse so children are visited in name order.
		for i := len(nested) - 1; i >= 0; i-- {
			work = append(work, nested[i])
		}
	}
	return nil
}

// readDirs lists the visible subdirectories of dir in name order. A
// missing dir yields an empty list.
func readDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if isAbsent(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// writeFileAtomic writes data to path using a temp file and rename.
func writeFileAtomic(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// isAbsent reports errors that mean "not there", including a path
// component that turned out to be a file.
func isAbsent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscallNotDir)
}
