// Package host is a reference implementation of the application whose
// objects are versioned: a directory of live job configurations.
//
//	<dir>/<name>/config.xml
//	<dir>/<folder>/jobs/<child>/config.xml
//
// Every change made through it is recorded in the history.
package host

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"jch-go/internal/history"
)

// ConfigFile is the live configuration file of an object.
const ConfigFile = "config.xml"

// FileSystemHost keeps live objects on disk and reports their lifecycle to
// a history.Recorder.
type FileSystemHost struct {
	dir      string
	recorder *history.Recorder
	idgen    history.IDGenerator
	logger   history.Logger
}

var _ history.Host = (*FileSystemHost)(nil)

// NewFileSystemHost creates a host over dir. recorder may be nil, in
// which case nothing is recorded.
func NewFileSystemHost(dir string, recorder *history.Recorder, idgen history.IDGenerator, logger history.Logger) *FileSystemHost {
	return &FileSystemHost{dir: dir, recorder: recorder, idgen: idgen, logger: logger}
}

func (h *FileSystemHost) objectDir(name string) string {
	return filepath.Join(h.dir, filepath.FromSlash(history.NestedPath(name)))
}

func (h *FileSystemHost) configPath(name string) string {
	return filepath.Join(h.objectDir(name), ConfigFile)
}

// HasObject reports whether a live object named name exists.
func (h *FileSystemHost) HasObject(name string) bool {
	if history.ValidateName(name) != nil {
		return false
	}
	info, err := os.Stat(h.configPath(name))
	return err == nil && info.Mode().IsRegular()
}

// ReadObject returns the live configuration of name, or nil if there is
// no such object.
func (h *FileSystemHost) ReadObject(name string) ([]byte, error) {
	if err := history.ValidateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(h.configPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

// ListObjects returns the names of all live objects, including nested
// ones, in sorted order.
func (h *FileSystemHost) ListObjects() ([]string, error) {
	var names []string
	err := filepath.WalkDir(h.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == h.dir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || d.Name() != ConfigFile {
			return nil
		}
		rel, err := filepath.Rel(h.dir, filepath.Dir(path))
		if err != nil {
			return err
		}
		names = append(names, objectName(filepath.ToSlash(rel)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing objects: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// objectName inverts history.NestedPath.
func objectName(rel string) string {
	return strings.ReplaceAll(rel, "/"+history.JobsDir+"/", "/")
}

// CreateObject creates a new live object and records it as Created.
func (h *FileSystemHost) CreateObject(name string, content []byte) (*history.ObjectHandle, error) {
	return h.CreateObjectAs(name, content, history.Actor{})
}

// CreateObjectAs is CreateObject with an explicit actor.
func (h *FileSystemHost) CreateObjectAs(name string, content []byte, actor history.Actor) (*history.ObjectHandle, error) {
	if err := history.ValidateName(name); err != nil {
		return nil, err
	}
	if history.IsDeletedName(name) {
		return nil, fmt.Errorf("%w: name is reserved for deleted objects: %s", history.ErrInvalidInput, name)
	}
	if h.HasObject(name) {
		return nil, fmt.Errorf("object already exists: %s", name)
	}

	if err := h.write(name, content); err != nil {
		return nil, err
	}
	h.record(history.RootJobs, name, history.OpCreated, actor, content)

	return &history.ObjectHandle{
		ID:   h.idgen.New(),
		Name: name,
		URL:  ObjectURL(name),
	}, nil
}

// SaveObject creates or updates a live object and records the change.
func (h *FileSystemHost) SaveObject(name string, content []byte, actor history.Actor) (*history.Record, error) {
	if h.HasObject(name) {
		if err := h.write(name, content); err != nil {
			return nil, err
		}
		return h.record(history.RootJobs, name, history.OpChanged, actor, content), nil
	}

	if _, err := h.CreateObjectAs(name, content, actor); err != nil {
		return nil, err
	}
	return nil, nil
}

// DeleteObject removes a live object and records its deletion. It returns
// the name the object's history now lives under.
func (h *FileSystemHost) DeleteObject(name string, actor history.Actor) (string, error) {
	content, err := h.ReadObject(name)
	if err != nil {
		return "", err
	}
	if content == nil {
		return "", fmt.Errorf("%w: object %s", history.ErrNotFound, name)
	}

	if err := os.RemoveAll(h.objectDir(name)); err != nil {
		return "", fmt.Errorf("deleting %s: %w", name, err)
	}
	h.logger.Info("object deleted", "name", name)

	if h.recorder == nil {
		return "", nil
	}
	return h.recorder.RecordDeleted(name, actor, content)
}

// RenameObject moves a live object and its history to a new name.
func (h *FileSystemHost) RenameObject(oldName, newName string, actor history.Actor) error {
	content, err := h.ReadObject(oldName)
	if err != nil {
		return err
	}
	if content == nil {
		return fmt.Errorf("%w: object %s", history.ErrNotFound, oldName)
	}
	if err := history.ValidateName(newName); err != nil {
		return err
	}
	if h.HasObject(newName) {
		return fmt.Errorf("object already exists: %s", newName)
	}

	dest := h.objectDir(newName)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
	}
	if err := os.Rename(h.objectDir(oldName), dest); err != nil {
		return fmt.Errorf("renaming %s: %w", oldName, err)
	}
	h.logger.Info("object renamed", "from", oldName, "to", newName)

	if h.recorder != nil {
		if _, err := h.recorder.RecordRenamed(oldName, newName, actor, content); err != nil {
			return fmt.Errorf("recording rename: %w", err)
		}
	}
	return nil
}

// write stores content as the object's live configuration via a temp
// file and rename.
func (h *FileSystemHost) write(name string, content []byte) error {
	dir := h.objectDir(name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, ConfigFile)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// record writes a history entry. A failure is logged but does not undo
// the object change.
func (h *FileSystemHost) record(root history.RootKind, name string, op history.Operation, actor history.Actor, content []byte) *history.Record {
	if h.recorder == nil {
		return nil
	}
	rec, err := h.recorder.Record(root, name, op, actor, content)
	if err != nil {
		h.logger.Error("recording change failed", "name", name, "operation", string(op), "error", err)
		return nil
	}
	return rec
}

// ObjectURL is the location of a live object, with nested containers
// rendered as /job/<parent>/job/<child>/.
func ObjectURL(name string) string {
	parts := strings.Split(name, "/")
	var b strings.Builder
	for _, p := range parts {
		b.WriteString("/job/")
		b.WriteString(url.PathEscape(p))
	}
	b.WriteString("/")
	return b.String()
}
