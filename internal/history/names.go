package history

import (
	"strings"
	"time"
)

const (
	// DeletedMarker separates a deleted object's base name from its
	// disambiguator in the history directory name.
	DeletedMarker = "_deleted_"

	// JobsDir is the reserved subdirectory holding job history below the
	// system root, and nested job history below a container.
	JobsDir = "jobs"

	deletedSuffixLayout = "20060102_150405"
)

// IsDeletedName reports whether name carries the deleted marker.
func IsDeletedName(name string) bool {
	return strings.Contains(name, DeletedMarker)
}

// BaseName strips the deleted marker and everything after it.
func BaseName(name string) string {
	base, _, _ := strings.Cut(name, DeletedMarker)
	return base
}

// DeletedName builds the history directory name for an object deleted at t.
func DeletedName(name string, t time.Time) string {
	return name + DeletedMarker + t.In(time.Local).Format(deletedSuffixLayout)
}

// NestedPath maps an object name to its slash-separated directory path
// below a root. Each container's children live in its "jobs"
// subdirectory, so "folder/child" becomes "folder/jobs/child".
func NestedPath(name string) string {
	return strings.ReplaceAll(name, "/", "/"+JobsDir+"/")
}
