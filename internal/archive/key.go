package archive

import (
	"fmt"
	"path"
	"strings"

	"jch-go/internal/history"
)

// Key returns the vault key of one archived file of a record:
// <root>/<objectName>/<timestamp>/<file>.
func Key(root history.RootKind, name, timestamp, file string) string {
	return path.Join(root.String(), name, timestamp, file)
}

// checkKey rejects keys that could escape a vault root.
func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("%w: invalid archive key %q", history.ErrInvalidInput, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return fmt.Errorf("%w: invalid archive key %q", history.ErrInvalidInput, key)
		}
	}
	return nil
}
