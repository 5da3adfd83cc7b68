package history

// WalkFunc is called once per object history directory found by
// Store.Walk. name is the full, prefix-qualified object name.
type WalkFunc func(name string) error

// Store is the directory-hierarchy abstraction over the two history roots.
// Absence is never an error: lookups of missing objects, records or
// snapshots return nil results with a nil error. A record that vanishes
// between enumeration and read is treated the same way.
type Store interface {
	// ListObjectNames returns the immediate object directories of a root.
	// With onlyDeleted, only names carrying the deleted marker are returned.
	ListObjectNames(root RootKind, onlyDeleted bool) ([]string, error)

	// ListRecords returns an object's records in ascending timestamp order.
	ListRecords(root RootKind, name string) ([]*Record, error)

	// ReadRecord returns a single record, or nil if it does not exist.
	ReadRecord(root RootKind, name, timestamp string) (*Record, error)

	// ReadContent returns the configuration snapshot of a record, or nil
	// if the record has none.
	ReadContent(rec *Record) ([]byte, error)

	// WriteRecord persists a new record. content may be nil.
	WriteRecord(rec *Record, content []byte) error

	// UpdateRecord rewrites the metadata descriptor of an existing record
	// and leaves its snapshot untouched.
	UpdateRecord(rec *Record) error

	// DeleteRecord removes a record's directory subtree.
	DeleteRecord(rec *Record) error

	// MoveHistory relocates every record of an object to a new name and
	// removes the emptied source directory.
	MoveHistory(root RootKind, from, to string) error

	// Walk visits every object in a root, descending into nested
	// containers. With onlyDeleted, fn is called only for deleted-marked
	// objects, at any nesting level.
	Walk(root RootKind, onlyDeleted bool, fn WalkFunc) error
}
