package history

// Operation is the lifecycle event a record captures.
type Operation string

const (
	OpCreated  Operation = "Created"
	OpChanged  Operation = "Changed"
	OpDeleted  Operation = "Deleted"
	OpRenamed  Operation = "Renamed"
	OpRestored Operation = "Restored"
)

// RootKind selects one of the two history roots.
type RootKind int

const (
	RootSystem RootKind = iota
	RootJobs
)

func (k RootKind) String() string {
	if k == RootJobs {
		return "jobs"
	}
	return "system"
}

// Record is one timestamped snapshot of an object's configuration.
// Timestamp doubles as the record's directory name and is unique within
// an object's history.
type Record struct {
	Root       RootKind
	ObjectName string // may be nested: "folder/child"
	Timestamp  string
	Operation  Operation
	User       string
	UserID     string
	HasContent bool
}

// IsJob reports whether the record belongs to a job rather than a system
// setting.
func (r *Record) IsJob() bool {
	return r.Root == RootJobs
}

// ConfigInfo is a record prepared for display, with a link to its content.
type ConfigInfo struct {
	*Record
	Link string
}
