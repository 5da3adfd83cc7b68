package history

// ObjectHandle identifies an object the host created.
type ObjectHandle struct {
	ID   string
	Name string
	URL  string
}

// Host is the application owning the live objects whose history is kept.
type Host interface {
	// HasObject reports whether a live object with this name exists.
	HasObject(name string) bool

	// CreateObject creates a live object from a configuration snapshot.
	CreateObject(name string, content []byte) (*ObjectHandle, error)
}
