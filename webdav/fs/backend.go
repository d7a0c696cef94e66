// Package fs defines the Backend contract the dispatcher speaks to and the
// concrete backends that implement it: a local directory, a multiplex of
// several backends under distinct prefixes, and a per-user home directory
// resolver.
package fs

import "context"

// Allow names an action a caller wants to perform on a path, for the
// authorization hook (Authorizer).
type Allow string

const (
	AllowRead   = Allow("Read")
	AllowWrite  = Allow("Write")
	AllowCreate = Allow("Create")
	AllowDelete = Allow("Delete")
	AllowStat   = Allow("Stat")
)

// Action is what PermissionHandler-style hooks are evaluated against: the
// kind of touch and the path being touched. Grounded on the teacher's own
// Action{Action, Name} pair (webdav/fs/fs.go), field order included.
type Action struct {
	Action Allow
	Name   string
}

// Backend is the contract every filesystem implementation satisfies. It is
// the single polymorphic surface of the system: Directory, Multiplex, Home,
// and any future backend (database, object store) all implement it. No
// backend ever writes to an HTTP response; failures are signalled through
// the Kind carried by the returned error (see Error and KindOf in
// errors.go).
type Backend interface {
	// GetProps returns the named properties (or, if propnames is empty,
	// all standard properties) for path, scoped to user.
	GetProps(ctx context.Context, user, path string, propnames []string) (map[string]any, error)

	// GetChildren lists the immediate children of the collection at path,
	// as full paths rooted the same way path is.
	GetChildren(ctx context.Context, user, path string) ([]string, error)

	// GetContent reads bytes from path. start == -1 reads the whole
	// resource; otherwise the half-open range [start, end) is read.
	GetContent(ctx context.Context, user, path string, start, end int64) ([]byte, error)

	// SetContent writes data to path starting at start (0 for a full
	// overwrite), creating the resource if it does not already exist.
	SetContent(ctx context.Context, user, path string, data []byte, start int64) error

	// Create makes a new resource at path: a collection if isCollection,
	// otherwise an empty non-collection.
	Create(ctx context.Context, user, path string, isCollection bool) error

	// Delete removes the resource at path (recursively, for collections).
	Delete(ctx context.Context, user, path string) error

	// GetUID returns the stable resource-id used as the Lock Registry key.
	// Two paths resolving to the same underlying object must return the
	// same id.
	GetUID(ctx context.Context, user, path string) (string, error)
}
