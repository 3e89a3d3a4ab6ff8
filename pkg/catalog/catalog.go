package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

// Catalog is a read-only source of configuration documents, addressed by
// base name. Implementations must be safe for concurrent use.
type Catalog interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) ([]byte, error)
}

// Watcher is implemented by catalogs that can report changes to their
// backing source. Watch blocks until ctx is done, invoking onChange after
// each settled batch of modifications.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}
