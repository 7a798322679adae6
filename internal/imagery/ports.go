package imagery

import (
	"context"
	"time"
)

// Source opens sessions against the remote time-sequenced file source.
type Source interface {
	OpenSession(ctx context.Context) (Session, error)
}

// Session is one logical conversation with the remote source. Sessions are
// opened per high-level operation and closed when it ends; they are never
// shared between operations.
type Session interface {
	// ListFrames lists dir and keeps entries whose basename starts with
	// idPrefix and ends with ext. The result is not sorted.
	ListFrames(ctx context.Context, dir, idPrefix, ext string) ([]string, error)
	// FetchBytes retrieves one file fully into memory.
	FetchBytes(ctx context.Context, path string) ([]byte, error)
	Close() error
}

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// ObjectStore is the durable object storage the cache lives in. Head, Get and
// Delete return an error matching ErrObjectNotFound for missing keys.
type ObjectStore interface {
	Head(ctx context.Context, key string) (ObjectInfo, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	// List returns objects under prefix. With a non-empty delimiter, keys
	// containing the delimiter after the prefix are not returned.
	List(ctx context.Context, prefix, delimiter string) ([]ObjectInfo, error)
}

// Catalog is the key to name lookup of known subjects.
type Catalog interface {
	RadarSubjects(ctx context.Context) ([]Subject, error)
	SatelliteSubjects(ctx context.Context) ([]Subject, error)
	Lookup(ctx context.Context, kind Kind, id string) (Subject, error)
}
