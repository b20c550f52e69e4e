package persistence

import (
	"os"
	"time"

	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// WithFilename sets the database filename for persistence. An empty name or
// [InMemory] keeps everything in memory.
func WithFilename(f string) Option {
	return func(po *Persistence) {
		po.filename = f
	}
}

// WithInMemoryOnly enables in-memory only mode without file
// persistence.
func WithInMemoryOnly(i bool) Option {
	return func(po *Persistence) {
		po.inMemoryOnly = i
	}
}

// WithFileMode sets the file permissions for database files.
func WithFileMode(f os.FileMode) Option {
	return func(po *Persistence) {
		po.fileMode = f
	}
}

// WithDirMode sets the file permissions for database
// directories.
func WithDirMode(d os.FileMode) Option {
	return func(po *Persistence) {
		po.dirMode = d
	}
}

// WithTimeout sets how long opening waits for the file lock.
func WithTimeout(t time.Duration) Option {
	return func(po *Persistence) {
		po.timeout = t
	}
}

// WithNoSync skips fsync after each commit. Only meant for tests.
func WithNoSync(n bool) Option {
	return func(po *Persistence) {
		po.noSync = n
	}
}

// WithSerializer sets the serializer for converting documents to
// bytes.
func WithSerializer(s domain.Serializer) Option {
	return func(po *Persistence) {
		po.serializer = s
	}
}

// WithDeserializer sets the deserializer for converting bytes to
// documents.
func WithDeserializer(d domain.Deserializer) Option {
	return func(po *Persistence) {
		po.deserializer = d
	}
}

// WithStorage sets the file system operations used around the data
// file.
func WithStorage(s domain.Storage) Option {
	return func(po *Persistence) {
		po.storage = s
	}
}

// Option configures the persistence through the functional options pattern.
type Option func(*Persistence)
