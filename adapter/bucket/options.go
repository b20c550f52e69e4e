package bucket

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/vinicius-lino-figueiredo/albedo/domain"
	"github.com/vinicius-lino-figueiredo/albedo/metrics"
)

// WithName sets the name the bucket is reported under in logs and metrics.
// It defaults to the base name of the data file.
func WithName(n string) Option {
	return func(b *Bucket) {
		b.name = n
	}
}

// WithInMemoryOnly enables in-memory only mode without file persistence.
func WithInMemoryOnly(i bool) Option {
	return func(b *Bucket) {
		b.inMemoryOnly = i
	}
}

// WithSerializer sets the serializer for converting documents to bytes.
func WithSerializer(s domain.Serializer) Option {
	return func(b *Bucket) {
		b.serializer = s
	}
}

// WithDeserializer sets the deserializer for converting bytes to documents.
func WithDeserializer(d domain.Deserializer) Option {
	return func(b *Bucket) {
		b.deserializer = d
	}
}

// WithComparer sets the comparer for value comparison operations.
func WithComparer(c domain.Comparer) Option {
	return func(b *Bucket) {
		b.comparer = c
	}
}

// WithFileMode sets the file permissions for database files.
func WithFileMode(f os.FileMode) Option {
	return func(b *Bucket) {
		b.fileMode = f
	}
}

// WithDirMode sets the directory permissions for database directories.
func WithDirMode(d os.FileMode) Option {
	return func(b *Bucket) {
		b.dirMode = d
	}
}

// WithTimeout sets how long opening waits for the lock on the data file.
func WithTimeout(t time.Duration) Option {
	return func(b *Bucket) {
		b.timeout = t
	}
}

// WithNoSync skips fsync after every commit. Only meant for tests and bulk
// loads.
func WithNoSync(n bool) Option {
	return func(b *Bucket) {
		b.noSync = n
	}
}

// WithPersistence sets the persistence implementation for data storage.
func WithPersistence(p domain.Persistence) Option {
	return func(b *Bucket) {
		b.persistence = p
	}
}

// WithStorage sets the storage implementation for low-level file operations.
func WithStorage(s domain.Storage) Option {
	return func(b *Bucket) {
		b.storage = s
	}
}

// WithDecoder sets the decoder used by cursors to scan into user types.
func WithDecoder(d domain.Decoder) Option {
	return func(b *Bucket) {
		b.decoder = d
	}
}

// WithMatcher sets the matcher implementation for query evaluation.
func WithMatcher(m domain.Matcher) Option {
	return func(b *Bucket) {
		b.matcher = m
	}
}

// WithProjector sets the projector applied to listed documents.
func WithProjector(p domain.Projector) Option {
	return func(b *Bucket) {
		b.projector = p
	}
}

// WithCursorFactory sets the factory function for creating cursor instances.
func WithCursorFactory(c domain.CursorFactory) Option {
	return func(b *Bucket) {
		b.cursorFactory = c
	}
}

// WithTimeGetter sets the clock used to generate ids.
func WithTimeGetter(t domain.TimeGetter) Option {
	return func(b *Bucket) {
		b.timeGetter = t
	}
}

// WithHasher sets the hasher used to skip replicated documents that did not
// change.
func WithHasher(h domain.Hasher) Option {
	return func(b *Bucket) {
		b.hasher = h
	}
}

// WithFieldNavigator sets the field navigator for accessing document fields.
func WithFieldNavigator(f domain.FieldNavigator) Option {
	return func(b *Bucket) {
		b.fieldNavigator = f
	}
}

// WithIDGenerator sets the idgenerator to create new document ids.
func WithIDGenerator(ig domain.IDGenerator) Option {
	return func(b *Bucket) {
		b.idGenerator = ig
	}
}

// WithRandomReader sets the reader to be used by the IDGenerator.
func WithRandomReader(r io.Reader) Option {
	return func(b *Bucket) {
		b.randomReader = r
	}
}

// WithLogger sets the logger. It defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(b *Bucket) {
		b.logger = l
	}
}

// WithMetrics sets the collectors the bucket reports to. A nil value
// disables metrics. It defaults to [metrics.Default].
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bucket) {
		b.collectors = m
	}
}

// Option configures bucket behavior through the functional options
// pattern.
type Option func(*Bucket)
