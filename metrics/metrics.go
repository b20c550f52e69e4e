// Package metrics exposes prometheus collectors for bucket activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "albedo"

var (
	// Registry holds the collectors of [Default].
	Registry = prometheus.NewRegistry()

	// Default is used by buckets that are not given their own collectors.
	Default = New(Registry)
)

// Metrics groups the collectors shared by every bucket of a process. Each
// series is labelled by bucket name.
type Metrics struct {
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	documents  *prometheus.GaugeVec
	batches    *prometheus.CounterVec
	cursors    *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Bucket operations by kind.",
		}, []string{"bucket", "op"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operation_failures_total",
			Help:      "Bucket operations that returned an error, by kind.",
		}, []string{"bucket", "op"}),
		documents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "documents",
			Help:      "Documents currently stored.",
		}, []string{"bucket"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "replication_batches_total",
			Help:      "Replication batches by outcome.",
		}, []string{"bucket", "outcome"}),
		cursors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "open_cursors",
			Help:      "Cursors not yet closed, by kind.",
		}, []string{"bucket", "kind"}),
	}
	reg.MustRegister(m.operations, m.failures, m.documents, m.batches, m.cursors)
	return m
}

// Bucket returns the collectors curried with the bucket label.
func (m *Metrics) Bucket(name string) *Bucket {
	if m == nil {
		return nil
	}
	return &Bucket{
		operations: m.operations.MustCurryWith(prometheus.Labels{"bucket": name}),
		failures:   m.failures.MustCurryWith(prometheus.Labels{"bucket": name}),
		documents:  m.documents.WithLabelValues(name),
		batches:    m.batches.MustCurryWith(prometheus.Labels{"bucket": name}),
		cursors:    m.cursors.MustCurryWith(prometheus.Labels{"bucket": name}),
	}
}

// Operation kinds.
const (
	OpInsert      = "insert"
	OpGet         = "get"
	OpDelete      = "delete"
	OpCount       = "count"
	OpList        = "list"
	OpTransform   = "transform"
	OpEnsureIndex = "ensure_index"
	OpDropIndex   = "drop_index"
	OpApplyBatch  = "apply_batch"
	OpSnapshot    = "snapshot"
	OpDrop        = "drop"
)

// Batch outcomes.
const (
	BatchPublished = "published"
	BatchApplied   = "applied"
	BatchRejected  = "rejected"
)

// Cursor kinds.
const (
	CursorList      = "list"
	CursorTransform = "transform"
)

// Bucket records the activity of one bucket. A nil *Bucket records nothing.
type Bucket struct {
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	documents  prometheus.Gauge
	batches    *prometheus.CounterVec
	cursors    *prometheus.GaugeVec
}

// Observe counts one operation of kind op, and a failure if err is not nil.
func (b *Bucket) Observe(op string, err error) {
	if b == nil {
		return
	}
	b.operations.WithLabelValues(op).Inc()
	if err != nil {
		b.failures.WithLabelValues(op).Inc()
	}
}

// SetDocuments sets the current document count.
func (b *Bucket) SetDocuments(n int) {
	if b == nil {
		return
	}
	b.documents.Set(float64(n))
}

// Batch counts one replication batch with the given outcome.
func (b *Bucket) Batch(outcome string) {
	if b == nil {
		return
	}
	b.batches.WithLabelValues(outcome).Inc()
}

// CursorOpened increments the open cursor gauge and returns the function
// that decrements it.
func (b *Bucket) CursorOpened(kind string) func() {
	if b == nil {
		return func() {}
	}
	g := b.cursors.WithLabelValues(kind)
	g.Inc()
	return g.Dec
}
