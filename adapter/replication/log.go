// Package replication records the committed mutations of a bucket as
// sequence-numbered batches, delivers them to subscribers and encodes them
// for transport.
package replication

import (
	"sync"

	"github.com/google/uuid"

	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// Log hands out sequence numbers and fans batches out to subscriptions. The
// bucket serializes calls to Stamp and Publish with its mutation lock.
type Log struct {
	mu     sync.Mutex
	source string
	seq    uint64
	subs   map[*Subscription]struct{}
	closed bool
}

// NewLog returns a log for source continuing after seq. An empty source gets
// a new random identity.
func NewLog(source string, seq uint64) *Log {
	if source == "" {
		source = uuid.NewString()
	}
	return &Log{
		source: source,
		seq:    seq,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Source returns the identity of the log.
func (l *Log) Source() string {
	return l.source
}

// Seq returns the last sequence number handed out.
func (l *Log) Seq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// Stamp assigns the next sequence numbers to records and returns the batch
// carrying them. The sequence only advances once the batch is published.
func (l *Log) Stamp(records []domain.Record) domain.Batch {
	l.mu.Lock()
	next := l.seq
	l.mu.Unlock()

	stamped := make([]domain.Record, len(records))
	for n, r := range records {
		next++
		r.Seq = next
		stamped[n] = r
	}
	return domain.Batch{Source: l.source, HighWater: next, Records: stamped}
}

// Publish advances the sequence to the batch high water mark and enqueues
// the encoded batch on every subscription. The sequence advances even if the
// batch cannot be encoded.
func (l *Log) Publish(b domain.Batch) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq = max(l.seq, b.HighWater)
	if len(l.subs) == 0 {
		return nil
	}
	encoded, err := EncodeBatch(b)
	if err != nil {
		return err
	}
	for sub := range l.subs {
		sub.push(encoded)
	}
	return nil
}

// Snapshot encodes docs as a snapshot batch covering everything published
// so far.
func (l *Log) Snapshot(docs []domain.Document) ([]byte, error) {
	records := make([]domain.Record, len(docs))
	for n, d := range docs {
		records[n] = domain.Record{Op: domain.OpInsert, ID: d.ID(), Doc: d}
	}
	return EncodeBatch(domain.Batch{
		Source:    l.source,
		Snapshot:  true,
		HighWater: l.Seq(),
		Records:   records,
	})
}

// Subscribe starts a new subscription. Subscribing to a closed log returns
// a subscription whose channel is already closed.
func (l *Log) Subscribe() *Subscription {
	sub := newSubscription(l)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		sub.finish()
		return sub
	}
	l.subs[sub] = struct{}{}
	return sub
}

// Subscribers returns the number of active subscriptions.
func (l *Log) Subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

func (l *Log) remove(sub *Subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.subs, sub)
}

// Close ends every subscription once its pending batches are delivered.
func (l *Log) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	for sub := range l.subs {
		sub.finish()
	}
	clear(l.subs)
}
