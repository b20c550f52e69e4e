// Package idgenerator contains the default [domain.IDGenerator] implementation.
package idgenerator

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/vinicius-lino-figueiredo/albedo/adapter/timegetter"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

const counterMask = 1<<24 - 1

// IDGenerator implements [domain.IDGenerator]. Every id carries the current
// Unix time in seconds, five bytes read once from the random reader, and a
// 24-bit counter that starts at a random value and wraps around.
type IDGenerator struct {
	reader     io.Reader
	timeGetter domain.TimeGetter
	entropy    [5]byte
	counter    atomic.Uint32
}

// NewIDGenerator returns a new implementation of [domain.IDGenerator]. It
// fails only if the random reader fails.
func NewIDGenerator(opts ...Option) (domain.IDGenerator, error) {
	i := IDGenerator{
		reader:     rand.Reader,
		timeGetter: timegetter.NewTimeGetter(),
	}
	for _, opt := range opts {
		opt(&i)
	}

	var buf [8]byte
	if _, err := io.ReadFull(i.reader, buf[:]); err != nil {
		return nil, fmt.Errorf("reading id entropy: %w", err)
	}
	copy(i.entropy[:], buf[:5])
	i.counter.Store(uint32(buf[5])<<16 | uint32(buf[6])<<8 | uint32(buf[7]))

	return &i, nil
}

// GenerateID implements [domain.IDGenerator].
func (i *IDGenerator) GenerateID() domain.ObjectID {
	var id domain.ObjectID
	binary.BigEndian.PutUint32(id[:4], uint32(i.timeGetter.GetTime().Unix()))
	copy(id[4:9], i.entropy[:])
	c := i.counter.Add(1) & counterMask
	id[9] = byte(c >> 16)
	id[10] = byte(c >> 8)
	id[11] = byte(c)
	return id
}
