// Package hasher contains an xxhash based implementation of [domain.Hasher].
// Documents are hashed over their msgpack encoding, which is deterministic, so
// documents with the same fields in the same order always share a hash.
package hasher

import (
	"github.com/cespare/xxhash/v2"

	"github.com/vinicius-lino-figueiredo/albedo/adapter/serializer"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// Hasher implements [domain.Hasher].
type Hasher struct{}

// NewHasher returns a new implementation of [domain.Hasher].
func NewHasher() domain.Hasher {
	return &Hasher{}
}

// Hash implements domain.Hasher.
func (h *Hasher) Hash(doc domain.Document) (uint64, error) {
	b, err := serializer.Marshal(doc)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(b), nil
}
