package store

import (
	"github.com/vinicius-lino-figueiredo/albedo/adapter/index"
)

// WithIndexOptions sets the options used for every index of the store.
func WithIndexOptions(opts ...index.Option) Option {
	return func(o *options) {
		o.indexOptions = append(o.indexOptions, opts...)
	}
}

// Option configures the store through the functional options pattern.
type Option func(*options)

type options struct {
	indexOptions []index.Option
}
