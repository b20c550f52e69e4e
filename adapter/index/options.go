package index

import "github.com/vinicius-lino-figueiredo/albedo/domain"

// WithComparer sets the comparer that orders index keys.
func WithComparer(c domain.Comparer) Option {
	return func(o *options) {
		o.comparer = c
	}
}

// WithFieldNavigator sets the navigator that reads the indexed field.
func WithFieldNavigator(f domain.FieldNavigator) Option {
	return func(o *options) {
		o.fieldNavigator = f
	}
}

// Option configures indexes through the functional options pattern.
type Option func(*options)

type options struct {
	comparer       domain.Comparer
	fieldNavigator domain.FieldNavigator
}
