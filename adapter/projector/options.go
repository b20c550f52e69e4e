package projector

import "github.com/vinicius-lino-figueiredo/albedo/domain"

// WithFieldNavigator sets the [domain.FieldNavigator] that will be used by
// [Projector].
func WithFieldNavigator(fn domain.FieldNavigator) Option {
	return func(p *Projector) {
		p.fn = fn
	}
}

// Option configures projector behavior through the functional options pattern.
type Option func(*Projector)
