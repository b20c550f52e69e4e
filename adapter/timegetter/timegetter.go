// Package timegetter contains the [domain.TimeGetter] implementations used to
// timestamp generated identifiers.
package timegetter

import (
	"time"

	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// TimeGetter implements [domain.TimeGetter] with the wall clock.
type TimeGetter struct{}

// NewTimeGetter returns a new implementation of domain.TimeGetter.
func NewTimeGetter() domain.TimeGetter {
	return &TimeGetter{}
}

// GetTime implements [domain.TimeGetter].
func (t *TimeGetter) GetTime() time.Time {
	return time.Now()
}

// Fixed implements [domain.TimeGetter] always returning the same instant.
type Fixed time.Time

// GetTime implements [domain.TimeGetter].
func (f Fixed) GetTime() time.Time {
	return time.Time(f)
}
