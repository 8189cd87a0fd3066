package ddbsdk

import (
	"time"

	"github.com/antipr000/NobaServer-sub003/dynamodb/condition"
)

// OnMissing decides what an update does with attributes explicitly set to nil.
type OnMissing string

const (
	// OnMissingRemove deletes the attribute from the stored item.
	OnMissingRemove OnMissing = "remove"
	// OnMissingSkip leaves the stored attribute untouched.
	OnMissingSkip OnMissing = "skip"
)

// Clock returns the current time for audit timestamps.
type Clock func() time.Time

// DefaultClock returns the current UTC time at the millisecond precision
// Dates are stored with.
func DefaultClock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Options tune a single write. Zero values fall back to the Mapper defaults,
// or to version checking on, OnMissingRemove and DefaultClock.
type Options struct {
	// Condition is merged with the version condition using AND.
	Condition condition.Condition
	// SkipVersionCheck, when set, overrides any instance default.
	SkipVersionCheck *bool
	OnMissing        OnMissing
	Clock            Clock
	// Expiry sets the table's time to live attribute on puts.
	Expiry *time.Time
}

// SkipVersionCheck returns a pointer for Options.SkipVersionCheck.
func SkipVersionCheck(skip bool) *bool {
	return &skip
}

func (o Options) skipVersionCheck() bool {
	return o.SkipVersionCheck != nil && *o.SkipVersionCheck
}

func (o Options) onMissing() OnMissing {
	if o.OnMissing == "" {
		return OnMissingRemove
	}
	return o.OnMissing
}

func (o Options) now() time.Time {
	if o.Clock == nil {
		return DefaultClock()
	}
	return o.Clock()
}
