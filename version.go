package spaserve

import "sync/atomic"

// Version is the reload state shared between the watcher and the HTTP
// handlers. Every qualifying filesystem change advances the counter by one.
type Version struct {
	current atomic.Uint64
	acked   atomic.Uint64
}

// Advance records a change and returns the new version.
func (v *Version) Advance() uint64 {
	return v.current.Add(1)
}

// Current returns the latest version.
func (v *Version) Current() uint64 {
	return v.current.Load()
}

// Since reports whether the version moved past a version a client already saw.
func (v *Version) Since(seen uint64) bool {
	return v.current.Load() > seen
}

// Acknowledge is the clear-on-read check for clients that don't track a
// version. It reports true at most once per change.
func (v *Version) Acknowledge() bool {
	for {
		current := v.current.Load()
		acked := v.acked.Load()
		if acked >= current {
			return false
		}
		if v.acked.CompareAndSwap(acked, current) {
			return true
		}
	}
}
