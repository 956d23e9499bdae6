// Package clock abstracts time for the backup runner. Artifact names and
// retention cutoffs both derive from "now", so pinning the clock makes
// rotation behaviour reproducible in tests and debuggable in the field.
package clock

import "time"

// Clock supplies the current time to anything that names or ages artifacts.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns a Clock backed by time.Now.
func System() Clock { return systemClock{} }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// Fixed returns a Clock pinned to t. Used by tests and the WALBACK_NOW
// debug hook.
func Fixed(t time.Time) Clock { return fixedClock{t: t} }
