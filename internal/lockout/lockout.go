// Package lockout implements progressive account lockout.
//
// The state lives on the credential row (owned by the user store); this
// package holds the pure policy so it can be exercised without persistence.
// Counter increments happen under the store's per-credential write lock, so
// concurrent failures are never undercounted.
package lockout

import (
	"time"
)

// Forever marks administrative or manual locks that never expire on their
// own. Chosen to be representable in both postgres timestamps and JSON.
var Forever = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// IsForever reports whether the expiry is the infinite sentinel.
func IsForever(t time.Time) bool {
	return t.Equal(Forever)
}

// State is the per-credential lockout sub-state.
type State struct {
	Attempts int
	Locked   bool
	Reason   string
	Expiry   time.Time
}

// Decision is the outcome of a lock check.
type Decision struct {
	Allowed bool
	Reason  string
	Expiry  time.Time
}

// Policy configures the lockout thresholds.
type Policy struct {
	MaxAttempts  int
	LockDuration time.Duration
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 10, LockDuration: time.Hour}
}

// RecordFailure increments the attempt counter and locks the account when the
// threshold is reached. The lock reason embeds origin so operators can see
// where the failures came from. The counter resets to zero on the locking
// transition. Returns true when this call performed the transition, which
// happens exactly once per lock.
func (p Policy) RecordFailure(s *State, origin string, now time.Time) bool {
	s.Attempts++
	if s.Attempts < p.MaxAttempts {
		return false
	}
	s.Attempts = 0
	s.Locked = true
	s.Reason = "TooManyPasswordAttempts " + origin
	s.Expiry = now.Add(p.LockDuration)
	return true
}

// RecordSuccess resets the attempt counter. The lock flag is untouched:
// success and lock are independent once locked.
func (p Policy) RecordSuccess(s *State) {
	s.Attempts = 0
}

// Check evaluates the lock. A finite lock whose expiry has passed is cleared
// in the same call and the decision is Allowed; there is no separate unlock
// sweep. Callers must persist the state when Check reports Allowed on a
// previously locked record.
func (p Policy) Check(s *State, now time.Time) Decision {
	if !s.Locked {
		return Decision{Allowed: true}
	}
	if !IsForever(s.Expiry) && !now.Before(s.Expiry) {
		s.Locked = false
		s.Reason = ""
		return Decision{Allowed: true}
	}
	return Decision{Reason: s.Reason, Expiry: s.Expiry}
}

// LockManual applies an operator lock with the infinite expiry sentinel.
// Used for private-instance account validation holds.
func (s *State) LockManual(reason string) {
	s.Attempts = 0
	s.Locked = true
	s.Reason = reason
	s.Expiry = Forever
}
