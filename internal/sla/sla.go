// Package sla computes SLA breach status for tickets.
package sla

import "time"

// IsBreached reports whether now is strictly after deadline. A deadline
// exactly equal to now is not a breach. A zero deadline never breaches;
// deadlines are required at creation, so that case is defensive only.
func IsBreached(deadline, now time.Time) bool {
	if deadline.IsZero() {
		return false
	}
	return now.After(deadline)
}
