package scheduler

import "github.com/me/dispatch/pkg/model"

// adjustPriority returns the tier a preempted job is re-enqueued into.
// The result is always a user tier.
func adjustPriority(priority int, aging Aging) int {
	next := priority
	switch aging {
	case AgingPromote:
		next--
	default:
		next++
	}
	if next < model.TierUser1 {
		next = model.TierUser1
	}
	if next > model.TierUser3 {
		next = model.TierUser3
	}
	return next
}
