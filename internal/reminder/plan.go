package reminder

import "venue-booking-backend/internal/lifecycle"

type actionKind int

const (
	actionEnsure actionKind = iota + 1
	actionRemove
)

func (k actionKind) String() string {
	if k == actionEnsure {
		return "ensure"
	}
	return "remove"
}

type action struct {
	kind        actionKind
	reservation lifecycle.Reservation
}

// plan diffs two reservation snapshots. Reservations missing from old (which covers the
// first load) get a reminder when approved; PENDING -> APPROVED gets a reminder;
// APPROVED -> CANCELLED or REJECTED loses it. Anything else needs no action.
func plan(old, next []lifecycle.Reservation) []action {
	prev := make(map[string]lifecycle.Status, len(old))
	for _, r := range old {
		prev[r.ID] = r.Status
	}

	var actions []action
	for _, r := range next {
		before, found := prev[r.ID]
		switch {
		case !found && r.Status == lifecycle.StatusApproved:
			actions = append(actions, action{kind: actionEnsure, reservation: r})
		case !found || before == r.Status:
		case before == lifecycle.StatusPending && r.Status == lifecycle.StatusApproved:
			actions = append(actions, action{kind: actionEnsure, reservation: r})
		case before == lifecycle.StatusApproved &&
			(r.Status == lifecycle.StatusCancelled || r.Status == lifecycle.StatusRejected):
			actions = append(actions, action{kind: actionRemove, reservation: r})
		}
	}
	return actions
}

// pass is one queued reconciliation.
type pass struct {
	old, next []lifecycle.Reservation
}

// merge folds a later submission into a queued one so that per reservation id the earliest
// known old state is diffed against the latest known new state.
func (p pass) merge(later pass) pass {
	seen := make(map[string]bool, len(p.old)+len(p.next))
	old := append([]lifecycle.Reservation(nil), p.old...)
	for _, r := range p.old {
		seen[r.ID] = true
	}
	for _, r := range p.next {
		seen[r.ID] = true
	}
	for _, r := range later.old {
		if !seen[r.ID] {
			old = append(old, r)
		}
	}

	index := make(map[string]int, len(p.next)+len(later.next))
	next := make([]lifecycle.Reservation, 0, len(p.next)+len(later.next))
	for _, r := range p.next {
		index[r.ID] = len(next)
		next = append(next, r)
	}
	for _, r := range later.next {
		if i, ok := index[r.ID]; ok {
			next[i] = r
			continue
		}
		index[r.ID] = len(next)
		next = append(next, r)
	}
	return pass{old: old, next: next}
}
