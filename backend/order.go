package backend

import "sort"

// Order is a hint telling an adapter how to sort ListJobs results.
type Order int

const (
	// OrderTriage sorts reserved jobs first, then waiting, then failed,
	// each group by push time descending.
	OrderTriage Order = iota

	// OrderPushedDesc sorts by push time descending only.
	OrderPushedDesc
)

// Bucket returns the triage group of a record: 0 for reserved work that has
// not failed, 1 for waiting, 2 for failed.
func Bucket(r *Record) int {
	switch {
	case r.Fail:
		return 2
	case r.ReservedAt != nil:
		return 0
	default:
		return 1
	}
}

// Less reports whether a sorts before b under the given order.
func Less(a, b *Record, o Order) bool {
	if o == OrderTriage {
		if ba, bb := Bucket(a), Bucket(b); ba != bb {
			return ba < bb
		}
	}
	return a.PushedAt.After(b.PushedAt)
}

// Sort orders records in place. The sort is stable so equal keys keep the
// backend's order.
func Sort(records []*Record, o Order) {
	sort.SliceStable(records, func(i, j int) bool {
		return Less(records[i], records[j], o)
	})
}
