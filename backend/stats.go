package backend

// Stats aggregates job counts for one backend channel.
type Stats struct {
	Total    int64 `json:"total"`
	Waiting  int64 `json:"waiting"`
	Reserved int64 `json:"reserved"`
	Failed   int64 `json:"failed"`
}

// Add counts one job of the given status.
func (s *Stats) Add(st Status) {
	s.Total++
	switch st {
	case StatusWaiting:
		s.Waiting++
	case StatusReserved:
		s.Reserved++
	case StatusFailed:
		s.Failed++
	}
}

// Consistent reports whether the per-status counts sum to Total. Counts
// taken by separate queries may briefly disagree while the backend mutates.
func (s Stats) Consistent() bool {
	return s.Waiting+s.Reserved+s.Failed == s.Total
}

// StatsOf computes Stats over a set of records.
func StatsOf(records []*Record) Stats {
	var s Stats
	for _, r := range records {
		s.Add(r.Status())
	}
	return s
}
