package pipeline

import "sync/atomic"

// Progress tracks completion of a fixed number of units. It is safe for
// concurrent use; Fraction never exceeds 1.0 and never decreases while
// units only complete.
type Progress struct {
	total int64
	done  atomic.Int64
}

// NewProgress creates a tracker for total units. Seed pre-counts units
// already complete, for resumed runs.
func NewProgress(total, seed int) *Progress {
	p := &Progress{total: int64(total)}
	p.done.Store(int64(seed))
	return p
}

// Add records n more completed units.
func (p *Progress) Add(n int) {
	p.done.Add(int64(n))
}

// Done returns the number of completed units.
func (p *Progress) Done() int {
	return int(p.done.Load())
}

// Fraction returns completion in [0, 1]. A zero-total tracker reports 1.
func (p *Progress) Fraction() float64 {
	if p.total <= 0 {
		return 1
	}
	f := float64(p.done.Load()) / float64(p.total)
	if f > 1 {
		return 1
	}
	return f
}
