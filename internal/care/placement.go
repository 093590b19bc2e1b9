package care

// Placement is a task assigned to the half-open interval [Start, End).
type Placement struct {
	Task   Task
	Start  Clock
	End    Clock
	Fixed  bool
	Reason string
}

// Overlaps reports a positive-length intersection; back-to-back is not an overlap.
func (p Placement) Overlaps(o Placement) bool {
	return p.Start < o.End && o.Start < p.End
}
