package sync

// Governor enforces a hard ceiling on upstream API calls for a single
// sync invocation. Cost is consumed at admission time, before any call
// in the estimate is made, so the ceiling is never breached mid-item.
type Governor struct {
	budget int
	used   int
}

// NewGovernor creates a governor with the given call budget
func NewGovernor(budget int) *Governor {
	return &Governor{budget: budget}
}

// WouldExceed reports whether consuming cost calls would breach the budget
func (g *Governor) WouldExceed(cost int) bool {
	return g.used+cost > g.budget
}

// Consume records cost calls against the budget
func (g *Governor) Consume(cost int) {
	g.used += cost
}

// Used returns the number of calls consumed so far
func (g *Governor) Used() int {
	return g.used
}
