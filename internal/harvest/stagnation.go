// internal/harvest/stagnation.go
package harvest

// StagnationDetector counts consecutive reveal cycles in which the
// surface extent did not grow.
type StagnationDetector struct {
	ceiling int
	last    int64
	primed  bool
	count   int
}

// NewStagnationDetector creates a detector that signals stop after
// ceiling stagnant cycles. Ceilings below 1 are raised to 1.
func NewStagnationDetector(ceiling int) *StagnationDetector {
	if ceiling < 1 {
		ceiling = 1
	}
	return &StagnationDetector{ceiling: ceiling}
}

// Observe records a new extent and reports whether the harvest should
// stop. The first observation has nothing to compare against and
// always resets the counter.
func (d *StagnationDetector) Observe(extent int64) bool {
	if d.primed && extent == d.last {
		d.count++
	} else {
		d.count = 0
		d.last = extent
		d.primed = true
	}
	return d.count >= d.ceiling
}

// Fail counts a cycle that could not be measured as stagnant
func (d *StagnationDetector) Fail() bool {
	d.count++
	return d.count >= d.ceiling
}

// Stagnant returns the current run of stagnant cycles
func (d *StagnationDetector) Stagnant() int {
	return d.count
}

// Ceiling returns the configured stop threshold
func (d *StagnationDetector) Ceiling() int {
	return d.ceiling
}
