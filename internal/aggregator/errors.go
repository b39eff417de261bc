package aggregator

import "fmt"

// InsufficientConfluenceError reports that too many timeframes came
// back degraded to trust a consolidated signal. No signal is emitted.
type InsufficientConfluenceError struct {
	Degraded  int
	Total     int
	Threshold float64
}

func (e *InsufficientConfluenceError) Error() string {
	return fmt.Sprintf("insufficient confluence: %d of %d timeframes degraded (threshold %.0f%%)",
		e.Degraded, e.Total, e.Threshold*100)
}
