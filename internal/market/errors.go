package market

import "fmt"

// InvalidParameterError reports malformed configuration or input. It is
// fatal for the operation that received it; the caller must fix the
// parameter rather than retry.
type InvalidParameterError struct {
	Name   string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Name, e.Reason)
}
