package montecarlo

// InvalidSignalError reports a structurally inconsistent simulation
// input: a stop on the wrong side of entry or a non-positive
// volatility estimate. It is fatal for that risk assessment only.
type InvalidSignalError struct {
	Reason string
}

func (e *InvalidSignalError) Error() string {
	return "invalid signal: " + e.Reason
}
