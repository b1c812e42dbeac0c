package device

// Scripted is a simulated device that answers every operation from its
// declared expectations.
type Scripted struct {
	*Expectations
}

// NewScripted creates a scripted device.
func NewScripted(serial string, cfg Config) *Scripted {
	cfg = cfg.withDefaults()
	return &Scripted{Expectations: newExpectations(serial, cfg)}
}
