package expect

import "sync"

// outcome is the declared result shared by every builder. Builders may be
// written to after declaration, so reads and writes go through mu.
type outcome struct {
	mu          sync.Mutex
	failMessage string
	failed      bool
}

func (o *outcome) setFailure(message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failMessage = message
	o.failed = true
}

// Failure returns the declared failure message, if FailWith was called.
func (o *outcome) Failure() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failMessage, o.failed
}
