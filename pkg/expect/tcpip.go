package expect

import "strconv"

// TcpipExpectation is a declared switch to network mode on a port.
type TcpipExpectation struct {
	port int
}

// NewTcpipExpectation creates an expectation for port.
func NewTcpipExpectation(port int) *TcpipExpectation {
	return &TcpipExpectation{port: port}
}

// Port returns the expected port.
func (e *TcpipExpectation) Port() int { return e.port }

// MatchKey implements Keyed.
func (e *TcpipExpectation) MatchKey() int { return e.port }

func (e *TcpipExpectation) String() string {
	return "expected tcpip on " + strconv.Itoa(e.port)
}
