package expect

// Kind is the operation kind an expectation answers.
type Kind uint8

const (
	// KindPush is a file transfer from host to device.
	KindPush Kind = iota + 1
	// KindPull is a file transfer from device to host.
	KindPull
	// KindShell is a command execution.
	KindShell
	// KindList is a directory listing.
	KindList
	// KindTcpip switches the device to network mode on a port.
	KindTcpip
)

// String returns the operation name.
func (k Kind) String() string {
	switch k {
	case KindPush:
		return "push"
	case KindPull:
		return "pull"
	case KindShell:
		return "shell"
	case KindList:
		return "list"
	case KindTcpip:
		return "tcpip"
	default:
		return "unknown"
	}
}

// describeKey renders the key the way the failure messages phrase it.
func describeKey(k Kind, key string) string {
	switch k {
	case KindPush, KindPull:
		return "at " + key
	case KindShell:
		return ": " + key
	case KindList:
		return "in dir " + key
	case KindTcpip:
		return "(port) " + key
	default:
		return key
	}
}
