package wire

// Operation identifies what a control request asks the server to do.
type Operation uint8

const (
	// OpVersion asks for the server protocol version.
	OpVersion Operation = 1

	// OpDevices lists the registered devices and their states.
	OpDevices Operation = 2

	// OpConnect asks the server to bridge a networked device at Serial (host:port).
	OpConnect Operation = 3

	// OpPush transfers Data to Path on the device.
	OpPush Operation = 4

	// OpPull transfers Path from the device.
	OpPull Operation = 5

	// OpShell executes Command on the device.
	OpShell Operation = 6

	// OpTcpip switches the device to network mode on Port.
	OpTcpip Operation = 7

	// OpList enumerates the directory at Path.
	OpList Operation = 8
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpVersion:
		return "version"
	case OpDevices:
		return "devices"
	case OpConnect:
		return "connect"
	case OpPush:
		return "push"
	case OpPull:
		return "pull"
	case OpShell:
		return "shell"
	case OpTcpip:
		return "tcpip"
	case OpList:
		return "list"
	default:
		return "unknown"
	}
}

// IsValid returns true if the operation is a known value.
func (o Operation) IsValid() bool {
	return o >= OpVersion && o <= OpList
}

// TargetsDevice returns true if the operation is dispatched to one device.
func (o Operation) TargetsDevice() bool {
	return o >= OpPush && o <= OpList
}
