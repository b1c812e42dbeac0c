package wire

// Command is a device link command.
type Command uint8

const (
	// CmdConnect (CNXN) completes the handshake; Data is the device banner.
	CmdConnect Command = 1

	// CmdAuth (AUTH) carries a token, a signature or a public key; Arg0 is the AuthType.
	CmdAuth Command = 2

	// CmdOpen (OPEN) opens a stream; Arg0 is the local id, Data the service name.
	CmdOpen Command = 3

	// CmdOkay (OKAY) acknowledges an OPEN or a WRTE; Arg0 local id, Arg1 remote id.
	CmdOkay Command = 4

	// CmdWrite (WRTE) carries stream data; Arg0 local id, Arg1 remote id.
	CmdWrite Command = 5

	// CmdClose (CLSE) closes a stream; Arg0 local id, Arg1 remote id.
	CmdClose Command = 6
)

// String returns the four-letter command name.
func (c Command) String() string {
	switch c {
	case CmdConnect:
		return "CNXN"
	case CmdAuth:
		return "AUTH"
	case CmdOpen:
		return "OPEN"
	case CmdOkay:
		return "OKAY"
	case CmdWrite:
		return "WRTE"
	case CmdClose:
		return "CLSE"
	default:
		return "????"
	}
}

// IsValid returns true if the command is a known value.
func (c Command) IsValid() bool {
	return c >= CmdConnect && c <= CmdClose
}

// AuthType is the Arg0 of an AUTH packet.
type AuthType uint32

const (
	// AuthToken carries the device's random token.
	AuthToken AuthType = 1

	// AuthSignature carries the host's signature of the token.
	AuthSignature AuthType = 2

	// AuthPublicKey carries the host's public key in ADB format.
	AuthPublicKey AuthType = 3
)

// TokenSize is the length of an AUTH token.
const TokenSize = 20

// Packet is one device link message.
type Packet struct {
	Command Command `cbor:"1,keyasint"`
	Arg0    uint32  `cbor:"2,keyasint,omitempty"`
	Arg1    uint32  `cbor:"3,keyasint,omitempty"`
	Data    []byte  `cbor:"4,keyasint,omitempty"`
}
