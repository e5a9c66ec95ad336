package domain

// FrameType distinguishes relayed data from server-originated control envelopes.
type FrameType int

const (
	// BinaryFrame carries an opaque client payload.
	BinaryFrame FrameType = iota
	// TextFrame carries a JSON control envelope.
	TextFrame
)

func (t FrameType) String() string {
	switch t {
	case BinaryFrame:
		return "binary"
	case TextFrame:
		return "text"
	default:
		return "unknown"
	}
}

// Frame is a single outbound message.
type Frame struct {
	Type FrameType
	Data []byte
}

// Connection is one client's session over a persistent bidirectional channel.
//
// Send and Ping must not block: implementations queue internally and return
// ErrSendQueueFull when the queue is exhausted.
type Connection interface {
	ID() string
	Send(frame Frame) error
	Ping() error
	// Close performs a graceful close handshake with the given reason.
	Close(reason string) error
	// Terminate drops the transport immediately without a close handshake.
	Terminate() error
}

// Liveness is the heartbeat state of a registered connection.
type Liveness int

const (
	Alive Liveness = iota
	Suspect
)

func (l Liveness) String() string {
	switch l {
	case Alive:
		return "alive"
	case Suspect:
		return "suspect"
	default:
		return "unknown"
	}
}
