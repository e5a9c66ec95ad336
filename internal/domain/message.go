package domain

// MessageType identifies a control envelope.
type MessageType string

const (
	MessageWelcome MessageType = "welcome"
	MessageJoin    MessageType = "join"
	MessageLeave   MessageType = "leave"
	MessageError   MessageType = "error"
)

// LifecycleMessage is a welcome, join or leave envelope.
// Field names are part of the wire contract.
type LifecycleMessage struct {
	Type        MessageType `json:"type"`
	ClientID    string      `json:"clientId"`
	ClientCount int         `json:"clientCount"`
}

// ErrorMessage is sent only to the client that violated the payload contract.
type ErrorMessage struct {
	Type  MessageType `json:"type"`
	Error string      `json:"error"`
}

func NewWelcome(clientID string, clientCount int) LifecycleMessage {
	return LifecycleMessage{Type: MessageWelcome, ClientID: clientID, ClientCount: clientCount}
}

func NewJoin(clientID string, clientCount int) LifecycleMessage {
	return LifecycleMessage{Type: MessageJoin, ClientID: clientID, ClientCount: clientCount}
}

func NewLeave(clientID string, clientCount int) LifecycleMessage {
	return LifecycleMessage{Type: MessageLeave, ClientID: clientID, ClientCount: clientCount}
}

// NewError builds an error envelope. The message text is part of the wire
// contract, e.g. "Only binary messages are supported".
func NewError(message string) ErrorMessage {
	return ErrorMessage{Type: MessageError, Error: message}
}
