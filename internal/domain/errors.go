package domain

import "errors"

var (
	ErrDuplicateIdentity  = errors.New("connection identity already registered")
	ErrConnectionClosed   = errors.New("connection closed")
	ErrSendQueueFull      = errors.New("send queue full")
	ErrUnsupportedMessage = errors.New("only binary messages are supported")
	ErrShuttingDown       = errors.New("relay is shutting down")
)
