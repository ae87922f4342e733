package client

import (
	"errors"
	"fmt"
	"time"
)

// ErrPeerClosed reports a responder that closed the connection before replying.
var ErrPeerClosed = errors.New("peer closed the connection")

// ConnectError reports that no responder accepted a connection at Path.
type ConnectError struct {
	Path string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Path, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// TransportError reports an I/O failure on an established connection.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteError is an error response returned by a responder.
type RemoteError struct {
	Message   string
	Timestamp time.Time
}

func (e *RemoteError) Error() string {
	return "responder error: " + e.Message
}
