// Package client issues typed calls to sysprobe responders.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/rbright/sysprobe/internal/frame"
	"github.com/rbright/sysprobe/internal/protocol"
)

const readPoll = 100 * time.Millisecond

// Conn is one requester connection. Calls on a Conn are serialized.
type Conn struct {
	path    string
	timeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	reader *frame.Reader
	broken error
	closed bool
}

// Dial connects to the responder socket at path. A zero timeout means no
// per-call deadline beyond ctx.
func Dial(ctx context.Context, path string, timeout time.Duration) (*Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, &ConnectError{Path: path, Err: err}
	}
	return &Conn{
		path:    path,
		timeout: timeout,
		conn:    conn,
		reader:  frame.NewReader(conn, frame.WithPollInterval(readPoll)),
	}, nil
}

// Path returns the socket path this connection was dialed to.
func (c *Conn) Path() string {
	return c.path
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked(net.ErrClosed)
}

func (c *Conn) closeLocked(reason error) error {
	if c.broken == nil {
		c.broken = reason
	}
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// Do sends call and waits for exactly one response. There are no retries;
// after a transport failure the connection is unusable.
func (c *Conn) Do(ctx context.Context, call protocol.Call) (protocol.Response, error) {
	msg, err := protocol.EncodeCall(call)
	if err != nil {
		return protocol.Response{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken != nil {
		return protocol.Response{}, &TransportError{Op: "call " + c.path, Err: c.broken}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	deadline, _ := ctx.Deadline()
	_ = c.conn.SetWriteDeadline(deadline)

	if err := frame.Write(c.conn, msg); err != nil {
		return protocol.Response{}, c.fail("write request", err)
	}

	reply, err := c.reader.Next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			_ = c.closeLocked(ErrPeerClosed)
			return protocol.Response{}, ErrPeerClosed
		}
		return protocol.Response{}, c.fail("read response", err)
	}

	resp, err := protocol.DecodeResponse(reply)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

func (c *Conn) fail(op string, err error) error {
	_ = c.closeLocked(err)
	return &TransportError{Op: op, Err: err}
}

func (c *Conn) MonitorParams(ctx context.Context) (protocol.MonitorParams, error) {
	return doTyped[protocol.MonitorParams](ctx, c, protocol.GetMonitorParams{})
}

func (c *Conn) PixelColor(ctx context.Context, x, y int) (protocol.PixelColor, error) {
	return doTyped[protocol.PixelColor](ctx, c, protocol.GetPixelColor{X: x, Y: y})
}

func (c *Conn) ProcessID(ctx context.Context) (int, error) {
	return doTyped[int](ctx, c, protocol.GetProcessID{})
}

func (c *Conn) ThreadCount(ctx context.Context) (int, error) {
	return doTyped[int](ctx, c, protocol.GetThreadCount{})
}

func doTyped[T any](ctx context.Context, c *Conn, call protocol.Call) (T, error) {
	var zero T
	resp, err := c.Do(ctx, call)
	if err != nil {
		return zero, err
	}
	if !resp.Success {
		return zero, &RemoteError{Message: resp.Error, Timestamp: resp.Timestamp}
	}
	return protocol.DecodeResult[T](resp)
}

// Send dials path, issues one call, and closes the connection.
func Send(ctx context.Context, path string, call protocol.Call, timeout time.Duration) (protocol.Response, error) {
	conn, err := Dial(ctx, path, timeout)
	if err != nil {
		return protocol.Response{}, err
	}
	defer conn.Close()
	return conn.Do(ctx, call)
}

// Probe checks whether a responder is answering on path. Any response,
// including an error response, counts as alive.
func Probe(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := Send(ctx, path, protocol.GetProcessID{}, timeout)
	if err == nil {
		return true, nil
	}
	if isSocketMissing(err) || isConnectionRefused(err) {
		return false, nil
	}
	return false, fmt.Errorf("probe socket: %w", err)
}

// isSocketMissing reports absent-socket failures.
func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist)
}

// isConnectionRefused reports no-listener failures.
func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
