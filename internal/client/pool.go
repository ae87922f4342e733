package client

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rbright/sysprobe/internal/protocol"
)

// Pool owns the requester's open connections, keyed by socket path.
type Pool struct {
	timeout time.Duration

	mu    sync.Mutex
	conns map[string]*Conn
}

// NewPool creates an empty pool whose connections use timeout per call.
func NewPool(timeout time.Duration) *Pool {
	return &Pool{timeout: timeout, conns: make(map[string]*Conn)}
}

// Connect dials every path not already in the pool. Paths that fail are
// reported together; the others stay connected.
func (p *Pool) Connect(ctx context.Context, paths ...string) error {
	var errs []error
	for _, path := range paths {
		if _, err := p.conn(ctx, path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Get returns the open connection for path.
func (p *Pool) Get(path string) (*Conn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conn, ok := p.conns[path]
	return conn, ok
}

// Disconnect closes and forgets the connection for path.
func (p *Pool) Disconnect(path string) error {
	p.mu.Lock()
	conn, ok := p.conns[path]
	delete(p.conns, path)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return conn.Close()
}

// Paths lists connected socket paths in sorted order.
func (p *Pool) Paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	paths := make([]string, 0, len(p.conns))
	for path := range p.conns {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	return paths
}

// Close closes every connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*Conn)
	p.mu.Unlock()

	var errs []error
	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Result is the outcome of one fan-out target.
type Result struct {
	Path     string
	Response protocol.Response
	Err      error
}

// Fanout issues call to every path in parallel and returns results in the
// order of paths. Missing connections are dialed; connections that fail at
// the transport level are dropped from the pool.
func (p *Pool) Fanout(ctx context.Context, paths []string, call protocol.Call) []Result {
	results := make([]Result, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = p.do(ctx, path, call)
		}()
	}
	wg.Wait()
	return results
}

func (p *Pool) do(ctx context.Context, path string, call protocol.Call) Result {
	conn, err := p.conn(ctx, path)
	if err != nil {
		return Result{Path: path, Err: err}
	}
	resp, err := conn.Do(ctx, call)
	if err != nil {
		var transportErr *TransportError
		if errors.As(err, &transportErr) || errors.Is(err, ErrPeerClosed) {
			p.forget(path, conn)
		}
		return Result{Path: path, Err: err}
	}
	return Result{Path: path, Response: resp}
}

func (p *Pool) conn(ctx context.Context, path string) (*Conn, error) {
	if conn, ok := p.Get(path); ok {
		return conn, nil
	}
	conn, err := Dial(ctx, path, p.timeout)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.conns[path]; ok {
		_ = conn.Close()
		return existing, nil
	}
	p.conns[path] = conn
	return conn, nil
}

func (p *Pool) forget(path string, conn *Conn) {
	p.mu.Lock()
	if p.conns[path] == conn {
		delete(p.conns, path)
	}
	p.mu.Unlock()
	_ = conn.Close()
}
