// Package frame splits a byte stream into newline-delimited frames.
//
// The accumulation buffer grows without bound: a peer that never sends a
// delimiter makes the reader hold everything it sent.
package frame

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"os"
	"time"
)

// Delimiter separates frames on the wire.
const Delimiter = '\n'

const (
	defaultChunkSize    = 1024
	defaultPollInterval = time.Second
)

var ErrEmbeddedDelimiter = errors.New("frame body contains delimiter")

type readDeadliner interface {
	SetReadDeadline(time.Time) error
}

// Option customizes a Reader.
type Option func(*Reader)

// WithChunkSize sets how many bytes a single read asks for.
func WithChunkSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.chunk = make([]byte, n)
		}
	}
}

// WithPollInterval bounds each read when the source supports read deadlines,
// so cancellation is observed within one interval.
func WithPollInterval(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.poll = d
		}
	}
}

// Reader yields complete frames from src in arrival order. It is owned by a
// single goroutine.
type Reader struct {
	src     io.Reader
	chunk   []byte
	poll    time.Duration
	buf     []byte
	pending [][]byte
	err     error
}

// NewReader wraps src.
func NewReader(src io.Reader, opts ...Option) *Reader {
	r := &Reader{
		src:   src,
		chunk: make([]byte, defaultChunkSize),
		poll:  defaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Next returns the next frame without its delimiter. It returns io.EOF once
// the peer closed the stream (a trailing partial frame is dropped), and
// ctx.Err() when ctx ends between reads.
func (r *Reader) Next(ctx context.Context) ([]byte, error) {
	for {
		if len(r.pending) > 0 {
			frame := r.pending[0]
			r.pending[0] = nil
			r.pending = r.pending[1:]
			return frame, nil
		}
		if r.err != nil {
			return nil, r.err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		deadlined := false
		if d, ok := r.src.(readDeadliner); ok {
			deadlined = d.SetReadDeadline(time.Now().Add(r.poll)) == nil
		}

		n, err := r.src.Read(r.chunk)
		if n > 0 {
			r.feed(r.chunk[:n])
		}
		if err == nil {
			continue
		}
		if deadlined && errors.Is(err, os.ErrDeadlineExceeded) {
			continue
		}
		r.err = err
	}
}

// Frames is Next as a sequence. It ends quietly on peer close or when ctx
// ends and only yields real read errors.
func (r *Reader) Frames(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			frame, err := r.Next(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) || ctx.Err() != nil {
					return
				}
				yield(nil, err)
				return
			}
			if !yield(frame, nil) {
				return
			}
		}
	}
}

func (r *Reader) feed(data []byte) {
	for {
		i := bytes.IndexByte(data, Delimiter)
		if i < 0 {
			r.buf = append(r.buf, data...)
			return
		}
		frame := make([]byte, 0, len(r.buf)+i)
		frame = append(frame, r.buf...)
		frame = append(frame, data[:i]...)
		r.pending = append(r.pending, frame)
		r.buf = r.buf[:0]
		data = data[i+1:]
	}
}

// Write sends msg as one frame in a single write. A trailing delimiter on
// msg is accepted; any other delimiter in msg is rejected.
func Write(w io.Writer, msg []byte) error {
	body := bytes.TrimSuffix(msg, []byte{Delimiter})
	if bytes.IndexByte(body, Delimiter) >= 0 {
		return ErrEmbeddedDelimiter
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, body...)
	out = append(out, Delimiter)
	_, err := w.Write(out)
	return err
}
