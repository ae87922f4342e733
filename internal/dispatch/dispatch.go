// Package dispatch routes decoded calls to the data providers of one responder role.
package dispatch

import (
	"context"
	"fmt"

	"github.com/rbright/sysprobe/internal/protocol"
)

// Display provides main-monitor data for the monitor role.
type Display interface {
	MainMonitorParams(ctx context.Context) (protocol.MonitorParams, error)
	MainMonitorPixelColor(ctx context.Context, x, y int) (protocol.PixelColor, error)
}

// Process provides facts about the responder process for the proc role.
type Process interface {
	ProcessID(ctx context.Context) (int, error)
	ThreadCount(ctx context.Context) (int, error)
}

// Table maps every call to its provider. It is safe for concurrent use when
// the providers are.
type Table struct {
	role    protocol.Role
	display Display
	process Process
}

var _ protocol.Visitor = (*Table)(nil)

// New builds the table for role. Providers the role does not serve may be nil.
func New(role protocol.Role, display Display, process Process) *Table {
	return &Table{role: role, display: display, process: process}
}

// Role reports the role this table serves.
func (t *Table) Role() protocol.Role {
	return t.role
}

// Tags lists the call tags this table answers.
func (t *Table) Tags() []protocol.Tag {
	var tags []protocol.Tag
	for _, tag := range protocol.Tags() {
		if tag.Role() == t.role {
			tags = append(tags, tag)
		}
	}
	return tags
}

// HandleFrame decodes one frame and handles it. Decode failures become error
// responses so the connection can keep going.
func (t *Table) HandleFrame(ctx context.Context, frame []byte) protocol.Response {
	call, err := protocol.DecodeCall(frame)
	if err != nil {
		return protocol.Fail(err.Error())
	}
	return t.Handle(ctx, call)
}

// Handle runs call against its provider. Provider errors and panics are
// reported as error responses.
func (t *Table) Handle(ctx context.Context, call protocol.Call) (resp protocol.Response) {
	if call == nil {
		return protocol.Fail("no call")
	}
	if owner := call.Tag().Role(); owner != t.role {
		return protocol.Failf("%s is not served by the %s role", call.Tag(), t.role)
	}

	defer func() {
		if r := recover(); r != nil {
			resp = protocol.Failf("%s: provider panic: %v", call.Tag(), r)
		}
	}()
	return call.Accept(ctx, t)
}

func (t *Table) VisitMonitorParams(ctx context.Context, _ protocol.GetMonitorParams) protocol.Response {
	if t.display == nil {
		return protocol.Fail("no display provider configured")
	}
	params, err := t.display.MainMonitorParams(ctx)
	if err != nil {
		return protocol.Fail(err.Error())
	}
	return succeed(params)
}

func (t *Table) VisitPixelColor(ctx context.Context, call protocol.GetPixelColor) protocol.Response {
	if call.X < 0 || call.Y < 0 {
		return protocol.Failf("pixel coordinates must be non-negative, got (%d,%d)", call.X, call.Y)
	}
	if t.display == nil {
		return protocol.Fail("no display provider configured")
	}
	color, err := t.display.MainMonitorPixelColor(ctx, call.X, call.Y)
	if err != nil {
		return protocol.Fail(err.Error())
	}
	return succeed(color)
}

func (t *Table) VisitProcessID(ctx context.Context, _ protocol.GetProcessID) protocol.Response {
	if t.process == nil {
		return protocol.Fail("no process provider configured")
	}
	pid, err := t.process.ProcessID(ctx)
	if err != nil {
		return protocol.Fail(err.Error())
	}
	if pid <= 0 {
		return protocol.Failf("invalid process id %d", pid)
	}
	return succeed(pid)
}

func (t *Table) VisitThreadCount(ctx context.Context, _ protocol.GetThreadCount) protocol.Response {
	if t.process == nil {
		return protocol.Fail("no process provider configured")
	}
	threads, err := t.process.ThreadCount(ctx)
	if err != nil {
		return protocol.Fail(err.Error())
	}
	if threads < 0 {
		return protocol.Failf("invalid thread count %d", threads)
	}
	return succeed(threads)
}

type validator interface {
	Validate() error
}

func succeed(result any) protocol.Response {
	if v, ok := result.(validator); ok {
		if err := v.Validate(); err != nil {
			return protocol.Fail(fmt.Sprintf("provider returned invalid result: %v", err))
		}
	}
	resp, err := protocol.Succeed(result)
	if err != nil {
		return protocol.Fail(err.Error())
	}
	return resp
}
