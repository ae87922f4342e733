// Package protocol defines the typed calls and responses exchanged between
// sysprobe requesters and responders, and their newline-delimited JSON codec.
package protocol

import "context"

// Tag is the wire discriminant of a Call.
type Tag string

const (
	TagGetMonitorParams Tag = "get_main_monitor_params"
	TagGetPixelColor    Tag = "get_main_monitor_pixel_color"
	TagGetProcessID     Tag = "get_process_id"
	TagGetThreadCount   Tag = "get_thread_count"
)

// Tags lists every tag the codec understands.
func Tags() []Tag {
	return []Tag{TagGetMonitorParams, TagGetPixelColor, TagGetProcessID, TagGetThreadCount}
}

// Call is one typed request. The set of implementations is closed; use
// Accept to dispatch over it.
type Call interface {
	Tag() Tag
	Accept(context.Context, Visitor) Response
	call()
}

// Visitor handles every Call variant. Adding a variant adds a method here,
// so every dispatcher has to be extended before the tree compiles again.
type Visitor interface {
	VisitMonitorParams(context.Context, GetMonitorParams) Response
	VisitPixelColor(context.Context, GetPixelColor) Response
	VisitProcessID(context.Context, GetProcessID) Response
	VisitThreadCount(context.Context, GetThreadCount) Response
}

// GetMonitorParams asks for the main monitor size. Result: MonitorParams.
type GetMonitorParams struct{}

// GetPixelColor asks for one pixel of the main monitor. Result: PixelColor.
type GetPixelColor struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// GetProcessID asks for the responder pid. Result: int.
type GetProcessID struct{}

// GetThreadCount asks for the responder thread count. Result: int.
type GetThreadCount struct{}

func (GetMonitorParams) Tag() Tag { return TagGetMonitorParams }
func (GetPixelColor) Tag() Tag    { return TagGetPixelColor }
func (GetProcessID) Tag() Tag     { return TagGetProcessID }
func (GetThreadCount) Tag() Tag   { return TagGetThreadCount }

func (c GetMonitorParams) Accept(ctx context.Context, v Visitor) Response {
	return v.VisitMonitorParams(ctx, c)
}

func (c GetPixelColor) Accept(ctx context.Context, v Visitor) Response {
	return v.VisitPixelColor(ctx, c)
}

func (c GetProcessID) Accept(ctx context.Context, v Visitor) Response {
	return v.VisitProcessID(ctx, c)
}

func (c GetThreadCount) Accept(ctx context.Context, v Visitor) Response {
	return v.VisitThreadCount(ctx, c)
}

func (GetMonitorParams) call() {}
func (GetPixelColor) call()    {}
func (GetProcessID) call()     {}
func (GetThreadCount) call()   {}
