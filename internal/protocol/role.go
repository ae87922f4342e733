package protocol

import "fmt"

// Role names the responder that serves a group of calls.
type Role string

const (
	RoleMonitor Role = "monitor"
	RoleProc    Role = "proc"
)

// Roles lists every responder role.
func Roles() []Role {
	return []Role{RoleMonitor, RoleProc}
}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleMonitor, RoleProc:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q (want monitor or proc)", s)
	}
}

// Role returns the responder role that serves tag, or "" for unknown tags.
func (t Tag) Role() Role {
	switch t {
	case TagGetMonitorParams, TagGetPixelColor:
		return RoleMonitor
	case TagGetProcessID, TagGetThreadCount:
		return RoleProc
	default:
		return ""
	}
}
