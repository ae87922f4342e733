// Package procinfo reports facts about the running responder process.
package procinfo

import (
	"context"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v4/process"
)

// Self answers process queries about the current process.
type Self struct {
	pid int
}

// New binds to the current process.
func New() Self {
	return Self{pid: os.Getpid()}
}

func (s Self) ProcessID(context.Context) (int, error) {
	return s.pid, nil
}

// ThreadCount returns the number of OS threads the process currently owns.
func (s Self) ThreadCount(ctx context.Context) (int, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(s.pid))
	if err != nil {
		return 0, fmt.Errorf("open process %d: %w", s.pid, err)
	}
	threads, err := proc.NumThreadsWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("count threads of %d: %w", s.pid, err)
	}
	return int(threads), nil
}
