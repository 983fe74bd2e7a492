package process

import (
	"fmt"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Stats is a resource usage snapshot of a running process.
type Stats struct {
	CPUPercent float64
	MemoryRSS  uint64
	NumThreads int32
	Children   int
}

// Stats samples CPU, memory and child count for the process.
// Child processes are not included in the CPU and memory figures.
func (h *Handle) Stats() (Stats, error) {
	if !h.Alive() {
		return Stats{}, fmt.Errorf("process %d has exited", h.pid)
	}

	proc, err := gopsproc.NewProcess(int32(h.pid))
	if err != nil {
		return Stats{}, fmt.Errorf("failed to create process handle: %w", err)
	}

	var s Stats
	if cpu, err := proc.CPUPercent(); err == nil {
		s.CPUPercent = cpu
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get memory info: %w", err)
	}
	s.MemoryRSS = memInfo.RSS

	if n, err := proc.NumThreads(); err == nil {
		s.NumThreads = n
	}
	if children, err := proc.Children(); err == nil {
		s.Children = len(children)
	}
	return s, nil
}
