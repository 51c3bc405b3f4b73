// Package spec defines the execution specification and resource limits.
package spec

import "time"

// ResourceLimit describes the fixed envelope enforced by the sandbox.
type ResourceLimit struct {
	WallTime    time.Duration
	MemoryMB    int64
	CPUs        float64
	PIDs        int64
	OutputBytes int64
}

// DefaultLimits is the envelope every execution gets unless configuration overrides it.
func DefaultLimits() ResourceLimit {
	return ResourceLimit{
		WallTime:    15 * time.Second,
		MemoryMB:    256,
		CPUs:        0.5,
		PIDs:        64,
		OutputBytes: 10 << 20,
	}
}

// Normalize fills zero fields from DefaultLimits.
func (l ResourceLimit) Normalize() ResourceLimit {
	def := DefaultLimits()
	if l.WallTime <= 0 {
		l.WallTime = def.WallTime
	}
	if l.MemoryMB <= 0 {
		l.MemoryMB = def.MemoryMB
	}
	if l.CPUs <= 0 {
		l.CPUs = def.CPUs
	}
	if l.PIDs <= 0 {
		l.PIDs = def.PIDs
	}
	if l.OutputBytes <= 0 {
		l.OutputBytes = def.OutputBytes
	}
	return l
}

// RunSpec is the unified execution specification for one program run.
type RunSpec struct {
	// Image is the toolchain container image.
	Image string
	// HostDir is bind-mounted read-write at WorkDir inside the sandbox.
	HostDir string
	WorkDir string
	Cmd     []string
	Stdin   string
	Limits  ResourceLimit
	// Label tags the run in logs and metrics.
	Label string
}
