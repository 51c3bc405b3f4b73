package engine

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"codepulse/internal/judge/sandbox/spec"

	"golang.org/x/time/rate"
)

const (
	defaultDockerBinary = "docker"
	containerPrefix     = "codepulse-"
	reapTimeout         = 10 * time.Second
)

// Reaper force-removes a container left behind by a killed docker CLI.
type Reaper interface {
	RemoveContainer(ctx context.Context, name string) error
}

// Config controls sandbox engine behavior.
type Config struct {
	// DockerBinary is the docker CLI used to launch containers.
	DockerBinary string
	// LaunchRate limits container launches per second; zero disables the limit.
	LaunchRate  float64
	LaunchBurst int
	// Reaper defaults to running "docker rm -f" through DockerBinary.
	Reaper Reaper
}

func (c Config) withDefaults() Config {
	if c.DockerBinary == "" {
		c.DockerBinary = defaultDockerBinary
	}
	if c.LaunchBurst <= 0 {
		c.LaunchBurst = 1
	}
	if c.Reaper == nil {
		c.Reaper = cliReaper{binary: c.DockerBinary}
	}
	return c
}

func (c Config) limiter() *rate.Limiter {
	if c.LaunchRate <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(c.LaunchRate), c.LaunchBurst)
}

type cliReaper struct {
	binary string
}

func (r cliReaper) RemoveContainer(ctx context.Context, name string) error {
	out, err := exec.CommandContext(ctx, r.binary, "rm", "-f", name).CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker rm -f %s: %w: %s", name, err, out)
	}
	return nil
}

func validateRunSpec(runSpec spec.RunSpec) error {
	if runSpec.Image == "" {
		return fmt.Errorf("image is required")
	}
	if runSpec.HostDir == "" {
		return fmt.Errorf("host dir is required")
	}
	if runSpec.WorkDir == "" {
		return fmt.Errorf("work dir is required")
	}
	if len(runSpec.Cmd) == 0 {
		return fmt.Errorf("command is required")
	}
	return nil
}

// buildArgs returns the docker CLI arguments for one isolated run.
func buildArgs(runSpec spec.RunSpec, limits spec.ResourceLimit, name string) []string {
	args := []string{
		"run", "--rm", "-i",
		"--name", name,
		"--network", "none",
		"--memory=" + strconv.FormatInt(limits.MemoryMB, 10) + "m",
		"--cpus=" + strconv.FormatFloat(limits.CPUs, 'f', -1, 64),
		"--pids-limit=" + strconv.FormatInt(limits.PIDs, 10),
		"-v", runSpec.HostDir + ":" + runSpec.WorkDir,
		"-w", runSpec.WorkDir,
		runSpec.Image,
	}
	return append(args, runSpec.Cmd...)
}
