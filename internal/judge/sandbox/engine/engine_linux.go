//go:build linux

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"codepulse/internal/judge/sandbox/result"
	"codepulse/internal/judge/sandbox/spec"
	"codepulse/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

const waitDelay = 2 * time.Second

type dockerEngine struct {
	cfg     Config
	limiter *rate.Limiter
}

// NewEngine creates a docker-backed sandbox engine.
func NewEngine(cfg Config) (Engine, error) {
	cfg = cfg.withDefaults()
	if _, err := exec.LookPath(cfg.DockerBinary); err != nil {
		return nil, fmt.Errorf("docker binary %q not found: %w", cfg.DockerBinary, err)
	}
	return &dockerEngine{cfg: cfg, limiter: cfg.limiter()}, nil
}

func (e *dockerEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	if err := validateRunSpec(runSpec); err != nil {
		return result.RunResult{}, err
	}
	if err := e.limiter.Wait(ctx); err != nil {
		// Wait also fails early when the next token lands past the deadline.
		cause := ctx.Err()
		if cause == nil {
			cause = context.DeadlineExceeded
		}
		return result.RunResult{}, fmt.Errorf("wait launch slot: %w: %v", cause, err)
	}

	limits := runSpec.Limits.Normalize()
	name := containerPrefix + uuid.NewString()
	budget := newOutputBudget(limits.OutputBytes)
	stdout := &boundedWriter{budget: budget}
	stderr := &boundedWriter{budget: budget}

	cmd := exec.Command(e.cfg.DockerBinary, buildArgs(runSpec, limits, name)...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	// exec copies stdin in full and then closes the pipe, so programs
	// reading to end of input terminate.
	cmd.Stdin = strings.NewReader(runSpec.Stdin)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return result.RunResult{}, fmt.Errorf("start docker: %w", err)
	}
	pid := cmd.Process.Pid

	var timedOut, exceeded, cancelled atomic.Bool
	done := make(chan struct{})
	go func() {
		timer := time.NewTimer(limits.WallTime)
		defer timer.Stop()
		switch waitStop(ctx, done, timer.C, budget.Exceeded()) {
		case stopNone:
			return
		case stopTimeout:
			timedOut.Store(true)
		case stopOutput:
			exceeded.Store(true)
		case stopCancelled:
			cancelled.Store(true)
		}
		killProcessGroup(pid)
		e.reap(ctx, name)
	}()

	waitErr := cmd.Wait()
	close(done)

	runResult := result.RunResult{
		ExitCode:       exitCodeFromErr(waitErr, cmd.ProcessState),
		WallTimeMs:     time.Since(start).Milliseconds(),
		Stdout:         stdout.String(),
		Stderr:         stderr.String(),
		TimedOut:       timedOut.Load(),
		OutputExceeded: exceeded.Load(),
	}
	if runResult.TimedOut {
		runResult.ExitCode = -1
	}
	if cancelled.Load() {
		return runResult, fmt.Errorf("run cancelled: %w", ctx.Err())
	}
	if waitErr != nil && errors.Is(waitErr, exec.ErrWaitDelay) {
		logger.Warn(ctx, "docker output pipes outlived the process", zap.String("container", name))
	}
	return runResult, nil
}

type stopReason int

const (
	stopNone stopReason = iota
	stopTimeout
	stopOutput
	stopCancelled
)

// waitStop blocks until the process exits or something forces it to stop.
// A cancellation racing a finished process leaves the result alone.
func waitStop(ctx context.Context, done <-chan struct{}, expired <-chan time.Time, exceeded <-chan struct{}) stopReason {
	select {
	case <-done:
		return stopNone
	case <-expired:
		return stopTimeout
	case <-exceeded:
		return stopOutput
	case <-ctx.Done():
	}
	select {
	case <-done:
		return stopNone
	default:
		return stopCancelled
	}
}

func (e *dockerEngine) reap(ctx context.Context, name string) {
	reapCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reapTimeout)
	defer cancel()
	if err := e.cfg.Reaper.RemoveContainer(reapCtx, name); err != nil {
		logger.Warn(ctx, "remove container failed", zap.String("container", name), zap.Error(err))
	}
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = unix.Kill(-pid, unix.SIGKILL)
}

func exitCodeFromErr(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
