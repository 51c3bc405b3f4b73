package engine

import (
	"reflect"
	"testing"

	"codepulse/internal/judge/sandbox/spec"

	"golang.org/x/time/rate"
)

func TestBuildArgs(t *testing.T) {
	runSpec := spec.RunSpec{
		Image:   "python:3.9-alpine",
		HostDir: "/var/scratch/u1",
		WorkDir: "/app",
		Cmd:     []string{"python", "main.py"},
	}
	got := buildArgs(runSpec, spec.DefaultLimits(), "codepulse-x")
	want := []string{
		"run", "--rm", "-i",
		"--name", "codepulse-x",
		"--network", "none",
		"--memory=256m",
		"--cpus=0.5",
		"--pids-limit=64",
		"-v", "/var/scratch/u1:/app",
		"-w", "/app",
		"python:3.9-alpine",
		"python", "main.py",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestValidateRunSpec(t *testing.T) {
	valid := spec.RunSpec{Image: "img", HostDir: "/h", WorkDir: "/app", Cmd: []string{"true"}}
	if err := validateRunSpec(valid); err != nil {
		t.Fatalf("expected valid spec, got %v", err)
	}
	broken := valid
	broken.Cmd = nil
	if err := validateRunSpec(broken); err == nil {
		t.Fatalf("expected error for empty command")
	}
	broken = valid
	broken.Image = ""
	if err := validateRunSpec(broken); err == nil {
		t.Fatalf("expected error for empty image")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.DockerBinary != "docker" || cfg.Reaper == nil {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.limiter().Limit() != rate.Inf {
		t.Fatalf("expected unlimited launches by default")
	}
	limited := Config{LaunchRate: 5, LaunchBurst: 2}.withDefaults().limiter()
	if limited.Limit() != 5 || limited.Burst() != 2 {
		t.Fatalf("unexpected limiter %v/%d", limited.Limit(), limited.Burst())
	}
}

func TestOutputBudgetSharedAcrossWriters(t *testing.T) {
	budget := newOutputBudget(8)
	out := &boundedWriter{budget: budget}
	errw := &boundedWriter{budget: budget}

	if n, err := out.Write([]byte("hello")); n != 5 || err != nil {
		t.Fatalf("unexpected write result %d %v", n, err)
	}
	select {
	case <-budget.Exceeded():
		t.Fatalf("budget should not be exceeded yet")
	default:
	}
	if n, _ := errw.Write([]byte("world")); n != 5 {
		t.Fatalf("writes must report full length, got %d", n)
	}
	select {
	case <-budget.Exceeded():
	default:
		t.Fatalf("expected budget to be exceeded")
	}
	if out.String() != "hello" || errw.String() != "wor" {
		t.Fatalf("unexpected kept output %q %q", out.String(), errw.String())
	}
	_, _ = out.Write([]byte("more"))
	if out.String() != "hello" {
		t.Fatalf("expected nothing kept after overflow, got %q", out.String())
	}
}
