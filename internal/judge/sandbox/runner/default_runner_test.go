package runner

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"codepulse/internal/judge/sandbox/language"
	"codepulse/internal/judge/sandbox/result"
	"codepulse/internal/judge/sandbox/spec"
	"codepulse/internal/judge/sandbox/workspace"
)

type fakeEngine struct {
	res  result.RunResult
	err  error
	last spec.RunSpec
}

func (f *fakeEngine) Run(_ context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	f.last = runSpec
	return f.res, f.err
}

type recordingMetrics struct {
	terminals []string
}

func (m *recordingMetrics) ObserveRun(_ context.Context, _ string, terminal string, _ int64, _ int64) {
	m.terminals = append(m.terminals, terminal)
}

func (m *recordingMetrics) ObserveBatch(context.Context, string, string, int, int64) {}

func javaUnit() workspace.Unit {
	return workspace.Unit{Language: language.Java, Dir: "/scratch/u1", Path: "/scratch/u1/Main.java", FileName: "Main.java"}
}

func TestExecuteBuildsRunSpec(t *testing.T) {
	eng := &fakeEngine{res: result.RunResult{Stdout: "  42\n", WallTimeMs: 30}}
	registry, _ := language.Default().WithImages(map[string]string{"java": "mirror/temurin:17"})
	r := NewRunner(eng, registry)

	out := r.Execute(context.Background(), javaUnit(), "1 2")
	if out.Terminal != result.TerminalCompleted || out.Stdout != "42" || out.DurationMs != 30 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if eng.last.Image != "mirror/temurin:17" || eng.last.HostDir != "/scratch/u1" || eng.last.WorkDir != "/app" {
		t.Fatalf("unexpected run spec %+v", eng.last)
	}
	if !reflect.DeepEqual(eng.last.Cmd, []string{"bash", "-c", "javac Main.java && java Main"}) {
		t.Fatalf("unexpected command %q", eng.last.Cmd)
	}
	if eng.last.Stdin != "1 2" || eng.last.Limits != spec.DefaultLimits() {
		t.Fatalf("unexpected stdin or limits %+v", eng.last)
	}
}

func TestExecuteClassifiesOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		res      result.RunResult
		err      error
		terminal result.Terminal
		message  string
	}{
		{
			name:     "timeout",
			res:      result.RunResult{TimedOut: true, ExitCode: -1, Stdout: "partial"},
			terminal: result.TerminalTimeout,
			message:  "Execution Timeout",
		},
		{
			name:     "output limit",
			res:      result.RunResult{OutputExceeded: true, ExitCode: -1},
			terminal: result.TerminalError,
			message:  "Runtime Error: output limit exceeded",
		},
		{
			name:     "compile error",
			res:      result.RunResult{ExitCode: 1, Stderr: "/app/Main.java:3: error: ';' expected\n", Stdout: "ignored"},
			terminal: result.TerminalError,
			message:  "Runtime Error: Main.java:3: error: ';' expected",
		},
		{
			name:     "silent crash",
			res:      result.RunResult{ExitCode: 139},
			terminal: result.TerminalError,
			message:  "Runtime Error: process exited with code 139",
		},
		{
			name:     "spawn failure",
			err:      errors.New("start docker: exec: not found"),
			terminal: result.TerminalError,
			message:  "Runtime Error: start docker: exec: not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &recordingMetrics{}
			r := NewRunnerWithObserver(&fakeEngine{res: tt.res, err: tt.err}, nil, spec.ResourceLimit{}, metrics)
			out := r.Execute(context.Background(), javaUnit(), "")
			if out.Terminal != tt.terminal || out.RawError != tt.message {
				t.Fatalf("expected %v %q, got %v %q", tt.terminal, tt.message, out.Terminal, out.RawError)
			}
			if out.Stdout != "" {
				t.Fatalf("expected no stdout on failure, got %q", out.Stdout)
			}
			if len(metrics.terminals) != 1 || metrics.terminals[0] != tt.terminal.String() {
				t.Fatalf("expected one metric for %v, got %v", tt.terminal, metrics.terminals)
			}
		})
	}
}

func TestExecuteDiscardsStderrOnSuccess(t *testing.T) {
	r := NewRunner(&fakeEngine{res: result.RunResult{Stdout: "ok\n", Stderr: "warning: deprecated"}}, nil)
	out := r.Execute(context.Background(), javaUnit(), "")
	if out.Terminal != result.TerminalCompleted || out.Stdout != "ok" || out.RawError != "" {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestExecuteUnknownLanguage(t *testing.T) {
	eng := &fakeEngine{}
	r := NewRunner(eng, nil)
	out := r.Execute(context.Background(), workspace.Unit{Language: language.Language(42), FileName: "x"}, "")
	if out.Terminal != result.TerminalError {
		t.Fatalf("expected error outcome, got %+v", out)
	}
	if len(eng.last.Cmd) != 0 {
		t.Fatalf("expected engine not to be called")
	}
}

func TestExecuteMarksContextFailuresAborted(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		aborted bool
	}{
		{name: "deadline", err: fmt.Errorf("run cancelled: %w", context.DeadlineExceeded), aborted: true},
		{name: "launch slot", err: fmt.Errorf("wait launch slot: %w: rate: Wait(n=1) would exceed context deadline", context.DeadlineExceeded), aborted: true},
		{name: "spawn failure", err: errors.New("start docker: exec: not found"), aborted: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunner(&fakeEngine{err: tt.err}, nil)
			out := r.Execute(context.Background(), javaUnit(), "")
			if out.Aborted != tt.aborted {
				t.Fatalf("expected aborted=%v, got %+v", tt.aborted, out)
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRunner(&fakeEngine{err: errors.New("docker: signal: killed")}, nil)
	if out := r.Execute(ctx, javaUnit(), ""); !out.Aborted {
		t.Fatalf("expected cancelled context to abort, got %+v", out)
	}
}
