// Command sandbox-run executes one program locally through the sandbox, either
// once against stdin or graded against a YAML case file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"codepulse/internal/common/storage"
	"codepulse/internal/judge/model"
	"codepulse/internal/judge/repository"
	"codepulse/internal/judge/sandbox"
	"codepulse/internal/judge/sandbox/engine"
	"codepulse/internal/judge/sandbox/language"
	"codepulse/internal/judge/sandbox/result"
	"codepulse/internal/judge/sandbox/runner"
	"codepulse/internal/judge/sandbox/spec"
	"codepulse/internal/judge/sandbox/template"
	"codepulse/internal/judge/sandbox/workspace"
	"codepulse/pkg/utils/logger"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type options struct {
	lang         string
	file         string
	archiveKey   string
	stdin        string
	stdinFile    string
	templateFile string
	casesFile    string
	scratchDir   string
	timeout      time.Duration
	minio        storage.MinIOConfig
}

type caseFileEntry struct {
	Input      string `yaml:"input"`
	Expected   string `yaml:"expected"`
	Visibility string `yaml:"visibility"`
}

func main() {
	var opts options
	flag.StringVar(&opts.lang, "lang", "", "Language id (py, cpp, java, js)")
	flag.StringVar(&opts.file, "file", "", "Source file, '-' reads stdin")
	flag.StringVar(&opts.archiveKey, "archive-key", "", "Load the source from the submission archive instead of -file")
	flag.StringVar(&opts.stdin, "stdin", "", "Program input")
	flag.StringVar(&opts.stdinFile, "stdin-file", "", "Read program input from a file")
	flag.StringVar(&opts.templateFile, "template", "", "Harness file with a {user_code} placeholder")
	flag.StringVar(&opts.casesFile, "cases", "", "YAML case list; grades the program instead of running it once")
	flag.StringVar(&opts.scratchDir, "scratch", os.TempDir(), "Scratch directory for materialized sources")
	flag.DurationVar(&opts.timeout, "timeout", 0, "Wall time per execution (default 15s)")
	flag.StringVar(&opts.minio.Endpoint, "minio-endpoint", os.Getenv("JUDGE_MINIO_ENDPOINT"), "MinIO endpoint for -archive-key")
	flag.StringVar(&opts.minio.AccessKey, "minio-access-key", os.Getenv("JUDGE_MINIO_ACCESS_KEY"), "MinIO access key")
	flag.StringVar(&opts.minio.SecretKey, "minio-secret-key", os.Getenv("JUDGE_MINIO_SECRET_KEY"), "MinIO secret key")
	flag.StringVar(&opts.minio.Bucket, "minio-bucket", "judge-sources", "Bucket holding archived sources")
	flag.BoolVar(&opts.minio.UseSSL, "minio-ssl", false, "Use TLS for MinIO")
	flag.Parse()

	if err := logger.Init(logger.Config{Level: "warn", Format: "console", OutputPath: "stderr", ErrorPath: "stderr"}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	lang, err := language.Parse(opts.lang)
	if err != nil {
		return fmt.Errorf("unsupported language %q", opts.lang)
	}
	code, err := loadSource(ctx, opts)
	if err != nil {
		return err
	}
	tpl, err := readOptional(opts.templateFile)
	if err != nil {
		return err
	}

	eng, err := engine.NewEngine(engine.Config{})
	if err != nil {
		return err
	}
	materializer, err := workspace.NewMaterializer(opts.scratchDir)
	if err != nil {
		return err
	}
	limits := spec.ResourceLimit{WallTime: opts.timeout}.Normalize()
	worker := sandbox.NewWorker(
		runner.NewRunnerWithObserver(eng, language.Default(), limits, nil),
		materializer,
		nil,
	)

	if opts.casesFile != "" {
		cases, err := loadCases(opts.casesFile)
		if err != nil {
			return err
		}
		verdict, err := worker.RunGraded(ctx, sandbox.GradedRequest{
			Language: lang,
			Code:     code,
			Template: tpl,
			Cases:    cases,
		})
		if err != nil {
			return err
		}
		return writeJSON(out, map[string]interface{}{
			"status":        verdict.Status,
			"testResults":   verdict.TestResults,
			"executionTime": verdict.TotalTimeMs,
			"results":       model.ToCaseResults(verdict.Cases, false),
		})
	}

	stdin := opts.stdin
	if opts.stdinFile != "" {
		if stdin, err = readOptional(opts.stdinFile); err != nil {
			return err
		}
	}
	// Single runs take raw code, so the harness is applied here.
	code = template.Compose(code, tpl)
	verdict, err := worker.RunSingle(ctx, sandbox.SingleRequest{
		SubmissionID: "local",
		Language:     lang,
		Code:         code,
		Stdin:        stdin,
	})
	if err != nil {
		return err
	}
	return writeJSON(out, map[string]interface{}{
		"status":     verdict.Status,
		"output":     verdict.Output,
		"durationMs": verdict.DurationMs,
	})
}

func loadSource(ctx context.Context, opts options) (string, error) {
	switch {
	case opts.archiveKey != "":
		objStorage, err := storage.NewMinIOStorage(opts.minio)
		if err != nil {
			return "", fmt.Errorf("init minio failed: %w", err)
		}
		archive := repository.NewObjectSourceArchive(objStorage, opts.minio.Bucket)
		return archive.Load(ctx, opts.archiveKey)
	case opts.file == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read source failed: %w", err)
		}
		return string(data), nil
	case opts.file != "":
		return readOptional(opts.file)
	default:
		return "", errors.New("one of -file or -archive-key is required")
	}
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s failed: %w", path, err)
	}
	return string(data), nil
}

func loadCases(path string) ([]result.TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cases failed: %w", err)
	}
	var entries []caseFileEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse cases failed: %w", err)
	}
	cases := make([]result.TestCase, 0, len(entries))
	for i, entry := range entries {
		visibility := result.VisibilityHidden
		if strings.EqualFold(entry.Visibility, string(result.VisibilitySample)) {
			visibility = result.VisibilitySample
		}
		cases = append(cases, result.TestCase{
			ID:         int64(i + 1),
			Input:      entry.Input,
			Expected:   entry.Expected,
			Visibility: visibility,
		})
	}
	return cases, nil
}

func writeJSON(out io.Writer, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
