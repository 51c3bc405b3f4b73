// Package workspace writes sources into per-unit scratch directories and removes them afterwards.
package workspace

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"codepulse/internal/judge/sandbox/language"
	appErr "codepulse/pkg/errors"
	"codepulse/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Unit is one materialized source file inside its own directory.
// Dir is what the sandbox mounts as its working directory.
type Unit struct {
	Language language.Language
	Source   string
	Dir      string
	Path     string
	FileName string
}

var (
	commentPattern = regexp.MustCompile(`/\*[\s\S]*?\*/|//.*`)
	typePatterns   = []*regexp.Regexp{
		regexp.MustCompile(`public\s+class\s+(\w+)`),
		regexp.MustCompile(`public\s+interface\s+(\w+)`),
		regexp.MustCompile(`public\s+enum\s+(\w+)`),
		regexp.MustCompile(`class\s+(\w+)`),
		regexp.MustCompile(`interface\s+(\w+)`),
		regexp.MustCompile(`enum\s+(\w+)`),
	}
)

// Materializer owns the scratch directory.
type Materializer struct {
	root string
}

// NewMaterializer returns a materializer rooted at scratchDir. The directory is
// created on first use. Relative roots are resolved against the working
// directory because docker treats a relative mount source as a volume name.
func NewMaterializer(scratchDir string) (*Materializer, error) {
	root, err := filepath.Abs(scratchDir)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ScratchWriteFailed, "resolve scratch directory failed")
	}
	return &Materializer{root: root}, nil
}

// Root returns the scratch directory.
func (m *Materializer) Root() string {
	return m.root
}

// Materialize writes source into a fresh unit directory and returns the unit.
func (m *Materializer) Materialize(ctx context.Context, lang language.Language, source string) (Unit, error) {
	if !lang.Valid() {
		return Unit{}, appErr.New(appErr.LanguageNotSupported)
	}
	if err := ctx.Err(); err != nil {
		return Unit{}, appErr.Wrap(err, appErr.Timeout)
	}

	dir := filepath.Join(m.root, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Unit{}, appErr.Wrapf(err, appErr.ScratchWriteFailed, "create unit directory failed")
	}

	spec := lang.Spec()
	fileName := uuid.NewString() + spec.Extension
	if spec.NamedByType {
		if name := TypeName(source); name != "" {
			fileName = name + spec.Extension
		}
	}

	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return Unit{}, appErr.Wrapf(err, appErr.ScratchWriteFailed, "write source failed")
	}
	return Unit{
		Language: lang,
		Source:   source,
		Dir:      dir,
		Path:     path,
		FileName: fileName,
	}, nil
}

// TypeName returns the first declared type name in Java source with comments
// removed, or "" when nothing matches.
func TypeName(source string) string {
	stripped := commentPattern.ReplaceAllString(source, "")
	for _, pattern := range typePatterns {
		if match := pattern.FindStringSubmatch(stripped); match != nil {
			return match[1]
		}
	}
	return ""
}

// Release removes the unit directory. Missing directories and removal
// failures are logged, never returned.
func (m *Materializer) Release(ctx context.Context, unit Unit) {
	if unit.Dir == "" {
		return
	}
	if err := os.RemoveAll(unit.Dir); err != nil {
		logger.Warn(ctx, "release unit failed", zap.String("dir", unit.Dir), zap.Error(err))
	}
}

// Sweep removes unit directories last modified before now-olderThan and
// returns how many were removed.
func (m *Materializer) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, appErr.Wrapf(err, appErr.ScratchWriteFailed, "read scratch directory failed")
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		dir := filepath.Join(m.root, entry.Name())
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn(ctx, "sweep unit failed", zap.String("dir", dir), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
