// Package language holds the fixed registry of supported toolchains.
package language

import (
	"path/filepath"
	"strings"

	appErr "codepulse/pkg/errors"

	"github.com/google/shlex"
)

// Language is the closed set of languages the sandbox can run.
type Language int

const (
	Python Language = iota + 1
	CPP
	Java
	JavaScript
)

// Spec describes how one language is materialized and invoked.
type Spec struct {
	// ID is the canonical lowercase identifier, e.g. "py".
	ID string
	// StorageID is the identifier persisted with submissions, e.g. "PYTHON".
	StorageID string
	Image     string
	Extension string
	// NamedByType requires the file base name to equal the public type name.
	NamedByType bool
	// RunTemplate expands {file} and {bin} before being split into argv.
	RunTemplate string
}

var registry = map[Language]Spec{
	Python: {
		ID:          "py",
		StorageID:   "PYTHON",
		Image:       "python:3.9-alpine",
		Extension:   ".py",
		RunTemplate: "python {file}",
	},
	CPP: {
		ID:          "cpp",
		StorageID:   "CPP",
		Image:       "gcc:latest",
		Extension:   ".cpp",
		RunTemplate: `bash -c "g++ {file} -o {bin} && ./{bin}"`,
	},
	Java: {
		ID:          "java",
		StorageID:   "JAVA",
		Image:       "eclipse-temurin:17-jdk",
		Extension:   ".java",
		NamedByType: true,
		RunTemplate: `bash -c "javac {file} && java {bin}"`,
	},
	JavaScript: {
		ID:          "js",
		StorageID:   "JS",
		Image:       "node:20-alpine",
		Extension:   ".js",
		RunTemplate: "node {file}",
	},
}

var aliases = map[string]Language{
	"py":         Python,
	"python":     Python,
	"cpp":        CPP,
	"c++":        CPP,
	"java":       Java,
	"js":         JavaScript,
	"javascript": JavaScript,
	"node":       JavaScript,
}

// All lists every supported language in a stable order.
func All() []Language {
	return []Language{Python, CPP, Java, JavaScript}
}

// Parse maps a request or storage identifier onto a Language, ignoring case.
func Parse(id string) (Language, error) {
	if lang, ok := aliases[strings.ToLower(strings.TrimSpace(id))]; ok {
		return lang, nil
	}
	return 0, appErr.New(appErr.LanguageNotSupported).WithDetail("language", id)
}

// Spec returns the static registry entry for l.
func (l Language) Spec() Spec {
	return registry[l]
}

func (l Language) String() string {
	switch l {
	case Python, CPP, Java, JavaScript:
		return registry[l].ID
	default:
		return "unknown"
	}
}

// Valid reports whether l is one of the registered variants.
func (l Language) Valid() bool {
	_, ok := registry[l]
	return ok
}

// Command expands the run template for fileName and splits it into argv.
func (s Spec) Command(fileName string) ([]string, error) {
	bin := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	line := strings.NewReplacer("{file}", fileName, "{bin}", bin).Replace(s.RunTemplate)
	argv, err := shlex.Split(line)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxSetupFailed, "invalid run command for %s", s.ID)
	}
	if len(argv) == 0 {
		return nil, appErr.Newf(appErr.SandboxSetupFailed, "empty run command for %s", s.ID)
	}
	return argv, nil
}

// Registry is a read-only view of the table with image overrides applied.
type Registry struct {
	images map[Language]string
}

// Default returns the registry with the built-in images.
func Default() *Registry {
	return &Registry{}
}

// WithImages returns a new view whose images are replaced by overrides,
// keyed by any identifier Parse accepts.
func (r *Registry) WithImages(overrides map[string]string) (*Registry, error) {
	images := make(map[Language]string, len(overrides))
	if r != nil {
		for lang, image := range r.images {
			images[lang] = image
		}
	}
	for id, image := range overrides {
		lang, err := Parse(id)
		if err != nil {
			return nil, err
		}
		if image = strings.TrimSpace(image); image != "" {
			images[lang] = image
		}
	}
	return &Registry{images: images}, nil
}

// Lookup returns the entry for lang with any image override applied.
func (r *Registry) Lookup(lang Language) (Spec, error) {
	spec, ok := registry[lang]
	if !ok {
		return Spec{}, appErr.New(appErr.LanguageNotSupported)
	}
	if r != nil {
		if image, ok := r.images[lang]; ok {
			spec.Image = image
		}
	}
	return spec, nil
}

// Images lists the distinct images the registry resolves to.
func (r *Registry) Images() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(registry))
	for _, lang := range All() {
		spec, _ := r.Lookup(lang)
		if _, ok := seen[spec.Image]; ok {
			continue
		}
		seen[spec.Image] = struct{}{}
		out = append(out, spec.Image)
	}
	return out
}
