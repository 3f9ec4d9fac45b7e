// Package capture builds the command line of the external capture binary.
package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Defaults for Spec fields left empty.
const (
	DefaultBinary         = "streamlink"
	DefaultURLTemplate    = "{target}"
	DefaultQuality        = "best"
	DefaultOutputTemplate = "{target}-{date}-{time}.{ext}"
	DefaultExtension      = "flv"

	dateLayout = "020106" // ddMMyy
	timeLayout = "150405" // HHmmss
)

var placeholderPattern = regexp.MustCompile(`\{[^{}]*\}`)

var knownPlaceholders = map[string]bool{
	"{target}": true,
	"{date}":   true,
	"{time}":   true,
	"{ext}":    true,
	"{seq}":    true,
}

// Spec describes how a capture process is invoked.
type Spec struct {
	Binary         string
	ExtraArgs      []string
	URLTemplate    string
	Quality        string
	OutputDir      string
	OutputTemplate string
	Extension      string
}

// WithDefaults returns a copy of s with empty fields set to their defaults.
func (s Spec) WithDefaults() Spec {
	if s.Binary == "" {
		s.Binary = DefaultBinary
	}
	if s.URLTemplate == "" {
		s.URLTemplate = DefaultURLTemplate
	}
	if s.Quality == "" {
		s.Quality = DefaultQuality
	}
	if s.OutputTemplate == "" {
		s.OutputTemplate = DefaultOutputTemplate
	}
	if s.Extension == "" {
		s.Extension = DefaultExtension
	}
	return s
}

// Validate checks the templates of a defaulted spec.
func (s Spec) Validate() error {
	var errs []error
	if !strings.Contains(s.URLTemplate, "{target}") {
		errs = append(errs, fmt.Errorf("url template %q must contain {target}", s.URLTemplate))
	}
	if !strings.Contains(s.OutputTemplate, "{target}") {
		errs = append(errs, fmt.Errorf("output template %q must contain {target}", s.OutputTemplate))
	}
	for _, tmpl := range []string{s.URLTemplate, s.OutputTemplate} {
		for _, p := range placeholderPattern.FindAllString(tmpl, -1) {
			if !knownPlaceholders[p] {
				errs = append(errs, fmt.Errorf("unknown placeholder %s in %q", p, tmpl))
			}
		}
	}
	if strings.ContainsRune(s.Extension, filepath.Separator) {
		errs = append(errs, fmt.Errorf("extension %q must not contain a path separator", s.Extension))
	}
	return errors.Join(errs...)
}

// Command is one ready-to-spawn invocation.
type Command struct {
	Name       string
	Args       []string
	SourceURL  string
	OutputPath string
}

// String renders the command for logs.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Builder renders Commands for targets. Output paths never repeat the
// previous path of the same target and never name an existing file; a
// "-N" suffix is inserted before the extension when needed.
// It is safe for concurrent use.
type Builder struct {
	spec   Spec
	exists func(path string) bool

	mu   sync.Mutex
	last map[string]string
}

// NewBuilder validates spec and returns a builder for it.
func NewBuilder(spec Spec) (*Builder, error) {
	spec = spec.WithDefaults()
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid capture spec: %w", err)
	}
	return &Builder{
		spec:   spec,
		exists: fileExists,
		last:   make(map[string]string),
	}, nil
}

// Spec returns the defaulted spec in use.
func (b *Builder) Spec() Spec {
	return b.spec
}

// Build renders the command for target launched at the given time.
// seq is the per-target launch sequence number exposed as {seq}.
func (b *Builder) Build(target string, at time.Time, seq uint64) Command {
	r := strings.NewReplacer(
		"{target}", target,
		"{date}", at.Format(dateLayout),
		"{time}", at.Format(timeLayout),
		"{ext}", b.spec.Extension,
		"{seq}", strconv.FormatUint(seq, 10),
	)

	sourceURL := r.Replace(b.spec.URLTemplate)
	outputPath := b.uniquePath(target, filepath.Join(b.spec.OutputDir, r.Replace(b.spec.OutputTemplate)))

	args := make([]string, 0, len(b.spec.ExtraArgs)+4)
	args = append(args, b.spec.ExtraArgs...)
	args = append(args, sourceURL, b.spec.Quality, "-o", outputPath)

	return Command{
		Name:       b.spec.Binary,
		Args:       args,
		SourceURL:  sourceURL,
		OutputPath: outputPath,
	}
}

func (b *Builder) uniquePath(target, path string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	candidate := path
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 1; candidate == b.last[target] || b.exists(candidate); n++ {
		candidate = base + "-" + strconv.Itoa(n) + ext
	}
	b.last[target] = candidate
	return candidate
}

// Forget drops the remembered output path of target.
func (b *Builder) Forget(target string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.last, target)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
