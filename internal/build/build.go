// Package build compiles a project source tree ahead of time.
//
// Emit mode mirrors the tree into an output directory, replacing every
// extension with ".js" and writing the transformed CommonJS source. Warm
// mode loads every file through the loader so its cache holds the compiled
// artifacts before the first call.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/guestjs/internal/errs"
	"github.com/GriffinCanCode/guestjs/internal/loader"
	"github.com/GriffinCanCode/guestjs/internal/shared/id"
	"github.com/GriffinCanCode/guestjs/internal/specifier"
)

// Mode selects what a build produces.
type Mode string

const (
	ModeEmit Mode = "emit"
	ModeWarm Mode = "warm"
)

// Defaults applied to empty Options fields.
const (
	DefaultSource = "src"
	DefaultOut    = "dist"
)

// Options describes one build. Source and Out are relative to the project
// root; Include and Exclude are doublestar patterns relative to Source.
type Options struct {
	Mode    Mode
	Source  string
	Out     string
	Include []string
	Exclude []string
}

// File is the outcome for one source file.
type File struct {
	Path      string `json:"path"`
	Output    string `json:"output,omitempty"`
	Bytes     int    `json:"bytes"`
	Skipped   bool   `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// Report summarizes a build.
type Report struct {
	ID       id.BuildID    `json:"id"`
	Mode     Mode          `json:"mode"`
	Files    []File        `json:"files"`
	Compiled int           `json:"compiled"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Err returns an error when any file failed.
func (r *Report) Err() error {
	if r.Failed == 0 {
		return nil
	}
	return fmt.Errorf("build %s: %d of %d files failed", r.ID, r.Failed, len(r.Files))
}

// Builder runs builds for one project root.
type Builder struct {
	root   string
	loader *loader.Loader
	logger *zap.Logger
}

// New creates a builder. l must read from the same root.
func New(root string, l *loader.Loader, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{root: root, loader: l, logger: logger}
}

// Build compiles every matching file under opts.Source. A failing file is
// recorded in the report and does not stop the build; walk and option
// errors do.
func (b *Builder) Build(ctx context.Context, opts Options) (*Report, error) {
	opts = withDefaults(opts)
	if err := validate(opts); err != nil {
		return nil, err
	}

	start := time.Now()
	report := &Report{ID: id.NewBuildID(), Mode: opts.Mode}
	log := b.logger.With(zap.String("build_id", report.ID.String()), zap.String("mode", string(opts.Mode)))

	files, err := b.collect(ctx, opts)
	if err != nil {
		return nil, err
	}
	log.Info("Building source tree", zap.String("source", opts.Source), zap.Int("files", len(files)))

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := b.buildFile(ctx, opts, rel)
		switch {
		case f.Skipped:
			report.Skipped++
		case f.Error != "":
			report.Failed++
			log.Warn("File failed", zap.String("path", f.Path), zap.String("error", f.Error))
		default:
			report.Compiled++
		}
		report.Files = append(report.Files, f)
	}

	report.Duration = time.Since(start)
	log.Info("Build finished",
		zap.Int("compiled", report.Compiled),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// collect walks the source directory and returns the matching files as
// slash paths relative to it, sorted.
func (b *Builder) collect(ctx context.Context, opts Options) ([]string, error) {
	dir := filepath.Join(b.root, filepath.FromSlash(opts.Source))
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, errs.New(errs.KindInvalidInput, "build", "source directory not found").WithPath(opts.Source)
	}

	var (
		mu    sync.Mutex
		files []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !selected(opts, rel) {
			return nil
		}

		mu.Lock()
		files = append(files, rel)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", opts.Source, err)
	}

	sort.Strings(files)
	return files, nil
}

func (b *Builder) buildFile(ctx context.Context, opts Options, rel string) File {
	spec := specifier.Specifier{Path: path.Join(opts.Source, rel)}
	f := File{Path: spec.Path}

	var err error
	switch opts.Mode {
	case ModeWarm:
		_, err = b.loader.Load(ctx, spec)
	default:
		f.Output = path.Join(opts.Out, OutputName(rel))
		f.Bytes, err = b.emit(ctx, spec, f.Output)
	}

	if errors.Is(err, errs.ErrNoTransform) {
		f.Skipped = true
		return f
	}
	if err != nil {
		f.Error = err.Error()
		f.ErrorKind = errs.KindOf(err).String()
	}
	return f
}

func (b *Builder) emit(ctx context.Context, spec specifier.Specifier, out string) (int, error) {
	src, err := os.ReadFile(filepath.Join(b.root, filepath.FromSlash(spec.Path)))
	if err != nil {
		return 0, errs.Wrap(errs.KindResolution, "read source", err).WithPath(spec.Path)
	}
	code, err := b.loader.Transpile(ctx, spec, src)
	if err != nil {
		return 0, err
	}

	target := filepath.Join(b.root, filepath.FromSlash(out))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(target, code, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", out, err)
	}
	return len(code), nil
}

// OutputName maps a source path to its emitted name: the same directory
// with the extension replaced by ".js".
func OutputName(rel string) string {
	return strings.TrimSuffix(rel, path.Ext(rel)) + ".js"
}

func selected(opts Options, rel string) bool {
	for _, pattern := range opts.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	for _, pattern := range opts.Include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func withDefaults(opts Options) Options {
	if opts.Mode == "" {
		opts.Mode = ModeEmit
	}
	if opts.Source == "" {
		opts.Source = DefaultSource
	}
	if opts.Out == "" {
		opts.Out = DefaultOut
	}
	if len(opts.Include) == 0 {
		opts.Include = []string{"**"}
	}
	opts.Source = path.Clean(filepath.ToSlash(opts.Source))
	opts.Out = path.Clean(filepath.ToSlash(opts.Out))
	return opts
}

func validate(opts Options) error {
	var problems []error
	if opts.Mode != ModeEmit && opts.Mode != ModeWarm {
		problems = append(problems, fmt.Errorf("unknown build mode %q", opts.Mode))
	}
	for _, pattern := range append(append([]string{}, opts.Include...), opts.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			problems = append(problems, fmt.Errorf("invalid pattern %q", pattern))
		}
	}
	if opts.Mode == ModeEmit && isWithin(opts.Out, opts.Source) {
		problems = append(problems, fmt.Errorf("output directory %q is inside source %q", opts.Out, opts.Source))
	}
	if len(problems) > 0 {
		return errs.Wrap(errs.KindInvalidInput, "build options", errors.Join(problems...))
	}
	return nil
}

func isWithin(p, dir string) bool {
	return dir == "." || p == dir || strings.HasPrefix(p, dir+"/")
}
