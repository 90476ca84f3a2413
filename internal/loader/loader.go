// Package loader turns module specifiers into compiled modules.
//
// A load checks the cache first. On a miss it reads the source, selects a
// transform, transpiles, compiles and stores the serialized artifact under
// the resolved path.
package loader

import (
	"context"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/guestjs/internal/artifact"
	"github.com/GriffinCanCode/guestjs/internal/cache"
	"github.com/GriffinCanCode/guestjs/internal/errs"
	"github.com/GriffinCanCode/guestjs/internal/monitoring"
	"github.com/GriffinCanCode/guestjs/internal/resolver"
	"github.com/GriffinCanCode/guestjs/internal/specifier"
	"github.com/GriffinCanCode/guestjs/internal/transform"
)

// Loader loads modules from a project tree.
type Loader struct {
	fsys     fs.FS
	registry *transform.Registry
	cache    cache.Cache
	resolver *resolver.Resolver
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// Option configures a Loader.
type Option func(*Loader)

// WithResolver makes LoadImport resolve imports before loading them.
func WithResolver(r *resolver.Resolver) Option {
	return func(l *Loader) {
		l.resolver = r
	}
}

// WithLogger sets the loader logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics records loads and transform timings on m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(l *Loader) {
		l.metrics = m
	}
}

// New creates a loader reading sources from fsys.
func New(fsys fs.FS, registry *transform.Registry, c cache.Cache, opts ...Option) *Loader {
	l := &Loader{
		fsys:     fsys,
		registry: registry,
		cache:    c,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.cache == nil {
		l.cache = cache.None{}
	}
	return l
}

// ReadFile reads a file by its path from the project root.
func (l *Loader) ReadFile(name string) ([]byte, error) {
	p := path.Clean(strings.TrimPrefix(name, "./"))
	if !fs.ValidPath(p) {
		return nil, errs.New(errs.KindInvalidInput, "read file", "path is outside the project root").WithPath(name)
	}
	data, err := fs.ReadFile(l.fsys, p)
	if err != nil {
		return nil, errs.Wrap(errs.KindResolution, "read file", err).WithPath(p)
	}
	return data, nil
}

// Load loads the module at spec.Path, which is taken as already resolved.
func (l *Loader) Load(ctx context.Context, spec specifier.Specifier) (*artifact.Module, error) {
	id := spec.Path

	if data, ok := l.cache.Get(id); ok {
		m, err := artifact.Decode(data)
		switch {
		case err != nil:
			l.logger.Warn("Discarding unreadable cache entry", zap.String("module", id), zap.Error(err))
		case m.Name != id:
			l.logger.Warn("Discarding cache entry of another module", zap.String("module", id), zap.String("entry", m.Name))
		default:
			l.record(monitoring.LoadHit)
			return m, nil
		}
	}

	m, err := l.compileFile(ctx, spec)
	if err != nil {
		l.record(monitoring.LoadError)
		return nil, err
	}

	data, err := m.MarshalBinary()
	if err != nil {
		l.record(monitoring.LoadError)
		return nil, errs.Wrap(errs.KindInternal, "encode artifact", err).WithPath(id)
	}
	l.cache.Insert(id, data)
	l.record(monitoring.LoadMiss)
	return m, nil
}

// LoadImport resolves imp relative to base and loads the result. Without a
// resolver the import path is used as is.
func (l *Loader) LoadImport(ctx context.Context, base, imp string) (*artifact.Module, error) {
	spec, err := l.ResolveImport(base, imp)
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, spec)
}

// ResolveImport parses imp and resolves its path relative to base.
func (l *Loader) ResolveImport(base, imp string) (specifier.Specifier, error) {
	spec := specifier.Parse(imp)
	if l.resolver == nil {
		return spec, nil
	}
	p, err := l.resolver.Resolve(base, spec.Path)
	if err != nil {
		return spec, err
	}
	return spec.WithPath(p), nil
}

// CompileSource transforms and compiles inline source without touching the
// cache. The transform is chosen from name like a file path; a name without
// prefix or extension uses the javascript transform when one is registered.
func (l *Loader) CompileSource(ctx context.Context, name, source string) (*artifact.Module, error) {
	spec := specifier.Parse(name)
	if !utf8.ValidString(source) {
		return nil, errs.New(errs.KindInvalidUTF8, "compile source", "source is not valid utf-8").WithPath(spec.Path)
	}

	tspec := spec
	if !spec.HasTransform && spec.Extension() == "" {
		if _, ok := l.registry.ByName(transform.NameScript); ok {
			tspec = specifier.Specifier{Transform: transform.NameScript, HasTransform: true, Path: spec.Path}
		}
	}
	code, err := l.transpile(ctx, tspec, []byte(source))
	if err != nil {
		return nil, err
	}
	return l.compile(spec.Path, code)
}

// Transpile runs only the transform step for src as if it were loaded from
// spec.Path.
func (l *Loader) Transpile(ctx context.Context, spec specifier.Specifier, src []byte) ([]byte, error) {
	return l.transpile(ctx, spec, src)
}

func (l *Loader) compileFile(ctx context.Context, spec specifier.Specifier) (*artifact.Module, error) {
	src, err := fs.ReadFile(l.fsys, spec.Path)
	if err != nil {
		return nil, errs.Wrap(errs.KindResolution, "read source", err).WithPath(spec.Path)
	}
	if !utf8.Valid(src) {
		return nil, errs.New(errs.KindInvalidUTF8, "read source", "source is not valid utf-8").WithPath(spec.Path)
	}

	code, err := l.transpile(ctx, spec, src)
	if err != nil {
		return nil, err
	}
	return l.compile(spec.Path, code)
}

func (l *Loader) transpile(ctx context.Context, spec specifier.Specifier, src []byte) ([]byte, error) {
	t, err := l.selectTransform(spec)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return src, nil
	}

	start := time.Now()
	code, err := t.Transpile(ctx, transform.Source{Path: spec.Path, Code: src})
	elapsed := time.Since(start)
	if l.metrics != nil {
		l.metrics.ObserveTransform(t.Name(), elapsed)
	}
	if err != nil {
		if errs.KindOf(err) == errs.KindInternal {
			return nil, errs.Wrap(errs.KindTransform, "transpile", err).WithPath(spec.Path)
		}
		return nil, err
	}

	l.logger.Debug("Transformed module",
		zap.String("module", spec.Path),
		zap.String("transform", t.Name()),
		zap.Duration("duration", elapsed))
	return code, nil
}

// selectTransform returns nil for plain script.
func (l *Loader) selectTransform(spec specifier.Specifier) (*transform.Shared, error) {
	if spec.HasTransform {
		t, ok := l.registry.ByName(spec.Transform)
		if !ok {
			return nil, errs.New(errs.KindNoTransform, "select transform", "no transform named "+strconv.Quote(spec.Transform)).WithPath(spec.Path)
		}
		return t, nil
	}

	ext := spec.Extension()
	if ext == "" {
		return nil, nil
	}
	t, ok := l.registry.ByExtension(ext)
	if !ok {
		return nil, errs.New(errs.KindNoTransform, "select transform", "no transform for extension "+strconv.Quote("."+ext)).WithPath(spec.Path)
	}
	return t, nil
}

func (l *Loader) compile(name string, code []byte) (*artifact.Module, error) {
	start := time.Now()
	m, err := artifact.Compile(name, string(code))
	if l.metrics != nil {
		l.metrics.ObserveCompile(time.Since(start))
	}
	return m, err
}

func (l *Loader) record(result string) {
	if l.metrics != nil {
		l.metrics.RecordLoad(result)
	}
}
