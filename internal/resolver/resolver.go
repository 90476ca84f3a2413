// Package resolver maps import strings to project-relative module paths.
package resolver

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/GriffinCanCode/guestjs/internal/errs"
)

// DefaultDependencyDir is the dependency folder searched for bare imports.
const DefaultDependencyDir = "node_modules"

// ResolutionError reports that no candidate path exists for an import.
type ResolutionError struct {
	Base   string
	Import string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %q from %q", e.Import, e.Base)
}

// Is matches errs.ErrResolution.
func (e *ResolutionError) Is(target error) bool {
	return target == errs.ErrResolution
}

// Resolver resolves imports against a project tree.
type Resolver struct {
	fsys   fs.FS
	depDir string
	alias  map[string]string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDependencyDir overrides the dependency folder name.
func WithDependencyDir(name string) Option {
	return func(r *Resolver) {
		if name != "" {
			r.depDir = name
		}
	}
}

// WithAliases sets the alias table. Targets are relative to the project root.
func WithAliases(aliases map[string]string) Option {
	return func(r *Resolver) {
		for name, target := range aliases {
			r.alias[name] = clean(target)
		}
	}
}

// New creates a resolver over the project root fsys.
func New(fsys fs.FS, opts ...Option) *Resolver {
	r := &Resolver{
		fsys:   fsys,
		depDir: DefaultDependencyDir,
		alias:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the project-relative path of imp imported from the module
// at base. base may be empty for imports issued from the global scope.
func (r *Resolver) Resolve(base, imp string) (string, error) {
	dir := path.Dir(clean(base))

	if strings.HasPrefix(imp, ".") {
		p := path.Join(dir, imp)
		if r.exists(p) {
			return p, nil
		}
		return "", &ResolutionError{Base: base, Import: imp}
	}

	// next to the importing module
	if p := path.Join(dir, imp); r.exists(p) {
		return p, nil
	}

	// dependency folders from the importing module up to the root
	for d := dir; ; d = path.Dir(d) {
		if p := path.Join(d, r.depDir, imp); r.exists(p) {
			return p, nil
		}
		if d == "." {
			break
		}
	}

	if p := clean(imp); r.exists(p) {
		return p, nil
	}

	if target, ok := r.lookupAlias(imp); ok {
		return target, nil
	}

	return "", &ResolutionError{Base: base, Import: imp}
}

func (r *Resolver) lookupAlias(imp string) (string, bool) {
	if target, ok := r.alias[imp]; ok {
		return target, true
	}
	name, rest, found := strings.Cut(imp, "/")
	if !found {
		return "", false
	}
	if target, ok := r.alias[name]; ok {
		return path.Join(target, rest), true
	}
	return "", false
}

// exists reports whether p is a regular file inside the project root.
func (r *Resolver) exists(p string) bool {
	if !fs.ValidPath(p) || p == "." {
		return false
	}
	info, err := fs.Stat(r.fsys, p)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func clean(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" {
		return "."
	}
	return p
}
