// Package specifier parses module import strings.
//
// A specifier is either "{transform}:{path}" or just "{path}". The transform
// prefix, when present, names the transform that must be used to load the
// module regardless of its file extension.
package specifier

import (
	"path"
	"strings"
)

// Specifier is a parsed import string.
type Specifier struct {
	Transform    string
	HasTransform bool
	Path         string
}

// Parse splits name on its first ':'. It never fails.
func Parse(name string) Specifier {
	i := strings.IndexByte(name, ':')
	if i < 0 {
		return Specifier{Path: name}
	}
	return Specifier{
		Transform:    name[:i],
		HasTransform: true,
		Path:         name[i+1:],
	}
}

// Extension returns the file extension of the path without the dot, or ""
// when the last path element has none.
func (s Specifier) Extension() string {
	ext := path.Ext(s.Path)
	return strings.TrimPrefix(ext, ".")
}

// WithPath returns a copy of s pointing at p, keeping the transform prefix.
func (s Specifier) WithPath(p string) Specifier {
	s.Path = p
	return s
}

// String rebuilds the import string.
func (s Specifier) String() string {
	if !s.HasTransform {
		return s.Path
	}
	return s.Transform + ":" + s.Path
}
