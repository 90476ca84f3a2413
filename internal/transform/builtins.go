package transform

import "fmt"

// Binding describes one built-in transform and the extensions it claims.
type Binding struct {
	Name       string
	Extensions []string
	New        func() Transform
}

// Builtins lists the transforms registered by RegisterBuiltins.
func Builtins() []Binding {
	return []Binding{
		{Name: NameTypeScript, Extensions: []string{"ts", "tsx", "mts", "cts"}, New: func() Transform { return NewTypeScript() }},
		{Name: NameReact, Extensions: []string{"jsx"}, New: func() Transform { return NewReact() }},
		{Name: NameScript, Extensions: []string{"js", "mjs", "cjs"}, New: func() Transform { return NewScript() }},
		{Name: NameJSON, Extensions: []string{"json"}, New: func() Transform { return NewJSON() }},
		{Name: NameText, Extensions: []string{"txt", "md", "html", "css", "svg"}, New: func() Transform { return NewText() }},
	}
}

// RegisterBuiltins registers every built-in transform on r. extra maps
// additional extensions onto built-in names.
func RegisterBuiltins(r *Registry, extra map[string]string) error {
	for _, b := range Builtins() {
		if _, err := r.RegisterAll(b.Name, b.Extensions, b.New()); err != nil {
			return err
		}
	}
	for ext, name := range extra {
		s, ok := r.ByName(name)
		if !ok {
			return fmt.Errorf("extension %q: unknown transform %q", ext, name)
		}
		if err := r.Register(Extension(ext), s); err != nil {
			return err
		}
	}
	return nil
}
