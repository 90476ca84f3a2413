package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// ManifestNames are tried in order when no manifest is named explicitly.
var ManifestNames = []string{"guestjs.toml", "guestjs.yaml", "guestjs.yml"}

// Manifest is the project file at the root of a script tree.
type Manifest struct {
	DependencyDir string            `toml:"dependency_dir" yaml:"dependency_dir"`
	Aliases       map[string]string `toml:"aliases" yaml:"aliases"`
	Transforms    map[string]string `toml:"transforms" yaml:"transforms"`
	Build         BuildManifest     `toml:"build" yaml:"build"`
}

// BuildManifest configures ahead-of-time builds.
type BuildManifest struct {
	Source  string   `toml:"source" yaml:"source"`
	Out     string   `toml:"out" yaml:"out"`
	Include []string `toml:"include" yaml:"include"`
	Exclude []string `toml:"exclude" yaml:"exclude"`
}

// LoadManifest reads the project manifest from fsys. An explicit name must
// exist; otherwise the first of ManifestNames found is used, and a project
// without any manifest gets an empty one.
func LoadManifest(fsys fs.FS, name string) (*Manifest, error) {
	if name != "" {
		return readManifest(fsys, name)
	}
	for _, candidate := range ManifestNames {
		m, err := readManifest(fsys, candidate)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return m, err
	}
	return &Manifest{}, nil
}

func readManifest(fsys fs.FS, name string) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}

	var m Manifest
	switch path.Ext(name) {
	case ".toml":
		err = toml.Unmarshal(data, &m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("manifest %s: unsupported format", name)
	}
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", name, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", name, err)
	}
	return &m, nil
}

// Validate reports every invalid entry at once.
func (m *Manifest) Validate() error {
	var errs []error
	for name, target := range m.Aliases {
		if name == "" || target == "" {
			errs = append(errs, fmt.Errorf("alias %q: empty name or target", name))
		}
	}
	for ext, transform := range m.Transforms {
		if ext == "" || transform == "" {
			errs = append(errs, fmt.Errorf("transform binding %q: empty extension or name", ext))
		}
	}
	for _, pattern := range append(append([]string{}, m.Build.Include...), m.Build.Exclude...) {
		if pattern == "" {
			errs = append(errs, errors.New("build: empty glob pattern"))
		}
	}
	return errors.Join(errs...)
}

// DependencyDirOr returns the manifest's dependency folder or fallback.
func (m *Manifest) DependencyDirOr(fallback string) string {
	if m.DependencyDir != "" {
		return m.DependencyDir
	}
	return fallback
}
