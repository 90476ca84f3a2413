package config

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ".", cfg.Project.Root)
	assert.Equal(t, "node_modules", cfg.Project.DependencyDir)
	assert.Equal(t, "memory", cfg.Cache.Mode)
	assert.Equal(t, time.Duration(0), cfg.Runtime.CallTimeout)
	assert.True(t, cfg.Runtime.Console)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"GUESTJS_ROOT":           "/project",
		"GUESTJS_DEP_DIR":        "vendor_modules",
		"GUESTJS_MANIFEST":       "guestjs.yaml",
		"GUESTJS_CACHE":          "disk",
		"GUESTJS_CACHE_DIR":      "/tmp/cache",
		"GUESTJS_CALL_TIMEOUT":   "250ms",
		"GUESTJS_MAX_CALL_STACK": "512",
		"GUESTJS_CONSOLE":        "false",
		"LOG_LEVEL":              "debug",
		"LOG_DEV":                "true",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/project", cfg.Project.Root)
	assert.Equal(t, "vendor_modules", cfg.Project.DependencyDir)
	assert.Equal(t, "guestjs.yaml", cfg.Project.Manifest)
	assert.Equal(t, "disk", cfg.Cache.Mode)
	assert.Equal(t, "/tmp/cache", cfg.Cache.Dir)
	assert.Equal(t, 250*time.Millisecond, cfg.Runtime.CallTimeout)
	assert.Equal(t, 512, cfg.Runtime.MaxCallStack)
	assert.False(t, cfg.Runtime.Console)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Setenv("GUESTJS_CACHE", "redis")
	t.Setenv("GUESTJS_MAX_CALL_STACK", "-1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown cache mode "redis"`)
	assert.Contains(t, err.Error(), "negative call stack limit")
}

func TestLoadManifest(t *testing.T) {
	tests := []struct {
		name  string
		files fstest.MapFS
		file  string
		check func(t *testing.T, m *Manifest)
	}{
		{
			name: "toml",
			files: fstest.MapFS{"guestjs.toml": {Data: []byte(`
dependency_dir = "deps"

[aliases]
ui = "src/ui"

[transforms]
vue = "javascript"

[build]
source = "src"
out = "dist"
exclude = ["**/*.test.ts"]
`)}},
			check: func(t *testing.T, m *Manifest) {
				assert.Equal(t, "deps", m.DependencyDir)
				assert.Equal(t, "src/ui", m.Aliases["ui"])
				assert.Equal(t, "javascript", m.Transforms["vue"])
				assert.Equal(t, "dist", m.Build.Out)
				assert.Equal(t, []string{"**/*.test.ts"}, m.Build.Exclude)
			},
		},
		{
			name: "yaml",
			files: fstest.MapFS{"guestjs.yaml": {Data: []byte(`
aliases:
  lib: vendor/lib
transforms:
  es6: javascript
`)}},
			check: func(t *testing.T, m *Manifest) {
				assert.Equal(t, "vendor/lib", m.Aliases["lib"])
				assert.Equal(t, "javascript", m.Transforms["es6"])
				assert.Equal(t, "node_modules", m.DependencyDirOr("node_modules"))
			},
		},
		{
			name:  "missing manifest",
			files: fstest.MapFS{},
			check: func(t *testing.T, m *Manifest) {
				assert.Empty(t, m.Aliases)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := LoadManifest(tt.files, tt.file)
			require.NoError(t, err)
			tt.check(t, m)
		})
	}
}

func TestLoadManifestErrors(t *testing.T) {
	files := fstest.MapFS{
		"guestjs.toml": {Data: []byte("[aliases]\nui = \"\"\n")},
		"broken.yaml":  {Data: []byte("aliases: [unterminated")},
		"guestjs.json": {Data: []byte("{}")},
	}

	_, err := LoadManifest(files, "")
	assert.ErrorContains(t, err, "empty name or target")

	_, err = LoadManifest(files, "broken.yaml")
	assert.Error(t, err)

	_, err = LoadManifest(files, "guestjs.json")
	assert.ErrorContains(t, err, "unsupported format")

	_, err = LoadManifest(files, "absent.toml")
	assert.Error(t, err)
}
