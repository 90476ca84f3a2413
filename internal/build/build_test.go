package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/guestjs/internal/cache"
	"github.com/GriffinCanCode/guestjs/internal/errs"
	"github.com/GriffinCanCode/guestjs/internal/loader"
	"github.com/GriffinCanCode/guestjs/internal/transform"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, data := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	}
	return root
}

func newBuilder(t *testing.T, root string, c cache.Cache) *Builder {
	t.Helper()
	reg := transform.NewRegistry()
	require.NoError(t, transform.RegisterBuiltins(reg, nil))
	return New(root, loader.New(os.DirFS(root), reg, c), nil)
}

func project(t *testing.T) string {
	return writeTree(t, map[string]string{
		"src/a/b.ts":       `export const n: number = 1;`,
		"src/main.jsx":     `export const App = () => <div/>;`,
		"src/data.bin":     "\x00\x01",
		"src/skip/x.ts":    `export const x = 1;`,
		"src/broken.ts":    `export const = ;`,
		"other/ignored.js": `exports.x = 1;`,
	})
}

func TestEmitMirrorsTree(t *testing.T) {
	root := project(t)
	b := newBuilder(t, root, cache.None{})

	report, err := b.Build(context.Background(), Options{Exclude: []string{"skip/**"}})
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, ModeEmit, report.Mode)
	assert.Equal(t, 2, report.Compiled)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)
	assert.Error(t, report.Err())
	require.Len(t, report.Files, 4)

	out, err := os.ReadFile(filepath.Join(root, "dist", "a", "b.js"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "exports")
	assert.NotContains(t, string(out), ": number")

	_, err = os.Stat(filepath.Join(root, "dist", "main.js"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "dist", "skip"))
	assert.True(t, os.IsNotExist(err))

	for _, f := range report.Files {
		if f.Path == "src/broken.ts" {
			assert.Equal(t, errs.KindTransform.String(), f.ErrorKind)
		}
	}
}

func TestWarmFillsDiskCache(t *testing.T) {
	root := project(t)
	dir := filepath.Join(root, ".guestjs", "cache")
	disk, err := cache.NewDisk(dir)
	require.NoError(t, err)

	b := newBuilder(t, root, disk)
	report, err := b.Build(context.Background(), Options{
		Mode:    ModeWarm,
		Include: []string{"a/**/*.ts", "*.jsx"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Compiled)
	assert.NoError(t, report.Err())

	_, err = os.Stat(filepath.Join(dir, cache.FileName("src/a/b.ts")))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "dist"))
	assert.True(t, os.IsNotExist(err))
}

func TestBuildRejectsBadOptions(t *testing.T) {
	root := project(t)
	b := newBuilder(t, root, cache.None{})

	tests := []struct {
		name string
		opts Options
	}{
		{"unknown mode", Options{Mode: "zip"}},
		{"bad pattern", Options{Include: []string{"[a-"}}},
		{"output inside source", Options{Out: "src/dist"}},
		{"missing source", Options{Source: "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(context.Background(), tt.opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrInvalidInput))
		})
	}
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "a/b.js", OutputName("a/b.ts"))
	assert.Equal(t, "main.js", OutputName("main.tsx"))
	assert.Equal(t, "plain.js", OutputName("plain"))
}
