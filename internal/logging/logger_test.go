package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWritesJSON(t *testing.T) {
	out := filepath.Join(t.TempDir(), "guest.log")

	l, err := New(Config{Level: "info", OutputPaths: []string{out}})
	require.NoError(t, err)

	l.Call("call_01", "run").Info("Module evaluated")
	l.Debug("hidden")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"call_id":"call_01"`)
	assert.Contains(t, string(data), `"op":"run"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNewDevelopmentUsesConsoleEncoding(t *testing.T) {
	out := filepath.Join(t.TempDir(), "dev.log")

	l, err := New(Config{Development: true, OutputPaths: []string{out}})
	require.NoError(t, err)

	l.Component("loader").Info("Module linked")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "loader")
	assert.Contains(t, string(data), "Module linked")
	assert.NotContains(t, string(data), `"message"`)
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, []string{"stderr"}, DefaultConfig().OutputPaths)
	assert.NotNil(t, Nop().Component("loader"))
}
