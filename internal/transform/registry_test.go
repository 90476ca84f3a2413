package transform

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTransform struct {
	mu     sync.Mutex
	inside int
	max    int
	calls  int
}

func (c *countingTransform) Transpile(_ context.Context, src Source) ([]byte, error) {
	c.mu.Lock()
	c.inside++
	if c.inside > c.max {
		c.max = c.inside
	}
	c.calls++
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inside--
		c.mu.Unlock()
	}()
	return src.Code, nil
}

func TestRegisterAllSharesInstance(t *testing.T) {
	reg := NewRegistry()
	ct := &countingTransform{}

	shared, err := reg.RegisterAll("typescript", []string{"ts", ".tsx"}, ct)
	require.NoError(t, err)

	byName, ok := reg.ByName("typescript")
	require.True(t, ok)
	byTS, ok := reg.ByExtension("ts")
	require.True(t, ok)
	byTSX, ok := reg.ByExtension(".tsx")
	require.True(t, ok)

	assert.Same(t, shared, byName)
	assert.Same(t, shared, byTS)
	assert.Same(t, shared, byTSX)

	_, err = byTS.Transpile(context.Background(), Source{Path: "a.ts"})
	require.NoError(t, err)
	_, err = byName.Transpile(context.Background(), Source{Path: "b.ts"})
	require.NoError(t, err)
	assert.Equal(t, 2, ct.calls)
}

func TestLookupMisses(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.RegisterAll("javascript", []string{"js"}, &countingTransform{})
	require.NoError(t, err)

	_, ok := reg.ByName("typescript")
	assert.False(t, ok)
	_, ok = reg.ByExtension("ts")
	assert.False(t, ok)
	// names and extensions live in separate key spaces
	_, ok = reg.ByExtension("javascript")
	assert.False(t, ok)
	_, ok = reg.ByName("js")
	assert.False(t, ok)

	// lookups never remove entries
	_, ok = reg.ByName("javascript")
	assert.True(t, ok)
	_, ok = reg.ByName("javascript")
	assert.True(t, ok)
}

func TestSharedSerializesCalls(t *testing.T) {
	ct := &countingTransform{}
	s := NewShared("x", ct)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Transpile(context.Background(), Source{Path: "a.js"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 16, ct.calls)
	assert.Equal(t, 1, ct.max)
}

func TestSharedHonoursCancelledContext(t *testing.T) {
	s := NewShared("x", &countingTransform{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Transpile(ctx, Source{Path: "a.js"})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRegisterRejectsEmptyExtension(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(Extension(""), NewShared("x", &countingTransform{}))
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.RegisterAll("typescript", []string{"tsx", "ts"}, &countingTransform{})
	require.NoError(t, err)

	assert.Equal(t, []Key{Name("typescript"), Extension("ts"), Extension("tsx")}, reg.Keys())
	assert.Equal(t, ".ts", Extension("ts").String())
}
