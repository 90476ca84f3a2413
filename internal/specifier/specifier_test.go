package specifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input         string
		wantTransform string
		wantHas       bool
		wantPath      string
	}{
		{input: "tr:./mod", wantTransform: "tr", wantHas: true, wantPath: "./mod"},
		{input: "tr_name:./mod_name", wantTransform: "tr_name", wantHas: true, wantPath: "./mod_name"},
		{input: "react", wantHas: false, wantPath: "react"},
		{input: ":", wantTransform: "", wantHas: true, wantPath: ""},
		{input: "tr_name:", wantTransform: "tr_name", wantHas: true, wantPath: ""},
		{input: ":./test", wantTransform: "", wantHas: true, wantPath: "./test"},
		{input: "typescript:src/b.tsx", wantTransform: "typescript", wantHas: true, wantPath: "src/b.tsx"},
		{input: "a:b:c", wantTransform: "a", wantHas: true, wantPath: "b:c"},
		{input: "", wantHas: false, wantPath: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s := Parse(tt.input)
			assert.Equal(t, tt.wantTransform, s.Transform)
			assert.Equal(t, tt.wantHas, s.HasTransform)
			assert.Equal(t, tt.wantPath, s.Path)
			assert.Equal(t, tt.input, s.String())
		})
	}
}

func TestParseIdempotentOnPath(t *testing.T) {
	for _, in := range []string{"react", "./a/b.js", "src/main.tsx"} {
		s := Parse(in)
		assert.Equal(t, s, Parse(s.Path))
	}
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "tsx", Parse("typescript:src/b.tsx").Extension())
	assert.Equal(t, "js", Parse("react/umd/react.js").Extension())
	assert.Equal(t, "", Parse("react").Extension())
	assert.Equal(t, "", Parse("src.d/file").Extension())
}

func TestWithPath(t *testing.T) {
	s := Parse("typescript:./b.tsx").WithPath("src/b.tsx")
	assert.Equal(t, "typescript:src/b.tsx", s.String())
}
