package transform

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/GriffinCanCode/guestjs/internal/errs"
)

// Names of the built-in transforms.
const (
	NameTypeScript = "typescript"
	NameReact      = "javascript_react"
	NameScript     = "javascript"
	NameJSON       = "json"
	NameText       = "text"
)

// ESBuild transpiles a source dialect to CommonJS with esbuild. The engine
// has no ES module support, so imports become require calls and dynamic
// import() is lowered onto require as well.
type ESBuild struct {
	loaders  map[string]api.Loader
	fallback api.Loader
	calls    int
}

// NewScript handles plain ES module or CommonJS sources.
func NewScript() *ESBuild {
	return &ESBuild{fallback: api.LoaderJS}
}

// NewReact handles JSX sources.
func NewReact() *ESBuild {
	return &ESBuild{fallback: api.LoaderJSX}
}

// NewTypeScript handles TypeScript sources, with TSX picked by extension.
func NewTypeScript() *ESBuild {
	return &ESBuild{
		loaders:  map[string]api.Loader{"tsx": api.LoaderTSX},
		fallback: api.LoaderTS,
	}
}

// NewJSON exposes JSON documents as module.exports.
func NewJSON() *ESBuild {
	return &ESBuild{fallback: api.LoaderJSON}
}

// Transpile implements Transform.
func (e *ESBuild) Transpile(_ context.Context, src Source) ([]byte, error) {
	e.calls++

	result := api.Transform(string(src.Code), api.TransformOptions{
		Loader:      e.loaderFor(src.Path),
		Format:      api.FormatCommonJS,
		Target:      api.ES2017,
		Sourcefile:  src.Path,
		Supported:   map[string]bool{"dynamic-import": false},
		JSX:         api.JSXTransform,
		JSXFactory:  "React.createElement",
		JSXFragment: "React.Fragment",
		LogLevel:    api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, errs.Wrap(errs.KindTransform, "transpile", fmt.Errorf("%s", formatMessages(result.Errors))).WithPath(src.Path)
	}
	return result.Code, nil
}

// Calls returns how many times the transform ran.
func (e *ESBuild) Calls() int {
	return e.calls
}

func (e *ESBuild) loaderFor(p string) api.Loader {
	ext := strings.TrimPrefix(path.Ext(p), ".")
	if l, ok := e.loaders[ext]; ok {
		return l
	}
	return e.fallback
}

func formatMessages(msgs []api.Message) string {
	return strings.Join(formatList(msgs), "; ")
}

func formatList(msgs []api.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			out = append(out, fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		out = append(out, m.Text)
	}
	return out
}
