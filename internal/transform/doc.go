/*
Package transform provides the pluggable source transforms used by the
module loader.

A Transform turns one source dialect (TypeScript, JSX, JSON, text assets)
into CommonJS script source the engine can compile. Transforms are stored in
a Registry under a name key and any number of extension keys; every key of a
registration points at the same Shared instance, and Shared serializes calls
because transforms keep per-call state.

# Built-in transforms

	typescript        .ts .tsx .mts .cts
	javascript_react  .jsx
	javascript        .js .mjs .cjs
	json              .json
	text              .txt .md .html .css .svg

All code transforms are backed by esbuild and emit CommonJS with dynamic
import() lowered to require, which the execution bridge links.

# Usage

	reg := transform.NewRegistry()
	if err := transform.RegisterBuiltins(reg, nil); err != nil {
		return err
	}
	ts, _ := reg.ByExtension("tsx")
	js, err := ts.Transpile(ctx, transform.Source{Path: "src/app.tsx", Code: code})
*/
package transform
