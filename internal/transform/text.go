package transform

import (
	"context"
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/gabriel-vasile/mimetype"

	"github.com/GriffinCanCode/guestjs/internal/errs"
)

// Text exposes a text asset as a string export. Binary payloads are rejected.
type Text struct{}

// NewText creates a text asset transform.
func NewText() *Text {
	return &Text{}
}

// Transpile implements Transform.
func (*Text) Transpile(_ context.Context, src Source) ([]byte, error) {
	mtype := mimetype.Detect(src.Code)
	if !isText(mtype) {
		return nil, errs.New(errs.KindTransform, "transpile", fmt.Sprintf("binary asset (%s)", mtype.String())).WithPath(src.Path)
	}

	result := api.Transform(string(src.Code), api.TransformOptions{
		Loader:     api.LoaderText,
		Format:     api.FormatCommonJS,
		Sourcefile: src.Path,
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, errs.Wrap(errs.KindTransform, "transpile", fmt.Errorf("%s", formatMessages(result.Errors))).WithPath(src.Path)
	}
	return result.Code, nil
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
