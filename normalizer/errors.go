package normalizer

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-whatsapp/core"
)

// normalizerDefect flags drift between the transform program and the event
// model. Callers must surface it.
func normalizerDefect(source error, message string, metadata map[string]any) error {
	return core.WrapError(source, goerrors.CategoryInternal, message, core.ErrorNormalizerDefect, metadata).
		WithSeverity(goerrors.SeverityCritical)
}
