package pipeline

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-whatsapp/core"
)

func pipelineInvalid(message string, index int) error {
	return core.NewError(message, goerrors.CategoryBadInput, core.ErrorPipelineInvalid, map[string]any{
		"stage": index,
	})
}
