package delivery

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-whatsapp/core"
)

func deliveryError(source error, message string, metadata map[string]any) error {
	return core.WrapError(source, goerrors.CategoryOperation, message, core.ErrorDeliveryFailed, metadata)
}

func deliveryBadInput(message string, metadata map[string]any) error {
	return core.NewError(message, goerrors.CategoryBadInput, core.ErrorBadInput, metadata)
}

func deliveryInternal(message string, metadata map[string]any) error {
	return core.NewError(message, goerrors.CategoryInternal, core.ErrorInternal, metadata)
}

func dedupeNotFound(key core.DedupeKey) error {
	return core.NewError("delivery: dedupe record not found", goerrors.CategoryNotFound, core.ErrorDedupeRecordNotFound, map[string]any{
		"partition_key": key.PartitionKey,
		"row_key":       key.RowKey,
	})
}
