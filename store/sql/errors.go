package sqlstore

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-whatsapp/core"
)

func dedupeNotFound(key core.DedupeKey) error {
	return core.NewError(
		fmt.Sprintf("sqlstore: dedupe record %q not found", key.String()),
		goerrors.CategoryNotFound,
		core.ErrorDedupeRecordNotFound,
		map[string]any{"partition_key": key.PartitionKey, "row_key": key.RowKey},
	)
}

func invalidKey(key core.DedupeKey) error {
	return core.NewError("sqlstore: dedupe key is required", goerrors.CategoryBadInput, core.ErrorBadInput, map[string]any{
		"partition_key": key.PartitionKey,
		"row_key":       key.RowKey,
	})
}
