package openaicompat

import (
	"github.com/vmalyshev/studycast/internal/core/domain"
	"github.com/vmalyshev/studycast/internal/infrastructure/remote"
)

type HTTPStatusError = remote.HTTPStatusError

// ClassifyHTTPError decides retry/breaker behavior for provider calls.
var ClassifyHTTPError = remote.Classify

func wrapTemporary(operation string, err error) error {
	if remote.IsTemporary(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
