package content

import (
	"fmt"

	ierrors "github.com/Aman-CERP/wikindex/internal/errors"
)

// NotFound reports a unit, translation or attachment the source does not have.
func NotFound(ref UnitRef, what string) error {
	return ierrors.New(ierrors.ErrCodeSourceUnavailable, fmt.Sprintf("%s not found", what), nil).
		WithDetail("unit", ref.String())
}

// Unavailable wraps a storage failure of the source.
func Unavailable(op string, err error) error {
	return ierrors.New(ierrors.ErrCodeSourceUnavailable, op+": "+err.Error(), err)
}
