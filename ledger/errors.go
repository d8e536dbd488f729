package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingColumn is matched by every MissingColumnError.
var ErrMissingColumn = errors.New("missing required column")

// MissingColumnError reports the required columns absent from an uploaded table.
type MissingColumnError struct {
	Missing []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("CSV must contain columns: %s (missing: %s)",
		strings.Join(RequiredColumns, ", "), strings.Join(e.Missing, ", "))
}

func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}
