package dedupe

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter is matched by every *InvalidParameterError.
var ErrInvalidParameter = errors.New("invalid parameter")

// InvalidParameterError reports an option rejected before any matching work.
type InvalidParameterError struct {
	Param   string
	Message string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Message)
}

func (e *InvalidParameterError) Is(target error) bool { return target == ErrInvalidParameter }

func invalidParam(param, format string, args ...any) error {
	return &InvalidParameterError{Param: param, Message: fmt.Sprintf(format, args...)}
}
