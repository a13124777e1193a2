package alert

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrBusinessRule = errors.New("business rule violated")
)

var (
	ErrBlankField             = fmt.Errorf("%w: field must not be blank", ErrValidation)
	ErrInvalidReference       = fmt.Errorf("%w: reference id must be positive", ErrValidation)
	ErrUnknownSeverity        = fmt.Errorf("%w: unknown severity", ErrValidation)
	ErrUnknownState           = fmt.Errorf("%w: unknown state", ErrValidation)
	ErrAlertNotFound          = fmt.Errorf("%w: alert", ErrNotFound)
	ErrInvalidStateTransition = fmt.Errorf("%w: invalid alert state transition", ErrBusinessRule)
)
