package errors

import (
	"fmt"
)

var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrNotActionable = fmt.Errorf("not actionable")
	ErrConflict      = fmt.Errorf("conflicting update")
)
