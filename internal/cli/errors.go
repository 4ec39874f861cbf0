package cli

import (
	"errors"
	"fmt"
)

// ErrUsage matches every error caused by bad flags, config or input rather
// than a failure while generating. main exits with status 2 for these.
var ErrUsage = errors.New("cli usage error")

type usageError struct {
	msg string
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

func usageErrorf(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}
