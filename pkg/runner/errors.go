package runner

import (
	"fmt"
	"time"
)

// EnvironmentError indicates the toolchain needed to run the suite is not
// installed. It is not fixable by editing project code.
type EnvironmentError struct {
	Tool string
	Err  error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("test toolchain %q not available: %v", e.Tool, e.Err)
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates a test run exceeded its budget and was killed.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("test command %q exceeded %s timeout and was killed", e.Command, e.Timeout)
}
