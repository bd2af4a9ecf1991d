package main

// Exit codes. Usage and setup errors exit 1.
const (
	exitAborted = 2
)

// ExitCodeError wraps an error with a specific process exit code, so scripts
// can tell an aborted run or rejected program from a usage error.
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitCodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
