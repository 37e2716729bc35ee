package framework

import (
	"errors"

	"go.uber.org/multierr"
)

// ErrForcedExit is returned by Runner.Wait when a second stop signal
// arrives before all runnables returned.
var ErrForcedExit = errors.New("forced exit")

// RunnableError is how a named runnable (a port, a link or a vector owning
// a goroutine) stopped.
type RunnableError struct {
	Name string
	Err  error
}

func (e *RunnableError) Error() string {
	return e.Name + ": " + e.Err.Error()
}

// Unwrap returns the error of the runnable.
func (e *RunnableError) Unwrap() error {
	return e.Err
}

// FailedRunnables lists the names of the runnables in err returned by
// Runner.Wait, in the order they stopped.
func FailedRunnables(err error) (names []string) {
	for _, e := range multierr.Errors(err) {
		var re *RunnableError
		if errors.As(e, &re) {
			names = append(names, re.Name)
		}
	}
	return
}
