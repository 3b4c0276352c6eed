package session

import (
	"errors"
	"fmt"
)

var (
	// ErrLaunchFailed marks every failed Launch. Catalog state is unaffected.
	ErrLaunchFailed = errors.New("launch failed")
	// ErrUnknownEntry is the cause of a launch on an id that does not resolve.
	ErrUnknownEntry = errors.New("unknown entry")
	// ErrNoCommand is the cause of a launch on an entry without a command
	// line, such as a Hidden descriptor that only masks a lower copy.
	ErrNoCommand = errors.New("entry has no command line")
	// ErrNoLauncher is the cause of a launch when no launcher was configured.
	ErrNoLauncher = errors.New("no launcher configured")

	ErrDuplicateRank   = errors.New("duplicate backend rank")
	ErrDuplicateName   = errors.New("duplicate backend name")
	ErrUnknownBackend  = errors.New("unknown backend")
	ErrNotStarted      = errors.New("session not started")
	ErrAlreadyStarted  = errors.New("session already started")
	ErrClosed          = errors.New("session closed")
	ErrAlreadyWatching = errors.New("session already watching")
)

// LaunchError reports a failed launch. Err is the launcher's error, passed
// through verbatim, or ErrUnknownEntry or ErrNoCommand.
type LaunchError struct {
	ID   string
	Exec string
	Err  error
}

func (e *LaunchError) Error() string {
	if e.Exec == "" {
		return fmt.Sprintf("%v: %s: %v", ErrLaunchFailed, e.ID, e.Err)
	}
	return fmt.Sprintf("%v: %s (%s): %v", ErrLaunchFailed, e.ID, e.Exec, e.Err)
}

func (e *LaunchError) Unwrap() error        { return e.Err }
func (e *LaunchError) Is(target error) bool { return target == ErrLaunchFailed }
