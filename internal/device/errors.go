package device

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bryanchriswhite/questcap/internal/bridge"
)

var (
	// ErrBridgeMissing means the bridge executable is not installed or not runnable.
	ErrBridgeMissing = errors.New("adb not found; install the Android SDK Platform Tools and make sure adb is on PATH")

	// ErrNoDevice means no device answered within the retry budget.
	ErrNoDevice = errors.New("no device found")

	// ErrNotConnected is returned by operations that need a connected session.
	ErrNotConnected = errors.New("device not connected")

	// ErrCaptureFailed wraps every failed screenshot, recording or pull.
	ErrCaptureFailed = errors.New("capture failed")
)

// CommandError describes a bridge command that exited with a non-zero status.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("adb %s exited with status %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func newCommandError(res *bridge.Result) *CommandError {
	return &CommandError{
		Args:     res.Args,
		ExitCode: res.ExitCode,
		Stderr:   strings.TrimSpace(string(res.Stderr)),
	}
}

// IsCommandFailure reports whether err came from a bridge command that ran
// and exited non-zero, as opposed to the bridge itself being unusable.
func IsCommandFailure(err error) bool {
	var cmdErr *CommandError
	return errors.As(err, &cmdErr)
}
