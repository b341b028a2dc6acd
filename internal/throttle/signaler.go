package throttle

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Signaler delivers job-control signals to a process.
type Signaler interface {
	Signal(pid int, sig unix.Signal) error
}

// KillSignaler sends signals with kill(2).
type KillSignaler struct{}

// Signal implements Signaler.
func (KillSignaler) Signal(pid int, sig unix.Signal) error {
	return unix.Kill(pid, sig)
}

// ParseStopSignal maps a signal name to the signal used to pause the target.
// Only SIGSTOP and SIGTSTP are accepted; both are undone by SIGCONT.
func ParseStopSignal(name string) (unix.Signal, error) {
	switch strings.TrimPrefix(strings.ToUpper(name), "SIG") {
	case "", "STOP":
		return unix.SIGSTOP, nil
	case "TSTP":
		return unix.SIGTSTP, nil
	default:
		return 0, NewError(InvalidArgument, "parse", 0,
			fmt.Sprintf("unsupported stop signal %q (want STOP or TSTP)", name), nil)
	}
}
