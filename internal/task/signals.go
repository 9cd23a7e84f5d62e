package task

import (
	"os"
	"syscall"
)

// terminationSignals lists the signals that should trigger a synchronous
// task failure rather than an abrupt process kill.
func terminationSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}
