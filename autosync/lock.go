package autosync

import (
	"fmt"
	"io"
	"os"
	"time"

	"go4.org/lock"
)

// InstanceLock is the cross-process single-instance guard. Holding the
// advisory lock on the file denotes ownership; the file body is diagnostics
// only and is never read back for arbitration. Stale files from dead
// processes are harmless because the OS releases the advisory lock with the
// process.
type InstanceLock struct {
	path   string
	closer io.Closer
}

// AcquireLock takes an exclusive advisory lock on path and writes
// "PID:label:start-time" into it for diagnostics. Fails when another live
// process holds the lock.
func AcquireLock(path, label string) (*InstanceLock, error) {
	closer, err := lock.Lock(path)
	if err != nil {
		return nil, fmt.Errorf("another sync instance is running: %w", err)
	}

	// The lock itself is held; a failed diagnostic write is not fatal.
	diag := fmt.Sprintf("%d:%s:%s", os.Getpid(), label, time.Now().Format(time.RFC3339))
	os.WriteFile(path, []byte(diag), 0o644)
	return &InstanceLock{path: path, closer: closer}, nil
}

// Release drops the lock and unlinks the file. Safe to call more than once.
func (l *InstanceLock) Release() {
	if l.closer != nil {
		l.closer.Close()
		l.closer = nil
		os.Remove(l.path)
	}
}
