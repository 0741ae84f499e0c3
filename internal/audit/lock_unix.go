//go:build !windows

package audit

import (
	"os"
	"syscall"
)

// lockFile takes a blocking exclusive advisory lock on path, creating
// it if necessary, and returns a function that releases the lock and
// closes the handle. Mirrors the source's fcntl.flock(..., LOCK_EX)
// call.
func lockFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, err
	}
	return func() {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
	}, nil
}
