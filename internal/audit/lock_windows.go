//go:build windows

package audit

import (
	"os"

	"golang.org/x/sys/windows"
)

// lockFile mirrors lock_unix.go's contract using LockFileEx, the
// Windows equivalent of the source's msvcrt.locking(..., LK_LOCK, 1)
// call: a blocking exclusive lock on the file's first byte.
func lockFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	ol := new(windows.Overlapped)
	if err := windows.LockFileEx(windows.Handle(f.Fd()), windows.LOCKFILE_EXCLUSIVE_LOCK, 0, 1, 0, ol); err != nil {
		f.Close()
		return nil, err
	}
	return func() {
		windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, ol)
		f.Close()
	}, nil
}
