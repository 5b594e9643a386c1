package evolution

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrLocked means another evolution run holds the filesystem lock.
var ErrLocked = errors.New("evolution: another run is in progress")

// fileLock is a single-writer guard. The lock file holds the owner pid so a
// stale lock can be diagnosed by hand.
type fileLock struct {
	path string
}

func acquireLock(path string) (*fileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLocked
		}
		return nil, err
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, err
	}
	return &fileLock{path: path}, nil
}

func (l *fileLock) release() error {
	return os.Remove(l.path)
}
