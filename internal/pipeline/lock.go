package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

type runLock struct {
	fl *flock.Flock
}

// acquireLock takes the advisory lock without blocking. An empty path
// disables locking.
func acquireLock(path string) (*runLock, error) {
	if path == "" {
		return &runLock{}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create lock dir: %w", err)
		}
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock %s: %w", path, err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	return &runLock{fl: fl}, nil
}

func (l *runLock) release() {
	if l == nil || l.fl == nil {
		return
	}
	_ = l.fl.Unlock()
}
