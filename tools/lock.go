package tools

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockFile      = "index.lock"
	lockRetryWait = 100 * time.Millisecond
)

// errLockTimeout means another process owns the on-disk index.
var errLockTimeout = errors.New("timeout waiting for index lock")

var (
	lockMu   sync.Mutex
	heldLock *flock.Flock
)

func lockPath() string {
	return filepath.Join(settings.SearchPath(), lockFile)
}

// acquireLock takes the inter-process index lock, retrying until
// settings.LockTimeout. It is a no-op when this process already holds it.
func acquireLock() error {
	lockMu.Lock()
	defer lockMu.Unlock()

	if heldLock != nil {
		return nil
	}

	path := lockPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	l := flock.New(path)
	start := time.Now()
	for {
		locked, err := l.TryLock()
		if err != nil {
			return fmt.Errorf("failed to acquire index lock: %w", err)
		}
		if locked {
			heldLock = l
			logger.WithField("pid", os.Getpid()).Debugf("Index lock acquired: %s", path)
			return nil
		}

		elapsed := time.Since(start)
		if elapsed >= settings.LockTimeout {
			return fmt.Errorf("%w after %v (%s)", errLockTimeout, elapsed.Round(time.Millisecond), path)
		}
		logger.Debugf("Index locked by another process, waiting... (%v elapsed)", elapsed.Round(100*time.Millisecond))
		time.Sleep(lockRetryWait)
	}
}

// holdsLock reports whether this process owns the index lock.
func holdsLock() bool {
	lockMu.Lock()
	defer lockMu.Unlock()
	return heldLock != nil
}

// releaseLock releases the index lock if held.
func releaseLock() error {
	lockMu.Lock()
	defer lockMu.Unlock()

	if heldLock == nil {
		return nil
	}
	err := heldLock.Unlock()
	heldLock = nil
	if err != nil {
		return fmt.Errorf("failed to release index lock: %w", err)
	}
	logger.Debugf("Index lock released")
	return nil
}
