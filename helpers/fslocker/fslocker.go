package fslocker

import (
	"errors"
	"io/fs"
	"os"

	"github.com/gofrs/flock"
)

type locker interface {
	TryLock() (bool, error)
	Unlock() error
}

var defaultLocker = func(path string) locker {
	return flock.New(path)
}

// Lock is an exclusive advisory lock held on a lock file.
type Lock struct {
	path   string
	locker locker
}

// TryLock takes the lock on filePath without waiting. It fails if another
// process holds it.
func TryLock(filePath string) (*Lock, error) {
	locker := defaultLocker(filePath)

	lock, err := locker.TryLock()
	if err != nil {
		return nil, errCantAcquireLock(err, filePath)
	}

	if !lock {
		return nil, errFileInUse(filePath)
	}

	return &Lock{path: filePath, locker: locker}, nil
}

// Unlock releases the lock and removes the lock file.
func (l *Lock) Unlock() error {
	err := l.locker.Unlock()
	if err != nil {
		return errCantReleaseLock(err, l.path)
	}

	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errCantReleaseLock(err, l.path)
	}

	return nil
}

// InLock runs fn while holding the lock on filePath.
func InLock(filePath string, fn func()) (err error) {
	lock, err := TryLock(filePath)
	if err != nil {
		return err
	}

	defer func() {
		unlockErr := lock.Unlock()
		if unlockErr != nil {
			err = unlockErr
		}
	}()

	fn()

	return
}
