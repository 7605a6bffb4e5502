package fslocker

import (
	"github.com/pkg/errors"
)

func errFileInUse(path string) error {
	return errors.Errorf("lock %q is held by another process", path)
}

func errCantAcquireLock(inner error, path string) error {
	return errors.Wrapf(inner, "can't acquire lock %q", path)
}

func errCantReleaseLock(inner error, path string) error {
	return errors.Wrapf(inner, "can't release lock %q", path)
}
