package helpers

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// fatalLogHook turns a logged fatal entry into a panic carrying the entry,
// so tests can observe what would otherwise end the process.
type fatalLogHook struct {
	output io.Writer
}

func (s *fatalLogHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.FatalLevel}
}

func (s *fatalLogHook) Fire(e *logrus.Entry) error {
	_, _ = fmt.Fprintln(s.output, e.Message)

	panic(e)
}

// MakeFatalToPanic installs the hook on the standard logger and returns the
// function restoring the previous hooks.
func MakeFatalToPanic() func() {
	logger := logrus.StandardLogger()

	hooks := make(logrus.LevelHooks)
	hooks.Add(&fatalLogHook{output: logger.Out})
	oldHooks := logger.ReplaceHooks(hooks)

	return func() {
		logger.ReplaceHooks(oldHooks)
	}
}
