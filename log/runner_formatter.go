package log

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"gitlab.com/gitlab-org/deploy-packager/helpers"
)

type levelStyle struct {
	color  string
	prefix string
}

var levelStyles = map[logrus.Level]levelStyle{
	logrus.DebugLevel: {color: helpers.ANSI_BOLD_WHITE},
	logrus.WarnLevel:  {color: helpers.ANSI_YELLOW, prefix: "WARNING: "},
	logrus.ErrorLevel: {color: helpers.ANSI_BOLD_RED, prefix: "ERROR: "},
	logrus.FatalLevel: {color: helpers.ANSI_BOLD_RED, prefix: "FATAL: "},
	logrus.PanicLevel: {color: helpers.ANSI_BOLD_RED, prefix: "PANIC: "},
}

// messageWidth is the column the fields start at.
const messageWidth = 50

type RunnerTextFormatter struct {
	// Force disabling colors.
	DisableColors bool

	// The fields are sorted by default for a consistent output.
	DisableSorting bool

	// Prefix every line with the entry time, formatted with TimestampFormat
	// (time.RFC3339 when empty).
	FullTimestamp   bool
	TimestampFormat string
}

func (f *RunnerTextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := new(bytes.Buffer)
	f.printColored(b, entry)
	b.WriteByte('\n')

	return b.Bytes(), nil
}

func (f *RunnerTextFormatter) printColored(b *bytes.Buffer, entry *logrus.Entry) {
	levelColor, resetColor, levelPrefix := f.colorsAndPrefix(entry.Level)

	if f.FullTimestamp {
		format := f.TimestampFormat
		if format == "" {
			format = time.RFC3339
		}
		fmt.Fprintf(b, "%s ", entry.Time.Format(format))
	}

	fmt.Fprintf(b, "%s%s%-*s%s ", levelColor, levelPrefix, messageWidth-len(levelPrefix), entry.Message, resetColor)
	for _, k := range f.keys(entry) {
		fmt.Fprintf(b, " %s%s%s=%v", levelColor, k, resetColor, entry.Data[k])
	}
}

func (f *RunnerTextFormatter) colorsAndPrefix(level logrus.Level) (string, string, string) {
	style := levelStyles[level]

	if f.DisableColors {
		return "", "", style.prefix
	}

	return style.color, helpers.ANSI_RESET, style.prefix
}

func (f *RunnerTextFormatter) keys(entry *logrus.Entry) []string {
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}

	if !f.DisableSorting {
		sort.Strings(keys)
	}

	return keys
}
