package meter

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/docker/go-units"
)

func FormatByteRate(b uint64, d time.Duration) string {
	rate := float64(b) / math.Max(time.Nanosecond.Seconds(), d.Seconds())

	return units.HumanSize(rate) + "/s"
}

func FormatBytes(b uint64) string {
	return units.HumanSize(float64(b))
}

// EntriesRateFormat returns a callback printing a single self-overwriting
// line to w with the entries and bytes written so far. The final call ends
// the line.
func EntriesRateFormat(w io.Writer, label string) func(entries int, written uint64, since time.Duration, done bool) {
	return func(entries int, written uint64, since time.Duration, done bool) {
		noun := "entries"
		if entries == 1 {
			noun = "entry"
		}

		line := fmt.Sprintf(
			"\r%s: %d %s, %s (%s)                ",
			label,
			entries,
			noun,
			FormatBytes(written),
			FormatByteRate(written, since),
		)

		if done {
			_, _ = fmt.Fprintln(w, line)
			return
		}
		_, _ = fmt.Fprint(w, line)
	}
}
