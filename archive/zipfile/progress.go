package zipfile

import (
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// MinimumProgressFrequency is the shortest interval between two progress
// updates.
const MinimumProgressFrequency = 100 * time.Millisecond

// Progress is a snapshot of the archive being written.
type Progress struct {
	// Entries is the number of entries completely written.
	Entries int
	// Bytes is the size of the archive so far, headers included.
	Bytes   int64
	Elapsed time.Duration
	// Done is set on the last update, sent when the archive is finalized or
	// aborted.
	Done bool
}

type ProgressFunc func(Progress)

// countingWriter counts the archive bytes accepted by the output buffer. The
// counters are read by the progress reporter while entries are written.
type countingWriter struct {
	w       io.Writer
	n       atomic.Int64
	entries atomic.Int64
	err     error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(int64(n))
	if err != nil {
		c.err = err
	}
	return n, err
}

func (c *countingWriter) snapshot(started time.Time, done bool) Progress {
	return Progress{
		Entries: int(c.entries.Load()),
		Bytes:   c.n.Load(),
		Elapsed: time.Since(started),
		Done:    done,
	}
}

// progressReporter calls fn with the counters of one archive on every tick.
type progressReporter struct {
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func startProgress(c *countingWriter, frequency time.Duration, fn ProgressFunc) *progressReporter {
	if frequency <= 0 || fn == nil {
		return nil
	}

	if frequency < MinimumProgressFrequency {
		frequency = MinimumProgressFrequency
	}

	p := &progressReporter{
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	started := time.Now()

	go func() {
		defer close(p.stopped)

		ticker := time.NewTicker(frequency)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				fn(c.snapshot(started, false))
			case <-p.stop:
				fn(c.snapshot(started, true))
				return
			}
		}
	}()

	return p
}

// finish sends the final update and waits for it. Safe on a nil reporter.
func (p *progressReporter) finish() {
	if p == nil {
		return
	}

	p.once.Do(func() {
		close(p.stop)
		<-p.stopped
	})
}
