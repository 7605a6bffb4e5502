// Package zipfile writes and verifies zip deployment artifacts.
package zipfile

import (
	"archive/zip"
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"math"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"gitlab.com/gitlab-org/deploy-packager/archive"
	"gitlab.com/gitlab-org/deploy-packager/helpers/fslocker"
)

const (
	// DefaultBufferSize bounds the bytes held in memory before the writer
	// blocks on the output file.
	DefaultBufferSize = 1 << 20

	flagDataDescriptor = 0x8
	flagUTF8           = 0x800

	extTimeExtraID = 0x5455

	lockSuffix = ".lock"
)

type Option func(*Writer)

func WithBufferSize(size int) Option {
	return func(w *Writer) {
		if size > 0 {
			w.bufferSize = size
		}
	}
}

// WithProgress reports the entries and bytes written every frequency. A zero
// frequency disables it.
func WithProgress(frequency time.Duration, fn ProgressFunc) Option {
	return func(w *Writer) {
		w.progressFrequency = frequency
		w.progressFn = fn
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

// Writer streams entries into a zip file. The archive is built in a
// temporary sibling of the output path and only renamed into place by
// Finalize.
type Writer struct {
	mu    sync.Mutex
	state archive.State

	bufferSize        int
	progressFrequency time.Duration
	progressFn        ProgressFunc
	logger            logrus.FieldLogger

	handle *handle
}

// handle is the open output of a Writer.
type handle struct {
	outputPath string
	tempPath   string

	file     *os.File
	buf      *bufio.Writer
	counter  *countingWriter
	zw       *zip.Writer
	lock     *fslocker.Lock
	progress *progressReporter

	// names holds the archive paths written so far; a file and a directory
	// cannot share one
	names map[string]struct{}
}

func NewWriter(opts ...Option) *Writer {
	w := &Writer{
		state:      archive.StateIdle,
		bufferSize: DefaultBufferSize,
		logger:     logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

func (w *Writer) State() archive.State {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.state
}

// Entries returns the number of entries written so far.
func (w *Writer) Entries() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.handle == nil {
		return 0
	}
	return int(w.handle.counter.entries.Load())
}

// BytesWritten returns the archive bytes accepted so far.
func (w *Writer) BytesWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.handle == nil {
		return 0
	}
	return w.handle.counter.n.Load()
}

func (w *Writer) invalidState(op string) error {
	return archive.Errorf(archive.ErrInvalidState, nil, "%s: writer is %s", op, w.state)
}

// Open locks outputPath, removes a previous artifact there and starts a new
// archive.
func (w *Writer) Open(ctx context.Context, outputPath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != archive.StateIdle {
		return w.invalidState("open")
	}

	if err := ctx.Err(); err != nil {
		w.state = archive.StateAborted
		return err
	}

	h, err := w.open(outputPath)
	if err != nil {
		w.state = archive.StateAborted
		return err
	}

	w.handle = h
	w.state = archive.StateOpen

	w.logger.WithField("output", h.outputPath).Debugln("Archive opened:", h.tempPath)

	return nil
}

func (w *Writer) open(outputPath string) (*handle, error) {
	abs, err := filepath.Abs(outputPath)
	if err != nil {
		return nil, archive.Errorf(archive.ErrWrite, err, "resolving %s", outputPath)
	}

	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, archive.Errorf(archive.ErrWrite, err, "creating %s", dir)
	}

	lock, err := fslocker.TryLock(abs + lockSuffix)
	if err != nil {
		return nil, archive.Errorf(archive.ErrWrite, err, "locking %s", abs)
	}

	h, err := createHandle(abs, lock)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	h.buf = bufio.NewWriterSize(h.file, w.bufferSize)
	h.counter = &countingWriter{w: h.buf}
	h.zw = zip.NewWriter(h.counter)
	h.progress = startProgress(h.counter, w.progressFrequency, w.progressFn)

	return h, nil
}

func createHandle(outputPath string, lock *fslocker.Lock) (*handle, error) {
	if err := os.Remove(outputPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, archive.Errorf(archive.ErrWrite, err, "removing previous artifact")
	}

	// CreateTemp opens with O_EXCL
	f, err := os.CreateTemp(filepath.Dir(outputPath), "."+filepath.Base(outputPath)+".partial-*")
	if err != nil {
		return nil, archive.Errorf(archive.ErrWrite, err, "creating %s", outputPath)
	}

	return &handle{
		outputPath: outputPath,
		tempPath:   f.Name(),
		file:       f,
		lock:       lock,
		names:      make(map[string]struct{}),
	}, nil
}

// entryName validates an archive path and returns the zip name for it.
func entryName(entry archive.Entry) (string, error) {
	p := entry.Path

	invalid := p == "" || p == "." || p == ".." ||
		strings.HasPrefix(p, "/") ||
		strings.HasPrefix(p, "../") ||
		strings.Contains(p, "\\") ||
		path.Clean(p) != p
	if invalid {
		return "", archive.Errorf(archive.ErrWrite, nil, "invalid archive path %q", p)
	}

	if entry.Kind == archive.KindDirectory {
		return p + "/", nil
	}
	return p, nil
}

func fileHeader(name string, entry archive.Entry) *zip.FileHeader {
	fh := &zip.FileHeader{
		Name:     name,
		Modified: entry.ModTime,
	}

	mode := entry.Mode
	if entry.Kind == archive.KindDirectory {
		mode |= os.ModeDir
	}
	if mode.Perm() == 0 {
		mode |= 0o644
	}
	fh.SetMode(mode)

	// filenames are UTF-8
	fh.Flags |= flagUTF8

	return fh
}

// AddEntry writes entry with the compressed body. Entries rejected before any
// byte is written (invalid or duplicate path) leave the writer open; any
// failure after that aborts it.
func (w *Writer) AddEntry(ctx context.Context, entry archive.Entry, body *archive.CompressedStream) (archive.EntryStats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != archive.StateOpen {
		return archive.EntryStats{}, w.invalidState("add entry")
	}

	if err := ctx.Err(); err != nil {
		return archive.EntryStats{}, w.abortWith(err)
	}

	name, err := entryName(entry)
	if err != nil {
		return archive.EntryStats{}, err
	}

	if _, ok := w.handle.names[entry.Path]; ok {
		return archive.EntryStats{}, archive.Errorf(archive.ErrDuplicateEntry, nil, "%s", entry.Path)
	}

	if entry.Kind == archive.KindFile && body == nil {
		return archive.EntryStats{}, archive.Errorf(archive.ErrWrite, nil, "%s: file entry without body", entry.Path)
	}

	var stats archive.EntryStats
	if entry.Kind == archive.KindDirectory {
		err = w.writeDirectory(name, entry)
	} else {
		stats, err = w.writeFile(ctx, name, entry, body)
	}
	if err != nil {
		return archive.EntryStats{}, w.abortWith(err)
	}

	w.handle.names[entry.Path] = struct{}{}
	w.handle.counter.entries.Add(1)

	w.logger.WithFields(logrus.Fields{
		"entry":      entry.Path,
		"size":       stats.UncompressedSize,
		"compressed": stats.CompressedSize,
	}).Debugln("Entry added")

	return stats, nil
}

func (w *Writer) writeDirectory(name string, entry archive.Entry) error {
	if _, err := w.handle.zw.CreateHeader(fileHeader(name, entry)); err != nil {
		return w.writeError(err, "writing header of %s", entry.Path)
	}
	return nil
}

func (w *Writer) writeFile(ctx context.Context, name string, entry archive.Entry, body *archive.CompressedStream) (archive.EntryStats, error) {
	fh := fileHeader(name, entry)
	fh.Method = uint16(body.Method())
	setModified(fh, entry.ModTime)
	// sizes and checksum are only known once the body is drained; they go to
	// the data descriptor and the central directory
	fh.Flags |= flagDataDescriptor

	fw, err := w.handle.zw.CreateRaw(fh)
	if err != nil {
		return archive.EntryStats{}, w.writeError(err, "writing header of %s", entry.Path)
	}

	n, err := io.Copy(fw, &contextReader{ctx: ctx, r: body})
	if err != nil {
		if w.handle.counter.err != nil {
			return archive.EntryStats{}, w.writeError(w.handle.counter.err, "writing %s", entry.Path)
		}
		return archive.EntryStats{}, err
	}

	stats, err := body.Stats()
	if err != nil {
		return archive.EntryStats{}, err
	}

	if n != stats.CompressedSize {
		return archive.EntryStats{}, w.writeError(nil, "%s: wrote %d of %d compressed bytes", entry.Path, n, stats.CompressedSize)
	}

	fh.CRC32 = stats.CRC32
	fh.CompressedSize64 = uint64(stats.CompressedSize)
	fh.UncompressedSize64 = uint64(stats.UncompressedSize)
	fh.CompressedSize = clampUint32(fh.CompressedSize64)
	fh.UncompressedSize = clampUint32(fh.UncompressedSize64)

	return stats, nil
}

// setModified records t the way zip.Writer.CreateHeader does, as MS-DOS
// date and time plus an extended timestamp. CreateRaw leaves both unset.
func setModified(fh *zip.FileHeader, t time.Time) {
	if t.IsZero() {
		return
	}

	dos := t
	if dos.Year() < 1980 {
		dos = time.Date(1980, 1, 1, 0, 0, 0, 0, t.Location())
	}
	fh.ModifiedDate = uint16(dos.Day() + int(dos.Month())<<5 + (dos.Year()-1980)<<9)
	fh.ModifiedTime = uint16(dos.Second()/2 + dos.Minute()<<5 + dos.Hour()<<11)

	extra := make([]byte, 9)
	binary.LittleEndian.PutUint16(extra[0:], extTimeExtraID)
	binary.LittleEndian.PutUint16(extra[2:], 5)
	extra[4] = 1 // modification time only
	binary.LittleEndian.PutUint32(extra[5:], uint32(t.Unix()))
	fh.Extra = append(fh.Extra, extra...)
}

func clampUint32(v uint64) uint32 {
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}

func (w *Writer) writeError(err error, format string, args ...interface{}) error {
	return archive.Errorf(archive.ErrWrite, err, format, args...)
}

// Finalize writes the central directory, flushes and syncs the file and moves
// it to the output path.
func (w *Writer) Finalize(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != archive.StateOpen {
		return w.invalidState("finalize")
	}

	w.state = archive.StateFinalizing

	if err := ctx.Err(); err != nil {
		return w.abortWith(err)
	}

	if err := w.finalize(); err != nil {
		return w.abortWith(err)
	}

	w.state = archive.StateFinalized

	if err := w.handle.lock.Unlock(); err != nil {
		w.logger.WithError(err).Warningln("Failed to release output lock")
	}

	w.logger.WithFields(logrus.Fields{
		"output":  w.handle.outputPath,
		"entries": w.handle.counter.entries.Load(),
	}).Debugln("Archive finalized")

	return nil
}

func (w *Writer) finalize() error {
	h := w.handle

	if err := h.zw.Close(); err != nil {
		return w.writeError(err, "writing central directory")
	}

	if err := h.buf.Flush(); err != nil {
		return w.writeError(err, "flushing %s", h.tempPath)
	}

	h.progress.finish()

	if err := h.file.Sync(); err != nil {
		return w.writeError(err, "syncing %s", h.tempPath)
	}

	err := h.file.Close()
	h.file = nil
	if err != nil {
		return w.writeError(err, "closing %s", h.tempPath)
	}

	if err := os.Rename(h.tempPath, h.outputPath); err != nil {
		return w.writeError(err, "renaming %s", h.tempPath)
	}

	syncDir(filepath.Dir(h.outputPath))

	return nil
}

// syncDir persists the rename; not every platform can sync directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// Abort closes the output and removes the partial archive.
func (w *Writer) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case archive.StateFinalized, archive.StateAborted:
		return w.invalidState("abort")
	case archive.StateIdle:
		w.state = archive.StateAborted
		return nil
	}

	return w.abort()
}

// abortWith aborts and returns cause, logging cleanup failures.
func (w *Writer) abortWith(cause error) error {
	if err := w.abort(); err != nil {
		w.logger.WithError(err).Warningln("Failed to clean up partial archive")
	}

	return cause
}

func (w *Writer) abort() error {
	w.state = archive.StateAborted

	h := w.handle
	if h == nil {
		return nil
	}

	var result *multierror.Error

	h.progress.finish()

	if h.file != nil {
		if err := h.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			result = multierror.Append(result, err)
		}
		h.file = nil
	}

	if err := os.Remove(h.tempPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		result = multierror.Append(result, err)
	}

	if err := h.lock.Unlock(); err != nil {
		result = multierror.Append(result, err)
	}

	w.logger.WithField("output", h.outputPath).Debugln("Archive aborted")

	return result.ErrorOrNil()
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
