//go:build !integration

package packager

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"iter"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"gitlab.com/gitlab-org/deploy-packager/archive"
)

var fakeModTime = time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)

type fakeFileInfo struct {
	name string
	size int64
	mode os.FileMode
}

func (fi fakeFileInfo) Name() string       { return fi.name }
func (fi fakeFileInfo) Size() int64        { return fi.size }
func (fi fakeFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi fakeFileInfo) ModTime() time.Time { return fakeModTime }
func (fi fakeFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi fakeFileInfo) Sys() interface{}   { return nil }

// fakeEnumerator serves an in-memory tree. Keys of files are "/"-separated
// source paths.
type fakeEnumerator struct {
	files map[string]string
	// walkErr is yielded after the file at walkErrAfter
	walkErr      error
	walkErrAfter string
}

func newFakeEnumerator(files map[string]string) *fakeEnumerator {
	return &fakeEnumerator{files: files}
}

func (f *fakeEnumerator) isDir(p string) bool {
	for name := range f.files {
		if strings.HasPrefix(name, p+"/") {
			return true
		}
	}
	return false
}

func (f *fakeEnumerator) Stat(p string) (os.FileInfo, error) {
	if content, ok := f.files[p]; ok {
		return fakeFileInfo{name: path.Base(p), size: int64(len(content)), mode: 0o644}, nil
	}

	if f.isDir(p) {
		return fakeFileInfo{name: path.Base(p), mode: os.ModeDir | 0o755}, nil
	}

	return nil, archive.Errorf(archive.ErrSourceNotFound, fs.ErrNotExist, "%s", p)
}

// Walk yields files before subdirectories, like the filesystem enumerator.
func (f *fakeEnumerator) Walk(ctx context.Context, root, prefix string) iter.Seq2[archive.Entry, error] {
	return func(yield func(archive.Entry, error) bool) {
		var names []string
		for name := range f.files {
			if strings.HasPrefix(name, root+"/") {
				names = append(names, strings.TrimPrefix(name, root+"/"))
			}
		}

		sort.Slice(names, func(i, j int) bool {
			di, dj := strings.Count(names[i], "/"), strings.Count(names[j], "/")
			if di != dj {
				return di < dj
			}
			return names[i] < names[j]
		})

		for _, rel := range names {
			if err := ctx.Err(); err != nil {
				yield(archive.Entry{}, err)
				return
			}

			source := root + "/" + rel
			entry := archive.Entry{
				Path:    path.Join(prefix, rel),
				Source:  source,
				Kind:    archive.KindFile,
				Mode:    0o644,
				ModTime: fakeModTime,
				Size:    int64(len(f.files[source])),
			}

			if !yield(entry, nil) {
				return
			}

			if f.walkErr != nil && source == f.walkErrAfter {
				yield(archive.Entry{}, f.walkErr)
				return
			}
		}
	}
}

func (f *fakeEnumerator) Open(entry archive.Entry) (io.ReadCloser, error) {
	content, ok := f.files[entry.Source]
	if !ok {
		return nil, archive.Errorf(archive.ErrSourceNotFound, fs.ErrNotExist, "%s", entry.Source)
	}

	return io.NopCloser(strings.NewReader(content)), nil
}

type storeCompressor struct{}

func (storeCompressor) Method() archive.Method { return archive.Store }

func (storeCompressor) Level() archive.CompressionLevel { return archive.StoreCompression }

func (storeCompressor) Compress(r io.Reader) *archive.CompressedStream {
	return archive.NewCompressedStream(r, archive.Store, func(w io.Writer) (io.WriteCloser, error) {
		return nopWriteCloser{w}, nil
	})
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// fakeWriter keeps entries in memory and writes their concatenated bodies to
// the output path on Finalize.
type fakeWriter struct {
	mu sync.Mutex

	state   archive.State
	output  string
	entries []archive.Entry
	bodies  map[string]string

	addErr      error
	addErrAt    int
	finalizeErr error
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{bodies: make(map[string]string)}
}

func (w *fakeWriter) Open(ctx context.Context, outputPath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != archive.StateIdle {
		return archive.ErrInvalidState
	}

	w.output = outputPath
	w.state = archive.StateOpen

	return ctx.Err()
}

func (w *fakeWriter) AddEntry(ctx context.Context, entry archive.Entry, body *archive.CompressedStream) (archive.EntryStats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != archive.StateOpen {
		return archive.EntryStats{}, archive.ErrInvalidState
	}

	if err := ctx.Err(); err != nil {
		return archive.EntryStats{}, err
	}

	if _, ok := w.bodies[entry.Path]; ok {
		return archive.EntryStats{}, archive.ErrDuplicateEntry
	}

	if w.addErr != nil && len(w.entries) == w.addErrAt {
		return archive.EntryStats{}, w.addErr
	}

	var stats archive.EntryStats
	var content []byte
	if body != nil {
		var err error
		content, err = io.ReadAll(body)
		if err != nil {
			return archive.EntryStats{}, err
		}

		stats, err = body.Stats()
		if err != nil {
			return archive.EntryStats{}, err
		}
	}

	w.entries = append(w.entries, entry)
	w.bodies[entry.Path] = string(content)

	return stats, nil
}

func (w *fakeWriter) Finalize(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != archive.StateOpen {
		return archive.ErrInvalidState
	}

	if w.finalizeErr != nil {
		w.state = archive.StateAborted
		return w.finalizeErr
	}

	var buf bytes.Buffer
	for _, e := range w.entries {
		buf.WriteString(w.bodies[e.Path])
	}

	if err := os.WriteFile(w.output, buf.Bytes(), 0o644); err != nil {
		return err
	}

	w.state = archive.StateFinalized

	return nil
}

func (w *fakeWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state.Terminal() {
		return archive.ErrInvalidState
	}

	w.state = archive.StateAborted

	return nil
}

func (w *fakeWriter) State() archive.State {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.state
}

func (w *fakeWriter) paths() []string {
	paths := make([]string, 0, len(w.entries))
	for _, e := range w.entries {
		paths = append(paths, e.Path)
	}
	return paths
}
