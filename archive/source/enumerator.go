// Package source enumerates the files of the configured archive sources.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"gitlab.com/gitlab-org/deploy-packager/archive"
)

// SymlinkPolicy selects how symbolic links found in a directory tree are
// handled.
type SymlinkPolicy string

const (
	SymlinkSkip   SymlinkPolicy = "skip"
	SymlinkFollow SymlinkPolicy = "follow"
	SymlinkError  SymlinkPolicy = "error"
)

// ParseSymlinkPolicy converts a policy name. An empty name selects
// SymlinkSkip.
func ParseSymlinkPolicy(name string) (SymlinkPolicy, error) {
	switch p := SymlinkPolicy(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return SymlinkSkip, nil
	case SymlinkSkip, SymlinkFollow, SymlinkError:
		return p, nil
	}

	return "", fmt.Errorf("symlink policy %q is invalid (options: skip, follow, error)", name)
}

type Option func(*Enumerator)

// WithSymlinks sets the symlink policy.
func WithSymlinks(policy SymlinkPolicy) Option {
	return func(e *Enumerator) {
		e.symlinks = policy
	}
}

// WithDirectories makes Walk yield an entry for every directory, before its
// children.
func WithDirectories(enabled bool) Option {
	return func(e *Enumerator) {
		e.directories = enabled
	}
}

// WithModTime overrides the modification time of every entry.
func WithModTime(t time.Time) Option {
	return func(e *Enumerator) {
		e.modTime = t
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Enumerator) {
		e.logger = logger
	}
}

// Enumerator reads sources from the local filesystem.
type Enumerator struct {
	symlinks    SymlinkPolicy
	directories bool
	modTime     time.Time
	logger      logrus.FieldLogger
}

func New(opts ...Option) *Enumerator {
	e := &Enumerator{
		symlinks: SymlinkSkip,
		logger:   logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func statError(err error, p string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return archive.Errorf(archive.ErrSourceNotFound, err, "%s", p)
	}

	return archive.Errorf(archive.ErrRead, err, "%s", p)
}

// Stat resolves a source path, following symbolic links.
func (e *Enumerator) Stat(p string) (os.FileInfo, error) {
	fi, err := os.Stat(p)
	if err != nil {
		return nil, statError(err, p)
	}

	return fi, nil
}

// Open opens the body of a file entry.
func (e *Enumerator) Open(entry archive.Entry) (io.ReadCloser, error) {
	if entry.Kind != archive.KindFile {
		return nil, archive.Errorf(archive.ErrRead, nil, "%s: %s entry has no body", entry.Path, entry.Kind)
	}

	f, err := os.Open(entry.Source)
	if err != nil {
		return nil, statError(err, entry.Source)
	}

	return f, nil
}

// Walk yields every regular file under root. Inside a directory files come
// first in lexical order, then subdirectories in lexical order.
func (e *Enumerator) Walk(ctx context.Context, root, prefix string) iter.Seq2[archive.Entry, error] {
	return func(yield func(archive.Entry, error) bool) {
		fi, err := os.Stat(root)
		if err != nil {
			yield(archive.Entry{}, statError(err, root))
			return
		}

		if !fi.IsDir() {
			yield(archive.Entry{}, archive.Errorf(archive.ErrRead, nil, "%s: not a directory", root))
			return
		}

		w := &walker{
			Enumerator: e,
			ctx:        ctx,
			yield:      yield,
			ancestors:  make(map[string]bool),
		}

		if real, err := filepath.EvalSymlinks(root); err == nil {
			w.ancestors[real] = true
		}

		w.walkDir(root, CleanPrefix(prefix))
	}
}

// CleanPrefix normalizes an archive prefix to a "/"-separated path without
// leading or trailing slashes.
func CleanPrefix(prefix string) string {
	prefix = path.Clean("/" + filepath.ToSlash(prefix))
	return strings.TrimPrefix(prefix, "/")
}

type walker struct {
	*Enumerator

	ctx       context.Context
	yield     func(archive.Entry, error) bool
	ancestors map[string]bool
}

type child struct {
	source string
	path   string
	info   os.FileInfo
}

func (w *walker) fail(err error) bool {
	w.yield(archive.Entry{}, err)
	return false
}

func (w *walker) entry(c child, kind archive.EntryKind) archive.Entry {
	modTime := c.info.ModTime()
	if !w.modTime.IsZero() {
		modTime = w.modTime
	}

	size := c.info.Size()
	if kind == archive.KindDirectory {
		size = 0
	}

	return archive.Entry{
		Path:    c.path,
		Source:  c.source,
		Kind:    kind,
		Mode:    c.info.Mode(),
		ModTime: modTime,
		Size:    size,
	}
}

// resolve applies the symlink policy. A nil info with a nil error means the
// child is skipped.
func (w *walker) resolve(source string, info os.FileInfo) (os.FileInfo, error) {
	if info.Mode()&os.ModeSymlink == 0 {
		return info, nil
	}

	switch w.symlinks {
	case SymlinkFollow:
		target, err := os.Stat(source)
		if err != nil {
			return nil, archive.Errorf(archive.ErrRead, err, "following symlink %s", source)
		}
		return target, nil
	case SymlinkError:
		return nil, archive.Errorf(archive.ErrRead, nil, "%s: symbolic links are not allowed", source)
	default:
		w.logger.WithField("path", source).Warningln("File ignored: symbolic link")
		return nil, nil
	}
}

func (w *walker) list(dir, archiveDir string) (files, dirs []child, err error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, archive.Errorf(archive.ErrRead, err, "listing %s", dir)
	}

	for _, d := range dirents {
		source := filepath.Join(dir, d.Name())

		info, err := d.Info()
		if err != nil {
			return nil, nil, archive.Errorf(archive.ErrRead, err, "%s", source)
		}

		info, err = w.resolve(source, info)
		if err != nil {
			return nil, nil, err
		}
		if info == nil {
			continue
		}

		c := child{source: source, path: path.Join(archiveDir, d.Name()), info: info}

		switch {
		case info.IsDir():
			dirs = append(dirs, c)
		case info.Mode().IsRegular():
			files = append(files, c)
		default:
			// pipes, sockets and devices have no archivable content
			w.logger.WithField("path", source).Warningln("File ignored:", info.Mode().Type())
		}
	}

	return files, dirs, nil
}

func (w *walker) walkDir(dir, archiveDir string) bool {
	if err := w.ctx.Err(); err != nil {
		return w.fail(err)
	}

	files, dirs, err := w.list(dir, archiveDir)
	if err != nil {
		return w.fail(err)
	}

	for _, f := range files {
		if !w.yield(w.entry(f, archive.KindFile), nil) {
			return false
		}
	}

	for _, d := range dirs {
		if !w.walkSubdir(d) {
			return false
		}
	}

	return true
}

func (w *walker) walkSubdir(d child) bool {
	real, err := filepath.EvalSymlinks(d.source)
	if err != nil {
		return w.fail(archive.Errorf(archive.ErrRead, err, "%s", d.source))
	}

	if w.ancestors[real] {
		return w.fail(archive.Errorf(archive.ErrRead, nil, "%s: symlink cycle to %s", d.source, real))
	}

	w.ancestors[real] = true
	defer delete(w.ancestors, real)

	if w.directories && !w.yield(w.entry(d, archive.KindDirectory), nil) {
		return false
	}

	return w.walkDir(d.source, d.path)
}
