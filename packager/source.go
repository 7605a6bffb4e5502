package packager

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"gitlab.com/gitlab-org/deploy-packager/archive/source"
)

// SourceType selects how a Source contributes entries.
type SourceType string

const (
	DirectoryTree SourceType = "directory"
	SingleFile    SourceType = "file"
)

// Source is one input of the archive. Sources are packaged in the order they
// are given.
type Source struct {
	Type SourceType

	// Root and Prefix describe a DirectoryTree: every file under Root is
	// stored under Prefix.
	Root   string
	Prefix string
	// Exclude holds doublestar patterns matched against archive paths.
	Exclude []string

	// Path and ArchivePath describe a SingleFile.
	Path        string
	ArchivePath string
}

func DirectorySource(root, prefix string, exclude ...string) Source {
	return Source{Type: DirectoryTree, Root: root, Prefix: prefix, Exclude: exclude}
}

// FileSource stores the file at p as archivePath. An empty archivePath
// stores it under its base name.
func FileSource(p, archivePath string) Source {
	return Source{Type: SingleFile, Path: p, ArchivePath: archivePath}
}

func (s Source) String() string {
	if s.Type == SingleFile {
		return fmt.Sprintf("file %s:%s", s.Path, s.archivePath())
	}

	return fmt.Sprintf("directory %s:%s", s.Root, source.CleanPrefix(s.Prefix))
}

// Validate checks that the source is complete and its patterns compile.
func (s Source) Validate() error {
	switch s.Type {
	case DirectoryTree:
		if s.Root == "" {
			return fmt.Errorf("directory source: root is required")
		}

		for _, pattern := range s.Exclude {
			if !doublestar.ValidatePattern(pattern) {
				return fmt.Errorf("directory source %s: invalid exclude pattern %q", s.Root, pattern)
			}
		}
	case SingleFile:
		if s.Path == "" {
			return fmt.Errorf("file source: path is required")
		}

		if s.archivePath() == "" {
			return fmt.Errorf("file source %s: archive path is empty", s.Path)
		}
	default:
		return fmt.Errorf("source type %q is invalid (options: directory, file)", s.Type)
	}

	return nil
}

func (s Source) root() string {
	if s.Type == SingleFile {
		return s.Path
	}
	return s.Root
}

func (s Source) archivePath() string {
	p := s.ArchivePath
	if p == "" {
		p = filepath.Base(s.Path)
	}

	return source.CleanPrefix(p)
}

// excluded reports the first exclude pattern matching archivePath.
func (s Source) excluded(archivePath string) (string, bool) {
	for _, pattern := range s.Exclude {
		if ok, _ := doublestar.Match(pattern, archivePath); ok {
			return pattern, true
		}

		// a pattern matching a directory excludes everything below it
		for dir := path.Dir(archivePath); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if ok, _ := doublestar.Match(pattern, dir); ok {
				return pattern, true
			}
		}
	}

	return "", false
}
