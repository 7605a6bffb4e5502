package archive

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"
	"time"
)

// CompressionLevel is the 0-9 knob trading CPU for output size. Zero stores
// entries uncompressed.
type CompressionLevel int

// Compression levels from no compression to the highest compression ratio.
const (
	StoreCompression   CompressionLevel = 0
	FastestCompression CompressionLevel = 1
	FastCompression    CompressionLevel = 3
	DefaultCompression CompressionLevel = 6
	SlowCompression    CompressionLevel = 7
	SlowestCompression CompressionLevel = 9
)

// ParseCompressionLevel converts either a number between 0 and 9 or one of the
// level names (store, fastest, fast, default, slow, slowest) to a level.
// An empty string selects SlowestCompression.
func ParseCompressionLevel(name string) (CompressionLevel, error) {
	trimmed := strings.ToLower(strings.TrimSpace(name))

	switch trimmed {
	case "", "slowest", "max":
		return SlowestCompression, nil
	case "store", "none":
		return StoreCompression, nil
	case "fastest":
		return FastestCompression, nil
	case "fast":
		return FastCompression, nil
	case "default":
		return DefaultCompression, nil
	case "slow":
		return SlowCompression, nil
	}

	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("compression level %q is invalid", name)
	}

	return CompressionLevel(n), CompressionLevel(n).Validate()
}

// Validate checks the level is within 0-9.
func (l CompressionLevel) Validate() error {
	if l < StoreCompression || l > SlowestCompression {
		return fmt.Errorf("compression level %d is out of range 0-9", l)
	}
	return nil
}

// Method is the zip compression method identifier of an entry.
type Method uint16

// Methods known to the compressors and the verifier.
const (
	Store   Method = 0
	Deflate Method = 8
	Zstd    Method = 93
)

var methodNames = map[Method]string{
	Store:   "store",
	Deflate: "deflate",
	Zstd:    "zstd",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return "method(" + strconv.Itoa(int(m)) + ")"
}

// ParseMethod converts a method name to a Method. An empty name selects
// Deflate.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "deflate":
		return Deflate, nil
	case "zstd":
		return Zstd, nil
	case "store":
		return Store, nil
	}

	return 0, fmt.Errorf("compression method %q is not supported (options: deflate, zstd, store)", name)
}

// EntryKind distinguishes file entries from directory entries.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDirectory
)

func (k EntryKind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// Entry is one logical file recorded inside the archive.
type Entry struct {
	// Path is "/"-separated, without a leading slash, and unique in the
	// archive. Directory paths have no trailing slash.
	Path string
	// Source is the filesystem path the body is read from.
	Source  string
	Kind    EntryKind
	Mode    os.FileMode
	ModTime time.Time
	Size    int64
}

// EntryStats describes the body of a written entry.
type EntryStats struct {
	CRC32            uint32
	UncompressedSize int64
	CompressedSize   int64
}

// Enumerator gives access to the sources of the archive.
//
//go:generate mockery --name=Enumerator --inpackage
type Enumerator interface {
	// Stat resolves a configured source path.
	Stat(path string) (os.FileInfo, error)
	// Walk lazily yields the entries under root, with paths joined to
	// prefix, in a deterministic order.
	Walk(ctx context.Context, root, prefix string) iter.Seq2[Entry, error]
	// Open opens the body of a file entry.
	Open(entry Entry) (io.ReadCloser, error)
}

// Compressor turns an entry body into a compressed stream.
//
//go:generate mockery --name=Compressor --inpackage
type Compressor interface {
	Method() Method
	Level() CompressionLevel
	Compress(r io.Reader) *CompressedStream
}

// State of an archive writer.
type State int

const (
	StateIdle State = iota
	StateOpen
	StateFinalizing
	StateFinalized
	StateAborted
)

var stateNames = map[State]string{
	StateIdle:       "idle",
	StateOpen:       "open",
	StateFinalizing: "finalizing",
	StateFinalized:  "finalized",
	StateAborted:    "aborted",
}

func (s State) String() string {
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateFinalized || s == StateAborted
}

// Writer owns the output archive.
//
//go:generate mockery --name=Writer --inpackage
type Writer interface {
	Open(ctx context.Context, outputPath string) error
	// AddEntry writes the entry in call order. Directory entries take a nil
	// body.
	AddEntry(ctx context.Context, entry Entry, body *CompressedStream) (EntryStats, error)
	Finalize(ctx context.Context) error
	// Abort closes the output and removes anything written so far.
	Abort() error
	State() State
}
