package zipfile

import (
	"archive/zip"
	"context"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"

	"gitlab.com/gitlab-org/deploy-packager/archive"
)

// Summary describes a verified archive.
type Summary struct {
	Entries          int
	Directories      int
	UncompressedSize int64
	CompressedSize   int64

	// Files lists the file entries in archive order.
	Files []FileInfo
}

type FileInfo struct {
	Path             string
	Method           archive.Method
	CRC32            uint32
	UncompressedSize int64
	CompressedSize   int64
	Modified         time.Time
}

// NewReader opens a zip file with decompressors for every method the writer
// can produce.
func NewReader(path string) (*zip.ReadCloser, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}

	r.RegisterDecompressor(uint16(archive.Deflate), flate.NewReader)
	r.RegisterDecompressor(uint16(archive.Zstd), zstd.ZipDecompressor())

	return r, nil
}

// Verify decompresses every entry of the archive at path, checking the
// recorded checksums and sizes and that no path appears twice.
func Verify(ctx context.Context, path string) (*Summary, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, archive.Errorf(archive.ErrRead, err, "opening %s", path)
	}
	defer r.Close()

	summary := new(Summary)
	seen := make(map[string]struct{}, len(r.File))

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if _, ok := seen[f.Name]; ok {
			return nil, archive.Errorf(archive.ErrDuplicateEntry, nil, "%s", f.Name)
		}
		seen[f.Name] = struct{}{}

		if strings.HasSuffix(f.Name, "/") {
			summary.Directories++
			continue
		}

		if err := verifyFile(f); err != nil {
			return nil, err
		}

		summary.Entries++
		summary.Files = append(summary.Files, FileInfo{
			Path:             f.Name,
			Method:           archive.Method(f.Method),
			CRC32:            f.CRC32,
			UncompressedSize: int64(f.UncompressedSize64),
			CompressedSize:   int64(f.CompressedSize64),
			Modified:         f.Modified,
		})
		summary.UncompressedSize += int64(f.UncompressedSize64)
		summary.CompressedSize += int64(f.CompressedSize64)
	}

	return summary, nil
}

// verifyFile relies on archive/zip comparing the CRC-32 and size once the
// entry is read to EOF.
func verifyFile(f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return archive.Errorf(archive.ErrRead, err, "opening entry %s", f.Name)
	}
	defer rc.Close()

	n, err := io.Copy(io.Discard, rc)
	if err != nil {
		return archive.Errorf(archive.ErrRead, err, "reading entry %s", f.Name)
	}

	if uint64(n) != f.UncompressedSize64 {
		return archive.Errorf(archive.ErrRead, nil, "entry %s: read %d bytes, expected %d", f.Name, n, f.UncompressedSize64)
	}

	return nil
}
