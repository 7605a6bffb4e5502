// Package compressor provides the per-entry compressors of the zip writer.
package compressor

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"

	"gitlab.com/gitlab-org/deploy-packager/archive"
)

var zstdLevels = map[archive.CompressionLevel]zstd.EncoderLevel{
	1: zstd.SpeedFastest,
	2: zstd.SpeedFastest,
	3: zstd.SpeedDefault,
	4: zstd.SpeedDefault,
	5: zstd.SpeedDefault,
	6: zstd.SpeedBetterCompression,
	7: zstd.SpeedBetterCompression,
	8: zstd.SpeedBetterCompression,
	9: zstd.SpeedBestCompression,
}

// Compressor compresses entry bodies with one method and level.
type Compressor struct {
	method archive.Method
	level  archive.CompressionLevel
	fn     archive.WriterFunc
}

// New returns a compressor for method at level. Level 0 always stores the
// entries, whatever the method.
func New(method archive.Method, level archive.CompressionLevel) (*Compressor, error) {
	if err := level.Validate(); err != nil {
		return nil, err
	}

	if level == archive.StoreCompression {
		method = archive.Store
	}

	c := &Compressor{method: method, level: level}

	switch method {
	case archive.Store:
		c.fn = storeWriter
	case archive.Deflate:
		c.fn = newFlateWriterFunc(int(level))
	case archive.Zstd:
		c.fn = zstd.ZipCompressor(
			zstd.WithEncoderLevel(zstdLevels[level]),
			zstd.WithEncoderConcurrency(1),
			zstd.WithZeroFrames(true),
		)
	default:
		return nil, fmt.Errorf("compression method %s is not supported", method)
	}

	return c, nil
}

// Method is the zip method written for every entry.
func (c *Compressor) Method() archive.Method {
	return c.method
}

// Level is the configured compression level.
func (c *Compressor) Level() archive.CompressionLevel {
	return c.level
}

// Compress starts compressing r. The returned stream must be closed.
func (c *Compressor) Compress(r io.Reader) *archive.CompressedStream {
	return archive.NewCompressedStream(r, c.method, c.fn)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func storeWriter(w io.Writer) (io.WriteCloser, error) {
	return nopCloser{w}, nil
}

// pooledFlateWriter returns the flate writer to its pool on Close.
type pooledFlateWriter struct {
	*flate.Writer
	pool *sync.Pool
}

func (w *pooledFlateWriter) Close() error {
	err := w.Writer.Close()
	w.pool.Put(w.Writer)
	w.Writer = nil
	return err
}

func newFlateWriterFunc(level int) archive.WriterFunc {
	pool := new(sync.Pool)

	return func(w io.Writer) (io.WriteCloser, error) {
		if fw, ok := pool.Get().(*flate.Writer); ok {
			fw.Reset(w)
			return &pooledFlateWriter{Writer: fw, pool: pool}, nil
		}

		fw, err := flate.NewWriter(w, level)
		if err != nil {
			return nil, err
		}

		return &pooledFlateWriter{Writer: fw, pool: pool}, nil
	}
}
