package archive

import (
	"hash/crc32"
	"io"
	"sync"
)

// WriterFunc returns a compressing writer emitting to w. Closing it must
// flush every compressed byte to w.
type WriterFunc func(w io.Writer) (io.WriteCloser, error)

// CompressedStream is the compressed form of one entry body. The compression
// runs in a goroutine coupled to the reader by an io.Pipe, so the source is
// only consumed as fast as the compressed bytes are read.
type CompressedStream struct {
	method Method
	pr     *io.PipeReader

	done  chan struct{}
	stats EntryStats
	err   error

	closeOnce sync.Once
}

// NewCompressedStream starts compressing src with the writer returned by fn.
// The stream must be closed once consumed.
func NewCompressedStream(src io.Reader, method Method, fn WriterFunc) *CompressedStream {
	pr, pw := io.Pipe()

	s := &CompressedStream{
		method: method,
		pr:     pr,
		done:   make(chan struct{}),
	}

	go s.produce(src, pw, fn)

	return s
}

func (s *CompressedStream) produce(src io.Reader, pw *io.PipeWriter, fn WriterFunc) {
	out := &countingWriter{w: pw}
	in := &sourceReader{r: src}
	hash := crc32.NewIEEE()

	err := func() error {
		zw, err := fn(out)
		if err != nil {
			return err
		}

		n, err := io.Copy(zw, io.TeeReader(in, hash))
		s.stats.UncompressedSize = n
		if err != nil {
			_ = zw.Close()
			return err
		}

		return zw.Close()
	}()

	if in.err != nil {
		err = Errorf(ErrRead, in.err, "reading entry body")
	}

	s.stats.CRC32 = hash.Sum32()
	s.stats.CompressedSize = out.n
	s.err = err
	close(s.done)

	_ = pw.CloseWithError(err)
}

// Method is the zip method of the compressed bytes.
func (s *CompressedStream) Method() Method {
	return s.method
}

func (s *CompressedStream) Read(p []byte) (int, error) {
	return s.pr.Read(p)
}

// Stats returns the checksum and sizes of the entry. It is only valid once
// Read returned io.EOF.
func (s *CompressedStream) Stats() (EntryStats, error) {
	select {
	case <-s.done:
		return s.stats, s.err
	default:
		return EntryStats{}, Errorf(ErrInvalidState, nil, "compressed stream was not fully read")
	}
}

// Close stops the compression and waits for the goroutine to return. The
// source can be closed safely afterwards.
func (s *CompressedStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.pr.Close()
		<-s.done
	})

	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// sourceReader remembers read failures of the source so they are not
// confused with a closed consumer.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}
