package flowfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/movsoftware/silk-sub021/internal/compress"
	"github.com/movsoftware/silk-sub021/internal/core/model"
)

// blockTarget is the uncompressed block size the writer aims for when the
// stream carries a compression codec. Blocks are independent, so appended
// streams can simply continue with new blocks.
const blockTarget = 64 << 10

// Writer emits one stream: header first, then records in the order given.
// The header's record count is finalized at Close, and only when the sink
// is seekable; a stream cut short by abnormal termination is left without a
// count (and, under compression, with a truncated final block), never as a
// silently-complete file.
type Writer struct {
	dst    io.Writer
	hdr    Header
	codec  compress.Codec
	buf    []byte
	count  uint64
	closed bool

	// seekable records whether dst can really seek back to the header. An
	// *os.File on a pipe or terminal satisfies io.WriteSeeker but fails any
	// Seek with ESPIPE, so the interface assertion alone is not enough.
	seekable bool

	// skipCount suppresses header finalization when the true total is
	// unknowable, e.g. appending to a stream that carries no count.
	skipCount bool
}

// NewWriter writes hdr to dst and returns a Writer for its records.
func NewWriter(dst io.Writer, hdr Header) (*Writer, error) {
	w, err := newWriter(dst, hdr)
	if err != nil {
		return nil, err
	}
	hdr.HasCount = false
	hdr.RecordCount = 0
	if _, err := dst.Write(EncodeHeader(hdr)); err != nil {
		return nil, err
	}
	return w, nil
}

// continueWriter returns a Writer that appends to a stream whose header is
// already in place, carrying forward the number of records before it. When
// that number is unknown the finalized header keeps no count either.
func continueWriter(dst io.Writer, hdr Header, existing uint64, known bool) (*Writer, error) {
	w, err := newWriter(dst, hdr)
	if err != nil {
		return nil, err
	}
	w.count = existing
	w.skipCount = !known
	return w, nil
}

func newWriter(dst io.Writer, hdr Header) (*Writer, error) {
	if RecordLength(hdr.Format) == 0 {
		return nil, fmt.Errorf("%w: format id %d", ErrUnsupportedRecordFormat, hdr.Format)
	}
	w := &Writer{dst: dst, hdr: hdr}
	if hdr.Compression != compress.None {
		codec, err := compress.Lookup(hdr.Compression)
		if err != nil {
			return nil, err
		}
		w.codec = codec
	}
	if ws, ok := dst.(io.WriteSeeker); ok {
		if _, err := ws.Seek(0, io.SeekCurrent); err == nil {
			w.seekable = true
		}
	}
	return w, nil
}

// Header returns the header this writer encodes records under.
func (w *Writer) Header() Header { return w.hdr }

// Count returns the number of records written so far, including any records
// already present when appending.
func (w *Writer) Count() uint64 { return w.count }

// Write encodes one record under the stream's byte order and format.
func (w *Writer) Write(rec *model.FlowRecord) error {
	if w.closed {
		return fmt.Errorf("write on closed stream")
	}
	raw, err := EncodeRecord(rec, w.hdr.ByteOrder, w.hdr.Format)
	if err != nil {
		return fmt.Errorf("record %d: %w", w.count, err)
	}
	w.count++
	if w.codec == nil {
		_, err := w.dst.Write(raw)
		return err
	}
	w.buf = append(w.buf, raw...)
	if len(w.buf) >= blockTarget {
		return w.flushBlock()
	}
	return nil
}

func (w *Writer) flushBlock() error {
	if len(w.buf) == 0 {
		return nil
	}
	if err := compress.WriteBlock(w.dst, w.codec, w.buf); err != nil {
		return err
	}
	w.buf = w.buf[:0]
	return nil
}

// Close flushes any pending block and, when the sink allows seeking back to
// the header, finalizes the record count. Close does not close the
// underlying sink.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.flushBlock(); err != nil {
		return err
	}
	if !w.seekable || w.skipCount {
		return nil
	}
	ws := w.dst.(io.WriteSeeker)
	w.hdr.HasCount = true
	w.hdr.RecordCount = w.count
	if _, err := ws.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := ws.Write(EncodeHeader(w.hdr)); err != nil {
		return err
	}
	_, err := ws.Seek(0, io.SeekEnd)
	return err
}

// FileWriter writes a stream to a path through a staging file in the same
// directory, renamed over the target only on a successful Close. An aborted
// or crashed write leaves the target absent or untouched, never partially
// written.
type FileWriter struct {
	*Writer
	f    *os.File
	tmp  string
	path string
	done bool
}

// Create stages a new stream destined for path.
func Create(path string, hdr Header) (*FileWriter, error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".flowstream-*")
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, hdr)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &FileWriter{Writer: w, f: f, tmp: f.Name(), path: path}, nil
}

// Close finalizes the stream and moves it into place.
func (fw *FileWriter) Close() error {
	if fw.done {
		return nil
	}
	fw.done = true
	if err := fw.Writer.Close(); err != nil {
		fw.discard()
		return err
	}
	if err := fw.f.Sync(); err != nil {
		fw.discard()
		return err
	}
	if err := fw.f.Close(); err != nil {
		os.Remove(fw.tmp)
		return err
	}
	return os.Rename(fw.tmp, fw.path)
}

// Abort drops the staged file, leaving the target path untouched.
func (fw *FileWriter) Abort() {
	if fw.done {
		return
	}
	fw.done = true
	fw.discard()
}

func (fw *FileWriter) discard() {
	fw.f.Close()
	os.Remove(fw.tmp)
}
