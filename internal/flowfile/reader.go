package flowfile

import (
	"fmt"
	"io"
	"os"

	"github.com/movsoftware/silk-sub021/internal/compress"
	"github.com/movsoftware/silk-sub021/internal/core/model"
)

// Reader is a lazy, forward-only view of one stream. It is single-pass:
// once a record has been consumed there is no way back, consistent with
// pipe sources.
type Reader struct {
	src   io.Reader
	hdr   Header
	empty bool

	codec   compress.Codec // nil when the body is uncompressed
	pending []byte
	pos     int

	count uint64
}

// NewReader consumes and validates the stream header from src. A zero-byte
// source is a legitimate empty stream: the returned Reader reports Empty and
// yields no records.
func NewReader(src io.Reader) (*Reader, error) {
	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(src, buf)
	if err == io.EOF && n == 0 {
		return &Reader{src: src, empty: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %d-byte source", ErrMalformedHeader, n)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return nil, err
	}
	r := &Reader{src: src, hdr: hdr}
	if hdr.Compression != compress.None {
		if r.codec, err = compress.Lookup(hdr.Compression); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Open opens a stream file for reading. The caller closes the returned
// ReadCloser when done.
func Open(path string) (*ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &ReadCloser{Reader: r, c: f}, nil
}

// ReadCloser is a Reader bound to an underlying file.
type ReadCloser struct {
	*Reader
	c io.Closer
}

func (rc *ReadCloser) Close() error { return rc.c.Close() }

// Empty reports whether the source was zero bytes long (no header at all).
func (r *Reader) Empty() bool { return r.empty }

// Header returns the decoded stream header. Meaningless for empty sources.
func (r *Reader) Header() Header { return r.hdr }

// Count returns the number of records consumed so far.
func (r *Reader) Count() uint64 { return r.count }

// Next returns the next record, or io.EOF at a clean end of stream. A body
// that ends mid-record is TruncatedRecord; a per-record decode failure
// aborts the whole read rather than skipping, since flow counts are
// security-relevant.
func (r *Reader) Next() (model.FlowRecord, error) {
	if r.empty {
		return model.FlowRecord{}, io.EOF
	}
	width := r.hdr.RecordLength()
	raw, err := r.nextChunk(width)
	if err != nil {
		return model.FlowRecord{}, err
	}
	rec, err := DecodeRecord(raw, r.hdr.ByteOrder, r.hdr.Format)
	if err != nil {
		return model.FlowRecord{}, fmt.Errorf("record %d: %w", r.count, err)
	}
	r.count++
	return rec, nil
}

// nextChunk yields the next width bytes of body, refilling from compressed
// blocks when the stream carries a codec.
func (r *Reader) nextChunk(width int) ([]byte, error) {
	if r.codec == nil {
		buf := make([]byte, width)
		n, err := io.ReadFull(r.src, buf)
		if err == io.EOF {
			return nil, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: %d trailing bytes after record %d", ErrTruncatedRecord, n, r.count)
		}
		if err != nil {
			return nil, err
		}
		return buf, nil
	}

	for len(r.pending)-r.pos < width {
		block, err := compress.ReadBlock(r.src, r.codec)
		if err == io.EOF {
			if len(r.pending)-r.pos == 0 {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%w: %d trailing bytes after record %d",
				ErrTruncatedRecord, len(r.pending)-r.pos, r.count)
		}
		if err != nil {
			return nil, err
		}
		// Compact consumed bytes before growing the pending buffer.
		if r.pos > 0 {
			r.pending = append(r.pending[:0], r.pending[r.pos:]...)
			r.pos = 0
		}
		r.pending = append(r.pending, block...)
	}
	chunk := r.pending[r.pos : r.pos+width]
	r.pos += width
	return chunk, nil
}

// ReadAll drains the stream into memory. Intended for tests and small
// inputs; tools stream record by record instead.
func ReadAll(r *Reader) ([]model.FlowRecord, error) {
	var records []model.FlowRecord
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}
