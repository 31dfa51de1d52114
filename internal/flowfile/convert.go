package flowfile

import (
	"io"

	"github.com/movsoftware/silk-sub021/internal/compress"
	"github.com/movsoftware/silk-sub021/internal/core/model"
)

// ConvertOptions selects the target encoding of a rewritten stream.
type ConvertOptions struct {
	Order model.ByteOrder

	// Compression overrides the source's method when non-nil; otherwise the
	// method is preserved.
	Compression *compress.Method
}

// Convert rewrites src's stream under the target byte order, re-encoding
// every record. When the target encoding equals the source's, the stream is
// copied verbatim so a no-op conversion is a byte-identical round trip.
// A zero-byte source converts to zero bytes.
//
// The returned count is valid only when known is true: a verbatim copy of a
// compressed stream with no count trailer passes through without decoding,
// so its record count stays unknown.
func Convert(src io.Reader, dst io.Writer, opts ConvertOptions) (n uint64, known bool, err error) {
	r, err := NewReader(src)
	if err != nil {
		return 0, false, err
	}
	return ConvertStream(r, dst, opts)
}

// ConvertStream is Convert over an already-open Reader, for callers that
// needed the source header first (e.g. to compute a swapped target order).
// No records may have been consumed from r.
func ConvertStream(r *Reader, dst io.Writer, opts ConvertOptions) (n uint64, known bool, err error) {
	if r.Empty() {
		return 0, true, nil
	}

	hdr := r.Header()
	method := hdr.Compression
	if opts.Compression != nil {
		method = *opts.Compression
	}

	if opts.Order == hdr.ByteOrder && method == hdr.Compression {
		// Identical target encoding: pass the body through untouched.
		if _, err := dst.Write(EncodeHeader(hdr)); err != nil {
			return 0, false, err
		}
		copied, err := io.Copy(dst, r.src)
		if err != nil {
			return 0, false, err
		}
		switch {
		case hdr.HasCount:
			return hdr.RecordCount, true, nil
		case method == compress.None:
			// A raw body is records back to back.
			return uint64(copied) / uint64(hdr.RecordLength()), true, nil
		default:
			return 0, false, nil
		}
	}

	out := Header{
		ByteOrder:   opts.Order,
		Compression: method,
		Format:      hdr.Format,
	}
	w, err := NewWriter(dst, out)
	if err != nil {
		return 0, false, err
	}
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, false, err
		}
		if err := w.Write(&rec); err != nil {
			return 0, false, err
		}
	}
	if err := w.Close(); err != nil {
		return 0, false, err
	}
	return w.Count(), true, nil
}
