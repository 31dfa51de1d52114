package flowfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/movsoftware/silk-sub021/internal/core/model"
)

var (
	// ErrNotAppendable rejects destinations that are not regular seekable
	// files: terminals, pipes, sockets, stdout targets.
	ErrNotAppendable = errors.New("destination is not appendable")

	// ErrIncompatibleFormat rejects mixing IPv6 records into an IPv4-only
	// destination. The whole transaction fails; the destination is left
	// byte-for-byte as it was.
	ErrIncompatibleFormat = errors.New("incompatible record format")
)

// AppendOptions controls destination creation.
type AppendOptions struct {
	// Create permits initializing a missing destination.
	Create bool

	// Template names an existing stream whose byte order, compression and
	// record format seed a created destination. Empty means DefaultHeader.
	Template string
}

// AppendResult reports the outcome of a committed append transaction.
type AppendResult struct {
	Appended uint64

	// Total is the destination's record count after commit, valid only when
	// TotalKnown: a destination that never carried a count keeps none.
	Total      uint64
	TotalKnown bool
}

// Append merges the records of sources, in order, onto the end of dst.
// Every appended record is re-encoded under the destination's byte order and
// compression; the destination's pre-existing bytes are never rewritten.
// Atomicity comes from staging: the merged stream is built in a temp file in
// the destination's directory and renamed over it only on success, so any
// failure leaves dst in its pre-transaction state.
func Append(dst string, sources []string, opts AppendOptions) (AppendResult, error) {
	hdr, existing, existingKnown, body, err := appendTarget(dst, opts)
	if err != nil {
		return AppendResult{}, err
	}
	if body != nil {
		defer body.Close()
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".flowappend-*")
	if err != nil {
		return AppendResult{}, err
	}
	tmpPath := tmp.Name()
	discard := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	// Stage: verbatim copy of the current destination (or a fresh header),
	// then new records appended behind it.
	if body != nil {
		if _, err := io.Copy(tmp, body); err != nil {
			discard()
			return AppendResult{}, err
		}
	} else {
		if _, err := tmp.Write(EncodeHeader(Header{
			ByteOrder:   hdr.ByteOrder,
			Compression: hdr.Compression,
			Format:      hdr.Format,
		})); err != nil {
			discard()
			return AppendResult{}, err
		}
	}

	w, err := continueWriter(tmp, hdr, existing, existingKnown)
	if err != nil {
		discard()
		return AppendResult{}, err
	}

	var appended uint64
	for _, src := range sources {
		n, err := appendSource(w, src, hdr.Format)
		if err != nil {
			discard()
			return AppendResult{}, fmt.Errorf("%s: %w", src, err)
		}
		appended += n
	}

	if err := w.Close(); err != nil {
		discard()
		return AppendResult{}, err
	}
	if err := tmp.Sync(); err != nil {
		discard()
		return AppendResult{}, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return AppendResult{}, err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return AppendResult{}, err
	}

	return AppendResult{
		Appended:   appended,
		Total:      existing + appended,
		TotalKnown: existingKnown,
	}, nil
}

// appendTarget resolves the destination's authoritative header, its current
// record count, and an open handle on its current bytes (nil when the
// destination is being created).
func appendTarget(dst string, opts AppendOptions) (Header, uint64, bool, io.ReadCloser, error) {
	fi, err := os.Stat(dst)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if !opts.Create {
			return Header{}, 0, false, nil, fmt.Errorf("destination %s: %w (pass create to initialize)", dst, err)
		}
		hdr := DefaultHeader()
		if opts.Template != "" {
			hdr, err = ReadHeaderFile(opts.Template)
			if err != nil {
				return Header{}, 0, false, nil, fmt.Errorf("template %s: %w", opts.Template, err)
			}
		}
		hdr.HasCount = false
		hdr.RecordCount = 0
		return hdr, 0, true, nil, nil
	case err != nil:
		return Header{}, 0, false, nil, err
	}

	if !fi.Mode().IsRegular() {
		return Header{}, 0, false, nil, fmt.Errorf("%w: %s", ErrNotAppendable, dst)
	}
	if fi.Size() == 0 {
		// A zero-byte file is an empty stream with no authoritative header;
		// it can only become a destination by explicit creation.
		if !opts.Create {
			return Header{}, 0, false, nil, fmt.Errorf("destination %s: %w: zero-byte stream", dst, ErrMalformedHeader)
		}
		hdr := DefaultHeader()
		if opts.Template != "" {
			hdr, err = ReadHeaderFile(opts.Template)
			if err != nil {
				return Header{}, 0, false, nil, fmt.Errorf("template %s: %w", opts.Template, err)
			}
		}
		hdr.HasCount = false
		hdr.RecordCount = 0
		return hdr, 0, true, nil, nil
	}

	f, err := os.Open(dst)
	if err != nil {
		return Header{}, 0, false, nil, err
	}
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		f.Close()
		return Header{}, 0, false, nil, fmt.Errorf("destination %s: %w", dst, ErrMalformedHeader)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		f.Close()
		return Header{}, 0, false, nil, fmt.Errorf("destination %s: %w", dst, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return Header{}, 0, false, nil, err
	}
	return hdr, hdr.RecordCount, hdr.HasCount, f, nil
}

// appendSource copies one source's records through the destination writer.
// An empty source is a no-op; an IPv6 source feeding an IPv4-only
// destination fails the transaction.
func appendSource(w *Writer, src string, dstFormat model.RecordFormat) (uint64, error) {
	rc, err := Open(src)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	if rc.Empty() {
		return 0, nil
	}
	if rc.Header().Format == model.FormatIPv6 && dstFormat == model.FormatIPv4 {
		return 0, fmt.Errorf("%w: %s records into %s destination",
			ErrIncompatibleFormat, rc.Header().Format, dstFormat)
	}

	var n uint64
	for {
		rec, err := rc.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return 0, err
		}
		if err := w.Write(&rec); err != nil {
			return 0, err
		}
		n++
	}
}

// ReadHeaderFile decodes just the header of a stream file.
func ReadHeaderFile(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return Header{}, fmt.Errorf("%s: %w", path, ErrMalformedHeader)
	}
	return DecodeHeader(buf)
}
