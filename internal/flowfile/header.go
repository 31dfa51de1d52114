// Package flowfile implements the flow-stream container format: the fixed
// file header, the fixed-layout record codec, single-pass stream readers and
// writers over arbitrary byte sources, and the append and byte-order
// conversion engines built on top of them.
//
// A stream is laid out as [header][body]: the header is always encoded in
// network order, while the body - raw records, or compressed blocks of
// records - follows the byte order and compression method the header
// declares.
package flowfile

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/movsoftware/silk-sub021/internal/compress"
	"github.com/movsoftware/silk-sub021/internal/core/model"
)

const (
	// Magic identifies a flow stream. It is stored big-endian regardless of
	// the body's declared byte order, so a reader can always recognize it.
	Magic uint32 = 0xDEADBEEF

	// FileVersion is the only container layout this package reads or writes.
	FileVersion = 1

	// HeaderSize is fixed and independent of record count, so metadata
	// inspection never needs to touch the body.
	HeaderSize = 24
)

// Header flag bits.
const (
	// flagHasCount marks the trailing record count field as valid. Streams
	// written to pipes never get it; file writers set it at close.
	flagHasCount = 0x0001
)

var (
	ErrMalformedHeader         = errors.New("malformed stream header")
	ErrUnsupportedCompression  = errors.New("unsupported compression method")
	ErrUnsupportedRecordFormat = errors.New("unsupported record format")
)

// Header describes one stream: identity, body encoding, and the optional
// finalized record count.
type Header struct {
	ByteOrder   model.ByteOrder
	Compression compress.Method
	Format      model.RecordFormat

	// RecordCount is valid only when HasCount is set.
	RecordCount uint64
	HasCount    bool
}

// DefaultHeader is the platform default used when creating a stream with no
// template: big-endian, uncompressed, IPv4-only records.
func DefaultHeader() Header {
	return Header{ByteOrder: model.BigEndian, Compression: compress.None, Format: model.FormatIPv4}
}

// RecordLength returns the encoded width of one record under this header's
// format.
func (h Header) RecordLength() int {
	return RecordLength(h.Format)
}

// EncodeHeader serializes a header into its fixed 24-byte form. All header
// fields are network order; the declared byte order applies to the body
// only.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], Magic)
	buf[4] = FileVersion
	buf[5] = uint8(h.ByteOrder)
	buf[6] = uint8(h.Compression)
	buf[7] = uint8(h.Format)
	binary.BigEndian.PutUint16(buf[8:10], uint16(h.RecordLength()))
	var flags uint16
	if h.HasCount {
		flags |= flagHasCount
		binary.BigEndian.PutUint64(buf[16:24], h.RecordCount)
	}
	binary.BigEndian.PutUint16(buf[10:12], flags)
	return buf
}

// DecodeHeader parses and validates a fixed-size header. The magic and
// version gate MalformedHeader; a known-but-absent codec gates
// UnsupportedCompression; an unknown record shape gates
// UnsupportedRecordFormat.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes, need %d", ErrMalformedHeader, len(buf), HeaderSize)
	}
	if binary.BigEndian.Uint32(buf[0:4]) != Magic {
		return Header{}, fmt.Errorf("%w: bad magic %#08x", ErrMalformedHeader, binary.BigEndian.Uint32(buf[0:4]))
	}
	if buf[4] != FileVersion {
		return Header{}, fmt.Errorf("%w: unknown version %d", ErrMalformedHeader, buf[4])
	}

	var h Header
	switch model.ByteOrder(buf[5]) {
	case model.BigEndian, model.LittleEndian:
		h.ByteOrder = model.ByteOrder(buf[5])
	default:
		return Header{}, fmt.Errorf("%w: bad byte order %d", ErrMalformedHeader, buf[5])
	}

	h.Compression = compress.Method(buf[6])
	if !compress.Available(h.Compression) {
		return Header{}, fmt.Errorf("%w: %s", ErrUnsupportedCompression, h.Compression)
	}

	h.Format = model.RecordFormat(buf[7])
	if RecordLength(h.Format) == 0 {
		return Header{}, fmt.Errorf("%w: format id %d", ErrUnsupportedRecordFormat, buf[7])
	}
	if recLen := binary.BigEndian.Uint16(buf[8:10]); int(recLen) != h.RecordLength() {
		return Header{}, fmt.Errorf("%w: record length %d does not match format %s (%d)",
			ErrMalformedHeader, recLen, h.Format, h.RecordLength())
	}

	flags := binary.BigEndian.Uint16(buf[10:12])
	if flags&flagHasCount != 0 {
		h.HasCount = true
		h.RecordCount = binary.BigEndian.Uint64(buf[16:24])
	}
	return h, nil
}
