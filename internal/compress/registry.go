// Package compress implements the pluggable compression layer of a flow
// stream. A stream's body is either a raw passthrough (method "none") or a
// sequence of independently compressed blocks, each carrying its compressed
// and uncompressed length so truncation and corruption are detectable.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Method identifies a compression codec. The value is stored verbatim in
// the stream header.
type Method uint8

const (
	None Method = iota
	Zlib
	LZO1X
	Snappy
)

func (m Method) String() string {
	switch m {
	case None:
		return "none"
	case Zlib:
		return "zlib"
	case LZO1X:
		return "lzo1x"
	case Snappy:
		return "snappy"
	}
	return fmt.Sprintf("unknown(%d)", uint8(m))
}

// ParseMethod maps a method name to its Method value.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "none":
		return None, nil
	case "zlib":
		return Zlib, nil
	case "lzo1x", "lzo":
		return LZO1X, nil
	case "snappy":
		return Snappy, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrMethodUnavailable, s)
}

var (
	// ErrMethodUnavailable is returned when a stream declares a compression
	// method this build does not provide.
	ErrMethodUnavailable = errors.New("compression method unavailable")

	// ErrCorruptStream is returned when a compressed block fails integrity
	// checks: a truncated frame, an implausible length field, or payload
	// that does not decompress to its declared size.
	ErrCorruptStream = errors.New("corrupt compressed stream")
)

// Codec compresses and decompresses one block of bytes. A stream uses a
// single codec for its whole body, chosen at write time and recovered from
// the header at read time.
type Codec interface {
	Method() Method

	Compress(src []byte) ([]byte, error)

	// Decompress inflates src, which must decompress to exactly size bytes.
	Decompress(src []byte, size int) ([]byte, error)
}

var registry = map[Method]Codec{}

func register(c Codec) {
	registry[c.Method()] = c
}

// Lookup returns the codec for a method, or ErrMethodUnavailable if the
// method is unknown or not compiled in. Method None has no codec; callers
// stream raw bytes instead.
func Lookup(m Method) (Codec, error) {
	c, ok := registry[m]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodUnavailable, m)
	}
	return c, nil
}

// Available reports whether a method can be used by this process. None is
// always available.
func Available(m Method) bool {
	if m == None {
		return true
	}
	_, ok := registry[m]
	return ok
}

const (
	// blockHeaderSize is the framing overhead per compressed block:
	// compressed length and uncompressed length, both network order.
	blockHeaderSize = 8

	// MaxBlockSize bounds the uncompressed size of one block. Anything
	// larger in a frame header marks the stream as corrupt.
	MaxBlockSize = 1 << 20
)

// WriteBlock frames and writes one compressed block.
func WriteBlock(w io.Writer, c Codec, raw []byte) error {
	if len(raw) > MaxBlockSize {
		return fmt.Errorf("block of %d bytes exceeds maximum %d", len(raw), MaxBlockSize)
	}
	comp, err := c.Compress(raw)
	if err != nil {
		return fmt.Errorf("compress block: %w", err)
	}
	var hdr [blockHeaderSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(len(comp)))
	binary.BigEndian.PutUint32(hdr[4:8], uint32(len(raw)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(comp)
	return err
}

// ReadBlock reads and decompresses the next block. It returns io.EOF at a
// clean end of stream and ErrCorruptStream for a frame that is truncated or
// declares an implausible geometry.
func ReadBlock(r io.Reader, c Codec) ([]byte, error) {
	var hdr [blockHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: truncated block header", ErrCorruptStream)
	}
	compLen := binary.BigEndian.Uint32(hdr[0:4])
	rawLen := binary.BigEndian.Uint32(hdr[4:8])
	if rawLen == 0 || rawLen > MaxBlockSize || compLen == 0 || compLen > MaxBlockSize+MaxBlockSize/2 {
		return nil, fmt.Errorf("%w: block header declares %d compressed / %d raw bytes", ErrCorruptStream, compLen, rawLen)
	}
	comp := make([]byte, compLen)
	if _, err := io.ReadFull(r, comp); err != nil {
		return nil, fmt.Errorf("%w: truncated block payload", ErrCorruptStream)
	}
	raw, err := c.Decompress(comp, int(rawLen))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStream, err)
	}
	if len(raw) != int(rawLen) {
		return nil, fmt.Errorf("%w: block inflated to %d bytes, expected %d", ErrCorruptStream, len(raw), rawLen)
	}
	return raw, nil
}
