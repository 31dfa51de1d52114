package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

func init() {
	register(zlibCodec{})
}

type zlibCodec struct{}

func (zlibCodec) Method() Method { return Zlib }

func (zlibCodec) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(src); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (zlibCodec) Decompress(src []byte, size int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	defer zr.Close()
	dst := make([]byte, size)
	if _, err := io.ReadFull(zr, dst); err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	// Anything left over means the frame header lied about the raw length.
	var one [1]byte
	if n, _ := zr.Read(one[:]); n != 0 {
		return nil, fmt.Errorf("zlib: frame larger than declared size %d", size)
	}
	return dst, nil
}
