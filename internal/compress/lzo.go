package compress

import (
	"bytes"
	"fmt"

	lzo "github.com/rasky/go-lzo"
)

func init() {
	register(lzoCodec{})
}

type lzoCodec struct{}

func (lzoCodec) Method() Method { return LZO1X }

func (lzoCodec) Compress(src []byte) ([]byte, error) {
	return lzo.Compress1X(src), nil
}

func (lzoCodec) Decompress(src []byte, size int) ([]byte, error) {
	dst, err := lzo.Decompress1X(bytes.NewReader(src), len(src), size)
	if err != nil {
		return nil, fmt.Errorf("lzo1x: %w", err)
	}
	if len(dst) != size {
		return nil, fmt.Errorf("lzo1x: frame inflated to %d bytes, expected %d", len(dst), size)
	}
	return dst, nil
}
