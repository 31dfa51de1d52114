package compress

import (
	"fmt"

	"github.com/klauspost/compress/snappy"
)

func init() {
	register(snappyCodec{})
}

type snappyCodec struct{}

func (snappyCodec) Method() Method { return Snappy }

func (snappyCodec) Compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (snappyCodec) Decompress(src []byte, size int) ([]byte, error) {
	dst, err := snappy.Decode(nil, src)
	if err != nil {
		return nil, fmt.Errorf("snappy: %w", err)
	}
	if len(dst) != size {
		return nil, fmt.Errorf("snappy: frame inflated to %d bytes, expected %d", len(dst), size)
	}
	return dst, nil
}
