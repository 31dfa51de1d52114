package flowfile

import (
	"errors"
	"testing"

	"github.com/movsoftware/silk-sub021/internal/compress"
	"github.com/movsoftware/silk-sub021/internal/core/model"
)

func TestHeaderRoundTrip(t *testing.T) {
	cases := []Header{
		{ByteOrder: model.BigEndian, Compression: compress.None, Format: model.FormatIPv4},
		{ByteOrder: model.LittleEndian, Compression: compress.Zlib, Format: model.FormatIPv6},
		{ByteOrder: model.BigEndian, Compression: compress.Snappy, Format: model.FormatIPv6, HasCount: true, RecordCount: 12345},
		{ByteOrder: model.LittleEndian, Compression: compress.LZO1X, Format: model.FormatIPv4, HasCount: true, RecordCount: 0},
	}
	for _, want := range cases {
		buf := EncodeHeader(want)
		if len(buf) != HeaderSize {
			t.Fatalf("encoded header is %d bytes, want %d", len(buf), HeaderSize)
		}
		got, err := DecodeHeader(buf)
		if err != nil {
			t.Fatalf("DecodeHeader failed: %v", err)
		}
		if got != want {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
		}
	}
}

func TestDecodeHeaderRejectsBadMagic(t *testing.T) {
	buf := EncodeHeader(DefaultHeader())
	buf[0] = 0x00
	if _, err := DecodeHeader(buf); !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("got %v, want ErrMalformedHeader", err)
	}
}

func TestDecodeHeaderRejectsBadVersion(t *testing.T) {
	buf := EncodeHeader(DefaultHeader())
	buf[4] = 99
	if _, err := DecodeHeader(buf); !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("got %v, want ErrMalformedHeader", err)
	}
}

func TestDecodeHeaderRejectsUnknownCompression(t *testing.T) {
	buf := EncodeHeader(DefaultHeader())
	buf[6] = 99
	if _, err := DecodeHeader(buf); !errors.Is(err, ErrUnsupportedCompression) {
		t.Fatalf("got %v, want ErrUnsupportedCompression", err)
	}
}

func TestDecodeHeaderRejectsUnknownFormat(t *testing.T) {
	buf := EncodeHeader(DefaultHeader())
	buf[7] = 99
	if _, err := DecodeHeader(buf); !errors.Is(err, ErrUnsupportedRecordFormat) {
		t.Fatalf("got %v, want ErrUnsupportedRecordFormat", err)
	}
}

func TestDecodeHeaderRejectsWrongRecordLength(t *testing.T) {
	buf := EncodeHeader(DefaultHeader())
	buf[8], buf[9] = 0x00, 0x10
	if _, err := DecodeHeader(buf); !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("got %v, want ErrMalformedHeader", err)
	}
}

func TestDecodeHeaderRejectsShortBuffer(t *testing.T) {
	if _, err := DecodeHeader(make([]byte, HeaderSize-1)); !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("got %v, want ErrMalformedHeader", err)
	}
}
