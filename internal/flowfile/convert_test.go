package flowfile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/movsoftware/silk-sub021/internal/compress"
	"github.com/movsoftware/silk-sub021/internal/core/model"
)

func TestConvertNoOpIsByteIdentical(t *testing.T) {
	records := makeRecords(25)
	hdr := Header{ByteOrder: model.BigEndian, Compression: compress.Zlib, Format: model.FormatIPv4}
	path := filepath.Join(t.TempDir(), "flows.rwf")
	writeFile(t, path, hdr, records)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	n, known, err := Convert(bytes.NewReader(raw), &out, ConvertOptions{Order: model.BigEndian})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if !known || n != 25 {
		t.Fatalf("converted %d records (known=%v), want 25", n, known)
	}
	if !bytes.Equal(out.Bytes(), raw) {
		t.Fatal("no-op conversion must reproduce the input byte for byte")
	}
}

func TestConvertSwapsByteOrder(t *testing.T) {
	records := makeRecords(12)
	raw := writeStream(t, DefaultHeader(), records)

	var little bytes.Buffer
	if _, _, err := Convert(bytes.NewReader(raw), &little, ConvertOptions{Order: model.LittleEndian}); err != nil {
		t.Fatalf("big to little failed: %v", err)
	}
	hdr, got := readStream(t, little.Bytes())
	if hdr.ByteOrder != model.LittleEndian {
		t.Fatalf("order = %s, want little-endian", hdr.ByteOrder)
	}
	for i := range got {
		if !recordsEqual(&got[i], &records[i]) {
			t.Fatalf("record %d changed under byte-order conversion", i)
		}
	}

	// Converting back restores the original bytes.
	var back bytes.Buffer
	if _, _, err := Convert(bytes.NewReader(little.Bytes()), &back, ConvertOptions{Order: model.BigEndian}); err != nil {
		t.Fatalf("little to big failed: %v", err)
	}
	if !bytes.Equal(back.Bytes(), raw) {
		t.Fatal("round-trip conversion did not restore the stream")
	}
}

func TestConvertOverridesCompression(t *testing.T) {
	records := makeRecords(30)
	hdr := Header{ByteOrder: model.BigEndian, Compression: compress.None, Format: model.FormatIPv4}
	raw := writeStream(t, hdr, records)

	method := compress.Snappy
	var out bytes.Buffer
	if _, _, err := Convert(bytes.NewReader(raw), &out, ConvertOptions{Order: model.BigEndian, Compression: &method}); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	gotHdr, got := readStream(t, out.Bytes())
	if gotHdr.Compression != compress.Snappy {
		t.Fatalf("compression = %s, want snappy", gotHdr.Compression)
	}
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	for i := range got {
		if !recordsEqual(&got[i], &records[i]) {
			t.Fatalf("record %d changed under recompression", i)
		}
	}
}

func TestConvertEmptySource(t *testing.T) {
	var out bytes.Buffer
	n, known, err := Convert(bytes.NewReader(nil), &out, ConvertOptions{Order: model.LittleEndian})
	if err != nil {
		t.Fatalf("converting an empty stream must succeed, got %v", err)
	}
	if !known || n != 0 || out.Len() != 0 {
		t.Fatalf("empty stream converted to %d records, %d bytes", n, out.Len())
	}
}

func TestConvertCountsUncountedRawCopy(t *testing.T) {
	// Buffer-written source: no count trailer. A verbatim copy of a raw body
	// still knows its record count from the body size.
	records := makeRecords(8)
	raw := writeStream(t, DefaultHeader(), records)

	var out bytes.Buffer
	n, known, err := Convert(bytes.NewReader(raw), &out, ConvertOptions{Order: model.BigEndian})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if !known || n != 8 {
		t.Fatalf("copied %d records (known=%v), want 8 known", n, known)
	}
	if !bytes.Equal(out.Bytes(), raw) {
		t.Fatal("counting broke the verbatim copy")
	}
}

func TestConvertCompressedCopyWithoutCountIsUnknown(t *testing.T) {
	hdr := Header{ByteOrder: model.BigEndian, Compression: compress.Snappy, Format: model.FormatIPv4}
	raw := writeStream(t, hdr, makeRecords(8))

	var out bytes.Buffer
	n, known, err := Convert(bytes.NewReader(raw), &out, ConvertOptions{Order: model.BigEndian})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if known {
		t.Fatalf("compressed pass-through with no count trailer claimed %d records", n)
	}
	if !bytes.Equal(out.Bytes(), raw) {
		t.Fatal("pass-through changed the stream")
	}
}
