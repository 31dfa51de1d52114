package flowfile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/movsoftware/silk-sub021/internal/compress"
	"github.com/movsoftware/silk-sub021/internal/core/model"
)

func writeFile(t *testing.T, path string, hdr Header, records []model.FlowRecord) {
	t.Helper()
	fw, err := Create(path, hdr)
	if err != nil {
		t.Fatalf("Create %s: %v", path, err)
	}
	for i := range records {
		if err := fw.Write(&records[i]); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func readFile(t *testing.T, path string) []model.FlowRecord {
	t.Helper()
	rc, err := Open(path)
	if err != nil {
		t.Fatalf("Open %s: %v", path, err)
	}
	defer rc.Close()
	records, err := ReadAll(rc.Reader)
	if err != nil {
		t.Fatalf("ReadAll %s: %v", path, err)
	}
	return records
}

func TestAppendMergesSourcesInOrder(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.rwf")
	srcA := filepath.Join(dir, "a.rwf")
	srcB := filepath.Join(dir, "b.rwf")

	all := makeRecords(9)
	writeFile(t, dst, DefaultHeader(), all[:3])
	writeFile(t, srcA, DefaultHeader(), all[3:5])
	writeFile(t, srcB, DefaultHeader(), all[5:])

	res, err := Append(dst, []string{srcA, srcB}, AppendOptions{})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if res.Appended != 6 || !res.TotalKnown || res.Total != 9 {
		t.Fatalf("result = %+v, want 6 appended, 9 total", res)
	}

	got := readFile(t, dst)
	if len(got) != 9 {
		t.Fatalf("destination has %d records, want 9", len(got))
	}
	for i := range got {
		if !recordsEqual(&got[i], &all[i]) {
			t.Fatalf("record %d out of order or mangled", i)
		}
	}

	hdr, err := ReadHeaderFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !hdr.HasCount || hdr.RecordCount != 9 {
		t.Fatalf("header = %+v, want count 9", hdr)
	}
}

func TestAppendEmptySourceIsNoOp(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.rwf")
	empty := filepath.Join(dir, "empty.rwf")
	writeFile(t, dst, DefaultHeader(), makeRecords(2))
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	before, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	res, err := Append(dst, []string{empty}, AppendOptions{})
	if err != nil {
		t.Fatalf("appending an empty stream must succeed, got %v", err)
	}
	if res.Appended != 0 {
		t.Fatalf("appended %d records from an empty stream", res.Appended)
	}
	after, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("no-op append changed the destination's bytes")
	}
}

func TestAppendCreatesDestinationFromTemplate(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.rwf")
	src := filepath.Join(dir, "src.rwf")
	tmpl := Header{ByteOrder: model.LittleEndian, Compression: compress.Snappy, Format: model.FormatIPv6}
	writeFile(t, src, tmpl, []model.FlowRecord{sampleRecordV6()})

	res, err := Append(dst, []string{src}, AppendOptions{Create: true, Template: src})
	if err != nil {
		t.Fatalf("Append with create failed: %v", err)
	}
	if res.Appended != 1 || !res.TotalKnown || res.Total != 1 {
		t.Fatalf("result = %+v", res)
	}

	hdr, err := ReadHeaderFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.ByteOrder != tmpl.ByteOrder || hdr.Compression != tmpl.Compression || hdr.Format != tmpl.Format {
		t.Fatalf("created destination header = %+v, want template traits %+v", hdr, tmpl)
	}
}

func TestAppendMissingDestinationWithoutCreate(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.rwf")
	writeFile(t, src, DefaultHeader(), makeRecords(1))

	_, err := Append(filepath.Join(dir, "absent.rwf"), []string{src}, AppendOptions{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("got %v, want ErrNotExist", err)
	}
}

func TestAppendZeroByteDestinationWithoutCreate(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.rwf")
	src := filepath.Join(dir, "src.rwf")
	if err := os.WriteFile(dst, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	writeFile(t, src, DefaultHeader(), makeRecords(1))

	if _, err := Append(dst, []string{src}, AppendOptions{}); !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("got %v, want ErrMalformedHeader", err)
	}
}

func TestAppendRejectsNonRegularDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.rwf")
	writeFile(t, src, DefaultHeader(), makeRecords(1))

	if _, err := Append(os.DevNull, []string{src}, AppendOptions{}); !errors.Is(err, ErrNotAppendable) {
		t.Fatalf("got %v, want ErrNotAppendable", err)
	}
}

func TestAppendFailureLeavesDestinationUntouched(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.rwf")
	good := filepath.Join(dir, "good.rwf")
	bad := filepath.Join(dir, "bad.rwf")

	writeFile(t, dst, DefaultHeader(), makeRecords(3))
	writeFile(t, good, DefaultHeader(), makeRecords(2))
	writeFile(t, bad, Header{ByteOrder: model.BigEndian, Compression: compress.None, Format: model.FormatIPv6},
		[]model.FlowRecord{sampleRecordV6()})

	before, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Append(dst, []string{good, bad}, AppendOptions{})
	if !errors.Is(err, ErrIncompatibleFormat) {
		t.Fatalf("got %v, want ErrIncompatibleFormat", err)
	}
	after, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("failed transaction modified the destination")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "dst.rwf" && e.Name() != "good.rwf" && e.Name() != "bad.rwf" {
			t.Fatalf("failed transaction left staging file %s", e.Name())
		}
	}
}

func TestAppendReencodesSourceTraits(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.rwf")
	src := filepath.Join(dir, "src.rwf")

	records := makeRecords(20)
	writeFile(t, dst, Header{ByteOrder: model.BigEndian, Compression: compress.Zlib, Format: model.FormatIPv4}, records[:5])
	writeFile(t, src, Header{ByteOrder: model.LittleEndian, Compression: compress.LZO1X, Format: model.FormatIPv4}, records[5:])

	res, err := Append(dst, []string{src}, AppendOptions{})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if res.Appended != 15 {
		t.Fatalf("appended %d, want 15", res.Appended)
	}

	hdr, err := ReadHeaderFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.ByteOrder != model.BigEndian || hdr.Compression != compress.Zlib {
		t.Fatalf("destination traits changed: %+v", hdr)
	}
	got := readFile(t, dst)
	if len(got) != 20 {
		t.Fatalf("got %d records, want 20", len(got))
	}
	for i := range got {
		if !recordsEqual(&got[i], &records[i]) {
			t.Fatalf("record %d mangled by re-encode", i)
		}
	}
}

func TestAppendIPv4SourceIntoIPv6Destination(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.rwf")
	src := filepath.Join(dir, "src.rwf")
	writeFile(t, dst, Header{ByteOrder: model.BigEndian, Compression: compress.None, Format: model.FormatIPv6},
		[]model.FlowRecord{sampleRecordV6()})
	writeFile(t, src, DefaultHeader(), makeRecords(2))

	res, err := Append(dst, []string{src}, AppendOptions{})
	if err != nil {
		t.Fatalf("widening append must succeed, got %v", err)
	}
	if res.Appended != 2 {
		t.Fatalf("appended %d, want 2", res.Appended)
	}
	if got := readFile(t, dst); len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
}
