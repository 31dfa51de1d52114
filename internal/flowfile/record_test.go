package flowfile

import (
	"errors"
	"math"
	"net"
	"testing"
	"time"

	"github.com/movsoftware/silk-sub021/internal/core/model"
)

func sampleRecord() model.FlowRecord {
	return model.FlowRecord{
		SrcIP:       net.ParseIP("192.0.2.17"),
		DstIP:       net.ParseIP("198.51.100.3"),
		SrcPort:     52831,
		DstPort:     443,
		Protocol:    6,
		Packets:     4200,
		Bytes:       3_145_728,
		StartTime:   time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC),
		Duration:    91 * time.Second,
		Sensor:      7,
		Class:       1,
		Type:        2,
		Input:       3,
		Output:      4,
		Application: 443,
		InitFlags:   0x02,
		SessFlags:   0x1b,
		Attributes:  0x01,
	}
}

func sampleRecordV6() model.FlowRecord {
	rec := sampleRecord()
	rec.SrcIP = net.ParseIP("2001:db8::1")
	rec.DstIP = net.ParseIP("2001:db8::2:17")
	return rec
}

func recordsEqual(a, b *model.FlowRecord) bool {
	return a.SrcIP.Equal(b.SrcIP) && a.DstIP.Equal(b.DstIP) &&
		a.SrcPort == b.SrcPort && a.DstPort == b.DstPort &&
		a.Protocol == b.Protocol &&
		a.Packets == b.Packets && a.Bytes == b.Bytes &&
		a.StartTime.Equal(b.StartTime) && a.Duration == b.Duration &&
		a.Sensor == b.Sensor && a.Class == b.Class && a.Type == b.Type &&
		a.Input == b.Input && a.Output == b.Output && a.Application == b.Application &&
		a.InitFlags == b.InitFlags && a.SessFlags == b.SessFlags &&
		a.Attributes == b.Attributes &&
		a.ICMPType == b.ICMPType && a.ICMPCode == b.ICMPCode
}

func TestRecordRoundTrip(t *testing.T) {
	records := map[string]model.FlowRecord{
		"ipv4": sampleRecord(),
		"ipv6": sampleRecordV6(),
		"icmp": {
			SrcIP:     net.ParseIP("192.0.2.1"),
			DstIP:     net.ParseIP("192.0.2.2"),
			Protocol:  1,
			Packets:   3,
			Bytes:     192,
			StartTime: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
			ICMPType:  8,
		},
	}
	for name, rec := range records {
		format := model.FormatIPv4
		if rec.NeedsIPv6() {
			format = model.FormatIPv6
		}
		for _, order := range []model.ByteOrder{model.BigEndian, model.LittleEndian} {
			buf, err := EncodeRecord(&rec, order, format)
			if err != nil {
				t.Fatalf("%s/%s: EncodeRecord failed: %v", name, order, err)
			}
			if len(buf) != RecordLength(format) {
				t.Fatalf("%s/%s: encoded %d bytes, want %d", name, order, len(buf), RecordLength(format))
			}
			got, err := DecodeRecord(buf, order, format)
			if err != nil {
				t.Fatalf("%s/%s: DecodeRecord failed: %v", name, order, err)
			}
			if !recordsEqual(&got, &rec) {
				t.Errorf("%s/%s: round trip mismatch:\n got %+v\nwant %+v", name, order, got, rec)
			}
		}
	}
}

func TestRecordOrdersDiffer(t *testing.T) {
	rec := sampleRecord()
	big, err := EncodeRecord(&rec, model.BigEndian, model.FormatIPv4)
	if err != nil {
		t.Fatal(err)
	}
	little, err := EncodeRecord(&rec, model.LittleEndian, model.FormatIPv4)
	if err != nil {
		t.Fatal(err)
	}
	if string(big) == string(little) {
		t.Fatal("big- and little-endian encodings should not be identical for multi-byte values")
	}
}

func TestEncodeIPv6IntoIPv4Format(t *testing.T) {
	rec := sampleRecordV6()
	if _, err := EncodeRecord(&rec, model.BigEndian, model.FormatIPv4); !errors.Is(err, ErrUnsupportedAddressFamily) {
		t.Fatalf("got %v, want ErrUnsupportedAddressFamily", err)
	}
}

func TestEncodeIPv4IntoIPv6Format(t *testing.T) {
	// An IPv4 address is representable in the wider format.
	rec := sampleRecord()
	buf, err := EncodeRecord(&rec, model.BigEndian, model.FormatIPv6)
	if err != nil {
		t.Fatalf("EncodeRecord failed: %v", err)
	}
	got, err := DecodeRecord(buf, model.BigEndian, model.FormatIPv6)
	if err != nil {
		t.Fatalf("DecodeRecord failed: %v", err)
	}
	if !got.SrcIP.Equal(rec.SrcIP) || !got.DstIP.Equal(rec.DstIP) {
		t.Errorf("addresses did not survive the wider layout: %v -> %v", rec.SrcIP, got.SrcIP)
	}
}

func TestEncodeRejectsDurationOverflow(t *testing.T) {
	rec := sampleRecord()
	rec.Duration = time.Duration(math.MaxUint32+1) * time.Millisecond
	if _, err := EncodeRecord(&rec, model.BigEndian, model.FormatIPv4); !errors.Is(err, ErrFieldOverflow) {
		t.Fatalf("got %v, want ErrFieldOverflow", err)
	}
}

func TestDecodeTruncatedRecord(t *testing.T) {
	rec := sampleRecord()
	buf, err := EncodeRecord(&rec, model.BigEndian, model.FormatIPv4)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeRecord(buf[:len(buf)-1], model.BigEndian, model.FormatIPv4); !errors.Is(err, ErrTruncatedRecord) {
		t.Fatalf("got %v, want ErrTruncatedRecord", err)
	}
}
