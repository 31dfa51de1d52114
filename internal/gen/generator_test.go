package gen

import (
	"testing"

	"github.com/movsoftware/silk-sub021/internal/compress"
	"github.com/movsoftware/silk-sub021/internal/config"
	"github.com/movsoftware/silk-sub021/internal/core/model"
)

func TestDeterministicForSeed(t *testing.T) {
	cfg := config.GeneratorConfig{Seed: 42, StartTime: "2025-06-01T00:00:00Z", Sensor: 5}
	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 200; i++ {
		ra, rb := a.Next(i), b.Next(i)
		if !ra.SrcIP.Equal(rb.SrcIP) || ra.SrcPort != rb.SrcPort ||
			ra.Protocol != rb.Protocol || ra.Packets != rb.Packets || ra.Bytes != rb.Bytes {
			t.Fatalf("record %d diverged for the same seed: %+v vs %+v", i, ra, rb)
		}
	}
}

func TestRecordsAreTimeOrdered(t *testing.T) {
	g, err := New(config.GeneratorConfig{Seed: 1, StartTime: "2025-06-01T00:00:00Z"})
	if err != nil {
		t.Fatal(err)
	}
	prev := g.Next(0)
	for i := 1; i < 50; i++ {
		rec := g.Next(i)
		if !rec.StartTime.After(prev.StartTime) {
			t.Fatalf("record %d starts at %s, not after %s", i, rec.StartTime, prev.StartTime)
		}
		prev = rec
	}
}

func TestIPv4FormatNeverEmitsIPv6(t *testing.T) {
	g, err := New(config.GeneratorConfig{Seed: 7, RecordFormat: "ipv4", IPv6Fraction: 0.9})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 500; i++ {
		rec := g.Next(i)
		if rec.NeedsIPv6() {
			t.Fatalf("record %d needs ipv6 under an ipv4-only format", i)
		}
	}
}

func TestIPv6FractionProducesBothFamilies(t *testing.T) {
	g, err := New(config.GeneratorConfig{Seed: 3, RecordFormat: "ipv6", IPv6Fraction: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	var v4, v6 int
	for i := 0; i < 500; i++ {
		rec := g.Next(i)
		if rec.NeedsIPv6() {
			v6++
		} else {
			v4++
		}
	}
	if v4 == 0 || v6 == 0 {
		t.Fatalf("500 records split %d v4 / %d v6; a 0.5 fraction must produce both", v4, v6)
	}
}

func TestHeaderFollowsConfig(t *testing.T) {
	g, err := New(config.GeneratorConfig{ByteOrder: "little", Compression: "lzo1x", RecordFormat: "ipv6"})
	if err != nil {
		t.Fatal(err)
	}
	hdr := g.Header()
	if hdr.ByteOrder != model.LittleEndian || hdr.Compression != compress.LZO1X || hdr.Format != model.FormatIPv6 {
		t.Fatalf("header = %+v", hdr)
	}
}

func TestRejectsBadConfig(t *testing.T) {
	if _, err := New(config.GeneratorConfig{Compression: "brotli"}); err == nil {
		t.Fatal("unknown compression accepted")
	}
	if _, err := New(config.GeneratorConfig{RecordFormat: "ipv5"}); err == nil {
		t.Fatal("unknown record format accepted")
	}
	if _, err := New(config.GeneratorConfig{StartTime: "yesterday"}); err == nil {
		t.Fatal("unparseable start time accepted")
	}
}

func TestICMPRecordsCarryNoPorts(t *testing.T) {
	g, err := New(config.GeneratorConfig{Seed: 9})
	if err != nil {
		t.Fatal(err)
	}
	var seen bool
	for i := 0; i < 100; i++ {
		rec := g.Next(i)
		if rec.Protocol != 1 {
			continue
		}
		seen = true
		if rec.SrcPort != 0 || rec.DstPort != 0 {
			t.Fatalf("icmp record %d has ports %d/%d", i, rec.SrcPort, rec.DstPort)
		}
		if rec.ICMPType != 8 {
			t.Fatalf("icmp record %d has type %d, want echo", i, rec.ICMPType)
		}
	}
	if !seen {
		t.Fatal("100 records produced no icmp flow")
	}
}
