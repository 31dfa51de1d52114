// Package gen synthesizes flow streams for pipelines and tests. Generation
// is deterministic for a fixed seed.
package gen

import (
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/movsoftware/silk-sub021/internal/compress"
	"github.com/movsoftware/silk-sub021/internal/config"
	"github.com/movsoftware/silk-sub021/internal/core/model"
	"github.com/movsoftware/silk-sub021/internal/flowfile"
)

// Generator produces pseudo-random flow records.
type Generator struct {
	rng      *rand.Rand
	start    time.Time
	v6Chance float64
	sensor   uint16
	format   model.RecordFormat
	hdr      flowfile.Header
}

// New builds a generator from its config section.
func New(cfg config.GeneratorConfig) (*Generator, error) {
	hdr := flowfile.DefaultHeader()
	if cfg.ByteOrder == "little" {
		hdr.ByteOrder = model.LittleEndian
	}
	if cfg.Compression != "" {
		method, err := compress.ParseMethod(cfg.Compression)
		if err != nil {
			return nil, err
		}
		hdr.Compression = method
	}
	switch cfg.RecordFormat {
	case "", "ipv4":
	case "ipv6":
		hdr.Format = model.FormatIPv6
	default:
		return nil, fmt.Errorf("unknown record format %q", cfg.RecordFormat)
	}

	start := time.Now().UTC().Truncate(time.Millisecond)
	if cfg.StartTime != "" {
		var err error
		start, err = time.Parse(time.RFC3339, cfg.StartTime)
		if err != nil {
			return nil, fmt.Errorf("bad start_time: %w", err)
		}
	}

	v6 := cfg.IPv6Fraction
	if hdr.Format == model.FormatIPv4 {
		v6 = 0
	}

	return &Generator{
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		start:    start,
		v6Chance: v6,
		sensor:   cfg.Sensor,
		format:   hdr.Format,
		hdr:      hdr,
	}, nil
}

// Header returns the stream header generated records belong under.
func (g *Generator) Header() flowfile.Header { return g.hdr }

// Next synthesizes one record. The i-th record starts i seconds after the
// configured start time so generated streams are time-ordered.
func (g *Generator) Next(i int) model.FlowRecord {
	rec := model.FlowRecord{
		SrcPort:   uint16(g.rng.Intn(65535-1024) + 1024),
		DstPort:   wellKnownPort(g.rng),
		Packets:   uint64(g.rng.Intn(5000) + 1),
		StartTime: g.start.Add(time.Duration(i) * time.Second),
		Duration:  time.Duration(g.rng.Intn(120_000)) * time.Millisecond,
		Sensor:    g.sensor,
		Input:     uint16(g.rng.Intn(16)),
		Output:    uint16(g.rng.Intn(16)),
	}
	rec.Bytes = rec.Packets * uint64(g.rng.Intn(1400)+40)

	if g.rng.Float64() < g.v6Chance {
		rec.SrcIP = randomIPv6(g.rng)
		rec.DstIP = randomIPv6(g.rng)
	} else {
		rec.SrcIP = randomIPv4(g.rng)
		rec.DstIP = randomIPv4(g.rng)
	}

	switch g.rng.Intn(3) {
	case 0: // TCP
		rec.Protocol = 6
		rec.InitFlags = 0x02 // SYN
		rec.SessFlags = 0x1b // SYN|ACK|PSH|FIN
		rec.Application = rec.DstPort
	case 1: // UDP
		rec.Protocol = 17
		rec.Application = rec.DstPort
	default: // ICMP echo
		rec.Protocol = 1
		rec.SrcPort = 0
		rec.DstPort = 0
		rec.ICMPType = 8
		rec.ICMPCode = 0
		rec.Packets = uint64(g.rng.Intn(4) + 1)
		rec.Bytes = rec.Packets * 64
	}
	return rec
}

func wellKnownPort(rng *rand.Rand) uint16 {
	ports := []uint16{53, 80, 123, 443, 8080}
	return ports[rng.Intn(len(ports))]
}

func randomIPv4(rng *rand.Rand) net.IP {
	return net.IPv4(10, byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(254)+1)).To4()
}

func randomIPv6(rng *rand.Rand) net.IP {
	ip := make(net.IP, 16)
	ip[0], ip[1] = 0x20, 0x01
	ip[2], ip[3] = 0x0d, 0xb8
	for i := 4; i < 16; i++ {
		ip[i] = byte(rng.Intn(256))
	}
	return ip
}
