package model

import (
	"net"
	"time"
)

// ByteOrder identifies the encoding of multi-byte numeric fields in a
// stream's record body. The record codec takes it as an explicit parameter
// on every call; no platform default ever leaks in.
type ByteOrder uint8

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

func (o ByteOrder) String() string {
	switch o {
	case BigEndian:
		return "big"
	case LittleEndian:
		return "little"
	}
	return "unknown"
}

// RecordFormat selects the wire shape of a flow record: the IPv4-only
// layout or the wider IPv6-capable one.
type RecordFormat uint8

const (
	FormatIPv4 RecordFormat = 1
	FormatIPv6 RecordFormat = 2
)

func (f RecordFormat) String() string {
	switch f {
	case FormatIPv4:
		return "ipv4"
	case FormatIPv6:
		return "ipv6"
	}
	return "unknown"
}

// FlowRecord is one summarized network conversation. Address width is
// constrained by the owning stream's RecordFormat; every other field is
// format-independent.
type FlowRecord struct {
	SrcIP net.IP
	DstIP net.IP

	SrcPort  uint16
	DstPort  uint16
	Protocol uint8

	Packets uint64
	Bytes   uint64

	StartTime time.Time
	Duration  time.Duration

	Sensor      uint16
	Class       uint8
	Type        uint8
	Input       uint16
	Output      uint16
	Application uint16

	InitFlags  uint8
	SessFlags  uint8
	Attributes uint8

	// Meaningful only when Protocol is ICMP (1) or ICMPv6 (58).
	ICMPType uint8
	ICMPCode uint8
}

// NeedsIPv6 reports whether either address of the record requires the
// IPv6-capable record format.
func (r *FlowRecord) NeedsIPv6() bool {
	return (r.SrcIP != nil && r.SrcIP.To4() == nil) || (r.DstIP != nil && r.DstIP.To4() == nil)
}

// EndTime returns the absolute flow end time.
func (r *FlowRecord) EndTime() time.Time {
	return r.StartTime.Add(r.Duration)
}
