// Package capture turns captured packets into flow records, one record per
// packet. Aggregating packets into longer-lived flows is a policy decision
// left to downstream consumers of the stream.
package capture

import (
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/movsoftware/silk-sub021/internal/core/model"
)

// ParsePacket uses gopacket to decode a raw packet and extract one flow
// record. Non-IP packets are rejected.
func ParsePacket(data []byte, ts time.Time) (*model.FlowRecord, error) {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)

	rec := &model.FlowRecord{
		StartTime: ts.UTC().Truncate(time.Millisecond),
		Packets:   1,
		Bytes:     uint64(len(data)),
	}

	// Network layer: IPv4 or IPv6.
	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		rec.SrcIP = ip.SrcIP
		rec.DstIP = ip.DstIP
		rec.Protocol = uint8(ip.Protocol)
		rec.Class = ip.TOS
	} else if l := packet.Layer(layers.LayerTypeIPv6); l != nil {
		ip := l.(*layers.IPv6)
		rec.SrcIP = ip.SrcIP
		rec.DstIP = ip.DstIP
		rec.Protocol = uint8(ip.NextHeader)
		rec.Class = ip.TrafficClass
	} else {
		return nil, fmt.Errorf("not an IP packet")
	}

	// Transport layer.
	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		rec.SrcPort = uint16(tcp.SrcPort)
		rec.DstPort = uint16(tcp.DstPort)
		rec.InitFlags = tcpFlags(tcp)
		rec.SessFlags = rec.InitFlags
	} else if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		rec.SrcPort = uint16(udp.SrcPort)
		rec.DstPort = uint16(udp.DstPort)
	} else if l := packet.Layer(layers.LayerTypeICMPv4); l != nil {
		icmp := l.(*layers.ICMPv4)
		rec.ICMPType = icmp.TypeCode.Type()
		rec.ICMPCode = icmp.TypeCode.Code()
	} else if l := packet.Layer(layers.LayerTypeICMPv6); l != nil {
		icmp := l.(*layers.ICMPv6)
		rec.ICMPType = icmp.TypeCode.Type()
		rec.ICMPCode = icmp.TypeCode.Code()
	} else {
		return nil, fmt.Errorf("unsupported transport protocol %d", rec.Protocol)
	}

	return rec, nil
}

func tcpFlags(t *layers.TCP) uint8 {
	var f uint8
	if t.FIN {
		f |= 0x01
	}
	if t.SYN {
		f |= 0x02
	}
	if t.RST {
		f |= 0x04
	}
	if t.PSH {
		f |= 0x08
	}
	if t.ACK {
		f |= 0x10
	}
	if t.URG {
		f |= 0x20
	}
	return f
}
