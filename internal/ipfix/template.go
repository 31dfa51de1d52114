package ipfix

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/movsoftware/silk-sub021/internal/core/model"
)

// IANA information elements used by the bridge.
const (
	ieOctetDeltaCount     = 1
	iePacketDeltaCount    = 2
	ieProtocolIdentifier  = 4
	ieIPClassOfService    = 5
	ieTCPControlBits      = 6
	ieSrcPort             = 7
	ieSrcIPv4             = 8
	ieIngressInterface    = 10
	ieDstPort             = 11
	ieDstIPv4             = 12
	ieEgressInterface     = 14
	ieSrcIPv6             = 27
	ieDstIPv6             = 28
	ieICMPTypeCode        = 32
	ieFlowStartMillis     = 152
	ieFlowEndMillis       = 153
)

// CERT private enterprise elements (PEN 6871) carrying the flow fields the
// IANA registry has no home for.
const (
	certPEN = 6871

	ieInitialTCPFlags = 14
	ieUnionTCPFlags   = 15
	ieFlowType        = 30
	ieFlowSensor      = 31
	ieAppLabel        = 33
	ieFlowAttributes  = 40
)

// Template ids for the two record shapes of a session.
const (
	TemplateIPv4 uint16 = 256
	TemplateIPv6 uint16 = 257
)

const enterpriseBit = 0x8000

// fieldSpec is one (element, width) entry of a template. pen 0 means the
// IANA registry.
type fieldSpec struct {
	id     uint16
	pen    uint32
	length uint16
}

// commonFields is the shape-independent tail of both templates.
var commonFields = []fieldSpec{
	{id: ieSrcPort, length: 2},
	{id: ieDstPort, length: 2},
	{id: ieProtocolIdentifier, length: 1},
	{id: ieTCPControlBits, length: 1},
	{id: ieInitialTCPFlags, pen: certPEN, length: 1},
	{id: ieUnionTCPFlags, pen: certPEN, length: 1},
	{id: iePacketDeltaCount, length: 8},
	{id: ieOctetDeltaCount, length: 8},
	{id: ieFlowStartMillis, length: 8},
	{id: ieFlowEndMillis, length: 8},
	{id: ieIngressInterface, length: 4},
	{id: ieEgressInterface, length: 4},
	{id: ieIPClassOfService, length: 1},
	{id: ieFlowType, pen: certPEN, length: 1},
	{id: ieFlowSensor, pen: certPEN, length: 2},
	{id: ieAppLabel, pen: certPEN, length: 2},
	{id: ieFlowAttributes, pen: certPEN, length: 1},
	{id: ieICMPTypeCode, length: 2},
}

func templateFields(format model.RecordFormat) []fieldSpec {
	var addr []fieldSpec
	if format == model.FormatIPv6 {
		addr = []fieldSpec{{id: ieSrcIPv6, length: 16}, {id: ieDstIPv6, length: 16}}
	} else {
		addr = []fieldSpec{{id: ieSrcIPv4, length: 4}, {id: ieDstIPv4, length: 4}}
	}
	return append(addr, commonFields...)
}

// templateID maps a record shape to its session-stable template id.
func templateID(format model.RecordFormat) uint16 {
	if format == model.FormatIPv6 {
		return TemplateIPv6
	}
	return TemplateIPv4
}

func recordWidth(fields []fieldSpec) int {
	var n int
	for _, f := range fields {
		n += int(f.length)
	}
	return n
}

// encodeTemplateRecord serializes one template record for a template set.
func encodeTemplateRecord(id uint16, fields []fieldSpec) []byte {
	buf := make([]byte, 0, 4+8*len(fields))
	buf = binary.BigEndian.AppendUint16(buf, id)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(fields)))
	for _, f := range fields {
		if f.pen != 0 {
			buf = binary.BigEndian.AppendUint16(buf, f.id|enterpriseBit)
			buf = binary.BigEndian.AppendUint16(buf, f.length)
			buf = binary.BigEndian.AppendUint32(buf, f.pen)
		} else {
			buf = binary.BigEndian.AppendUint16(buf, f.id)
			buf = binary.BigEndian.AppendUint16(buf, f.length)
		}
	}
	return buf
}

// parseTemplateSet decodes every template record of one template set.
// Fixed-width fields only: a variable-length element (0xFFFF) has no place
// in this bridge's record shapes and marks the template as malformed.
func parseTemplateSet(payload []byte, fn func(id uint16, fields []fieldSpec) error) error {
	for len(payload) > 0 {
		if len(payload) < 4 {
			// Trailing padding is legal; anything shorter than one field
			// spec but not zeroed is not.
			if allZero(payload) {
				return nil
			}
			return fmt.Errorf("%w: %d trailing bytes", ErrMalformedTemplate, len(payload))
		}
		id := binary.BigEndian.Uint16(payload[0:2])
		count := int(binary.BigEndian.Uint16(payload[2:4]))
		if id == 0 && count == 0 && allZero(payload) {
			return nil // padding
		}
		if id < minDataSetID {
			return fmt.Errorf("%w: template id %d below %d", ErrMalformedTemplate, id, minDataSetID)
		}
		if count == 0 {
			return fmt.Errorf("%w: template %d with zero fields", ErrMalformedTemplate, id)
		}
		payload = payload[4:]

		fields := make([]fieldSpec, 0, count)
		for i := 0; i < count; i++ {
			if len(payload) < 4 {
				return fmt.Errorf("%w: template %d truncated at field %d", ErrMalformedTemplate, id, i)
			}
			spec := fieldSpec{
				id:     binary.BigEndian.Uint16(payload[0:2]),
				length: binary.BigEndian.Uint16(payload[2:4]),
			}
			payload = payload[4:]
			if spec.id&enterpriseBit != 0 {
				if len(payload) < 4 {
					return fmt.Errorf("%w: template %d truncated enterprise field %d", ErrMalformedTemplate, id, i)
				}
				spec.id &^= enterpriseBit
				spec.pen = binary.BigEndian.Uint32(payload[0:4])
				payload = payload[4:]
			}
			if spec.length == 0 || spec.length == 0xFFFF {
				return fmt.Errorf("%w: template %d field %d length %d", ErrMalformedTemplate, id, i, spec.length)
			}
			fields = append(fields, spec)
		}
		if err := fn(id, fields); err != nil {
			return err
		}
	}
	return nil
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// encodeDataRecord lays one record out per the template's field list.
func encodeDataRecord(rec *model.FlowRecord, fields []fieldSpec) ([]byte, error) {
	buf := make([]byte, 0, recordWidth(fields))
	for _, f := range fields {
		val, err := fieldValue(rec, f)
		if err != nil {
			return nil, err
		}
		buf = append(buf, val...)
	}
	return buf, nil
}

func fieldValue(rec *model.FlowRecord, f fieldSpec) ([]byte, error) {
	u16 := func(v uint16) []byte { return binary.BigEndian.AppendUint16(nil, v) }
	u32 := func(v uint32) []byte { return binary.BigEndian.AppendUint32(nil, v) }
	u64 := func(v uint64) []byte { return binary.BigEndian.AppendUint64(nil, v) }

	if f.pen == certPEN {
		switch f.id {
		case ieInitialTCPFlags:
			return []byte{rec.InitFlags}, nil
		case ieUnionTCPFlags:
			return []byte{rec.SessFlags}, nil
		case ieFlowType:
			return []byte{rec.Type}, nil
		case ieFlowSensor:
			return u16(rec.Sensor), nil
		case ieAppLabel:
			return u16(rec.Application), nil
		case ieFlowAttributes:
			return []byte{rec.Attributes}, nil
		}
		return nil, fmt.Errorf("unmapped enterprise element %d", f.id)
	}

	switch f.id {
	case ieSrcIPv4:
		return addrBytes(rec.SrcIP, 4)
	case ieDstIPv4:
		return addrBytes(rec.DstIP, 4)
	case ieSrcIPv6:
		return addrBytes(rec.SrcIP, 16)
	case ieDstIPv6:
		return addrBytes(rec.DstIP, 16)
	case ieSrcPort:
		return u16(rec.SrcPort), nil
	case ieDstPort:
		return u16(rec.DstPort), nil
	case ieProtocolIdentifier:
		return []byte{rec.Protocol}, nil
	case ieTCPControlBits:
		return []byte{rec.SessFlags}, nil
	case iePacketDeltaCount:
		return u64(rec.Packets), nil
	case ieOctetDeltaCount:
		return u64(rec.Bytes), nil
	case ieFlowStartMillis:
		return u64(uint64(rec.StartTime.UnixMilli())), nil
	case ieFlowEndMillis:
		return u64(uint64(rec.EndTime().UnixMilli())), nil
	case ieIngressInterface:
		return u32(uint32(rec.Input)), nil
	case ieEgressInterface:
		return u32(uint32(rec.Output)), nil
	case ieIPClassOfService:
		return []byte{rec.Class}, nil
	case ieICMPTypeCode:
		return u16(uint16(rec.ICMPType)<<8 | uint16(rec.ICMPCode)), nil
	}
	return nil, fmt.Errorf("unmapped element %d", f.id)
}

func addrBytes(ip net.IP, width int) ([]byte, error) {
	out := make([]byte, width)
	if ip == nil {
		return out, nil
	}
	if width == 4 {
		v4 := ip.To4()
		if v4 == nil {
			return nil, fmt.Errorf("address %s does not fit an IPv4 element", ip)
		}
		copy(out, v4)
		return out, nil
	}
	copy(out, ip.To16())
	return out, nil
}

// recordScratch accumulates time fields that only become record fields once
// both ends of the interval are known.
type recordScratch struct {
	startMs, endMs   uint64
	hasStart, hasEnd bool
}

// expectedLength returns the width this bridge decodes an element at, or 0
// for elements it does not map.
func expectedLength(f fieldSpec) int {
	if f.pen == certPEN {
		switch f.id {
		case ieInitialTCPFlags, ieUnionTCPFlags, ieFlowType, ieFlowAttributes:
			return 1
		case ieFlowSensor, ieAppLabel:
			return 2
		}
		return 0
	}
	if f.pen != 0 {
		return 0
	}
	switch f.id {
	case ieProtocolIdentifier, ieTCPControlBits, ieIPClassOfService:
		return 1
	case ieSrcPort, ieDstPort, ieICMPTypeCode:
		return 2
	case ieSrcIPv4, ieDstIPv4, ieIngressInterface, ieEgressInterface:
		return 4
	case iePacketDeltaCount, ieOctetDeltaCount, ieFlowStartMillis, ieFlowEndMillis:
		return 8
	case ieSrcIPv6, ieDstIPv6:
		return 16
	}
	return 0
}

// applyField folds one decoded field value into a record. Elements this
// bridge does not map, or carries at a width it does not expect, are
// ignored; a collector tolerates fields it has no use for.
func applyField(rec *model.FlowRecord, scratch *recordScratch, f fieldSpec, val []byte) {
	if expectedLength(f) != len(val) {
		return
	}
	if f.pen == certPEN {
		switch f.id {
		case ieInitialTCPFlags:
			rec.InitFlags = val[0]
		case ieUnionTCPFlags:
			rec.SessFlags = val[0]
		case ieFlowType:
			rec.Type = val[0]
		case ieFlowSensor:
			rec.Sensor = binary.BigEndian.Uint16(val)
		case ieAppLabel:
			rec.Application = binary.BigEndian.Uint16(val)
		case ieFlowAttributes:
			rec.Attributes = val[0]
		}
		return
	}
	if f.pen != 0 {
		return
	}

	switch f.id {
	case ieSrcIPv4, ieSrcIPv6:
		rec.SrcIP = append(net.IP(nil), val...)
	case ieDstIPv4, ieDstIPv6:
		rec.DstIP = append(net.IP(nil), val...)
	case ieSrcPort:
		rec.SrcPort = binary.BigEndian.Uint16(val)
	case ieDstPort:
		rec.DstPort = binary.BigEndian.Uint16(val)
	case ieProtocolIdentifier:
		rec.Protocol = val[0]
	case ieTCPControlBits:
		rec.SessFlags = val[0]
	case iePacketDeltaCount:
		rec.Packets = binary.BigEndian.Uint64(val)
	case ieOctetDeltaCount:
		rec.Bytes = binary.BigEndian.Uint64(val)
	case ieFlowStartMillis:
		scratch.startMs = binary.BigEndian.Uint64(val)
		scratch.hasStart = true
	case ieFlowEndMillis:
		scratch.endMs = binary.BigEndian.Uint64(val)
		scratch.hasEnd = true
	case ieIngressInterface:
		rec.Input = uint16(binary.BigEndian.Uint32(val))
	case ieEgressInterface:
		rec.Output = uint16(binary.BigEndian.Uint32(val))
	case ieIPClassOfService:
		rec.Class = val[0]
	case ieICMPTypeCode:
		tc := binary.BigEndian.Uint16(val)
		rec.ICMPType = uint8(tc >> 8)
		rec.ICMPCode = uint8(tc)
	}
}

// finish resolves the accumulated time interval into start and duration.
func (s *recordScratch) finish(rec *model.FlowRecord) {
	if s.hasStart {
		rec.StartTime = time.UnixMilli(int64(s.startMs)).UTC()
	}
	if s.hasStart && s.hasEnd && s.endMs >= s.startMs {
		rec.Duration = time.Duration(s.endMs-s.startMs) * time.Millisecond
	}
}
