package flowfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/movsoftware/silk-sub021/internal/core/model"
)

// Record field widths. Addresses come first, so the two layouts differ only
// in a constant offset past the address pair.
const (
	v4AddrBytes = 4
	v6AddrBytes = 16

	// Fixed tail after the address pair, identical for both layouts:
	// ports (2+2), protocol/flags/attributes (4), packets (8), bytes (8),
	// start msec (8), duration msec (4), sensor/input/output/application
	// (2*4), class/type/icmp type/icmp code (4).
	recordTailBytes = 4 + 4 + 8 + 8 + 8 + 4 + 8 + 4

	recordLenV4 = 2*v4AddrBytes + recordTailBytes // 56
	recordLenV6 = 2*v6AddrBytes + recordTailBytes // 80
)

const maxDurationMillis = math.MaxUint32

var (
	ErrTruncatedRecord = errors.New("truncated record")

	// ErrUnsupportedAddressFamily marks a caller contract violation:
	// an IPv6 address offered to the IPv4-only record layout.
	ErrUnsupportedAddressFamily = errors.New("unsupported address family for record format")

	// ErrFieldOverflow is returned when a record value exceeds its encoded
	// field width. Overflow is rejected, never silently wrapped.
	ErrFieldOverflow = errors.New("field value exceeds encoded width")
)

// RecordLength returns the encoded width of one record for a format, or 0
// for an unknown format.
func RecordLength(f model.RecordFormat) int {
	switch f {
	case model.FormatIPv4:
		return recordLenV4
	case model.FormatIPv6:
		return recordLenV6
	}
	return 0
}

func byteOrderOf(o model.ByteOrder) binary.ByteOrder {
	if o == model.LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// EncodeRecord serializes one record into its fixed-width form under an
// explicit byte order and record format.
func EncodeRecord(r *model.FlowRecord, order model.ByteOrder, format model.RecordFormat) ([]byte, error) {
	width := RecordLength(format)
	if width == 0 {
		return nil, fmt.Errorf("%w: format id %d", ErrUnsupportedRecordFormat, format)
	}
	if r.Duration < 0 || r.Duration.Milliseconds() > maxDurationMillis {
		return nil, fmt.Errorf("%w: duration %s does not fit 32-bit milliseconds", ErrFieldOverflow, r.Duration)
	}

	buf := make([]byte, width)
	cursor, err := putAddr(buf, 0, r.SrcIP, format)
	if err != nil {
		return nil, fmt.Errorf("source address: %w", err)
	}
	cursor, err = putAddr(buf, cursor, r.DstIP, format)
	if err != nil {
		return nil, fmt.Errorf("destination address: %w", err)
	}

	bo := byteOrderOf(order)
	bo.PutUint16(buf[cursor:], r.SrcPort)
	bo.PutUint16(buf[cursor+2:], r.DstPort)
	cursor += 4
	buf[cursor] = r.Protocol
	buf[cursor+1] = r.InitFlags
	buf[cursor+2] = r.SessFlags
	buf[cursor+3] = r.Attributes
	cursor += 4
	bo.PutUint64(buf[cursor:], r.Packets)
	cursor += 8
	bo.PutUint64(buf[cursor:], r.Bytes)
	cursor += 8
	bo.PutUint64(buf[cursor:], uint64(r.StartTime.UnixMilli()))
	cursor += 8
	bo.PutUint32(buf[cursor:], uint32(r.Duration.Milliseconds()))
	cursor += 4
	bo.PutUint16(buf[cursor:], r.Sensor)
	bo.PutUint16(buf[cursor+2:], r.Input)
	bo.PutUint16(buf[cursor+4:], r.Output)
	bo.PutUint16(buf[cursor+6:], r.Application)
	cursor += 8
	buf[cursor] = r.Class
	buf[cursor+1] = r.Type
	buf[cursor+2] = r.ICMPType
	buf[cursor+3] = r.ICMPCode
	return buf, nil
}

// DecodeRecord parses one fixed-width record. The buffer must hold exactly
// one record of the given format; anything shorter is TruncatedRecord.
func DecodeRecord(buf []byte, order model.ByteOrder, format model.RecordFormat) (model.FlowRecord, error) {
	width := RecordLength(format)
	if width == 0 {
		return model.FlowRecord{}, fmt.Errorf("%w: format id %d", ErrUnsupportedRecordFormat, format)
	}
	if len(buf) < width {
		return model.FlowRecord{}, fmt.Errorf("%w: %d of %d bytes", ErrTruncatedRecord, len(buf), width)
	}

	var r model.FlowRecord
	var cursor int
	r.SrcIP, cursor = getAddr(buf, 0, format)
	r.DstIP, cursor = getAddr(buf, cursor, format)

	bo := byteOrderOf(order)
	r.SrcPort = bo.Uint16(buf[cursor:])
	r.DstPort = bo.Uint16(buf[cursor+2:])
	cursor += 4
	r.Protocol = buf[cursor]
	r.InitFlags = buf[cursor+1]
	r.SessFlags = buf[cursor+2]
	r.Attributes = buf[cursor+3]
	cursor += 4
	r.Packets = bo.Uint64(buf[cursor:])
	cursor += 8
	r.Bytes = bo.Uint64(buf[cursor:])
	cursor += 8
	r.StartTime = time.UnixMilli(int64(bo.Uint64(buf[cursor:]))).UTC()
	cursor += 8
	r.Duration = time.Duration(bo.Uint32(buf[cursor:])) * time.Millisecond
	cursor += 4
	r.Sensor = bo.Uint16(buf[cursor:])
	r.Input = bo.Uint16(buf[cursor+2:])
	r.Output = bo.Uint16(buf[cursor+4:])
	r.Application = bo.Uint16(buf[cursor+6:])
	cursor += 8
	r.Class = buf[cursor]
	r.Type = buf[cursor+1]
	r.ICMPType = buf[cursor+2]
	r.ICMPCode = buf[cursor+3]
	return r, nil
}

func putAddr(buf []byte, cursor int, ip net.IP, format model.RecordFormat) (int, error) {
	switch format {
	case model.FormatIPv4:
		if ip == nil {
			return cursor + v4AddrBytes, nil
		}
		v4 := ip.To4()
		if v4 == nil {
			return 0, fmt.Errorf("%w: %s is not IPv4", ErrUnsupportedAddressFamily, ip)
		}
		copy(buf[cursor:], v4)
		return cursor + v4AddrBytes, nil
	default:
		if ip != nil {
			copy(buf[cursor:], ip.To16())
		}
		return cursor + v6AddrBytes, nil
	}
}

func getAddr(buf []byte, cursor int, format model.RecordFormat) (net.IP, int) {
	width := v6AddrBytes
	if format == model.FormatIPv4 {
		width = v4AddrBytes
	}
	ip := make(net.IP, width)
	copy(ip, buf[cursor:cursor+width])
	return ip, cursor + width
}
