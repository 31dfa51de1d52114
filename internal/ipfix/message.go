// Package ipfix bridges native flow records and the IPFIX wire protocol
// (RFC 7011). The exporter side turns records into template and data-set
// messages, managing one template per record shape per session; the
// collector side rebuilds records from a message stream using the templates
// the session has announced.
package ipfix

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	// protocolVersion is the only IPFIX version on the wire.
	protocolVersion = 10

	// msgHeaderSize is the fixed message header: version, length, export
	// time, sequence number, observation domain id.
	msgHeaderSize = 16

	// setHeaderSize prefixes every set: set id and set length.
	setHeaderSize = 4

	// templateSetID is the reserved set id carrying template records.
	templateSetID = 2

	// minDataSetID is the lowest id a data set (and thus a template) may use.
	minDataSetID = 256

	// maxMessageSize bounds one message; declared lengths beyond it are
	// treated as garbage framing.
	maxMessageSize = 1 << 16
)

var (
	// ErrMalformedMessage covers unparseable message or set framing.
	ErrMalformedMessage = errors.New("malformed ipfix message")

	// ErrMalformedTemplate is fatal for the session: the template stream
	// itself cannot be trusted any further.
	ErrMalformedTemplate = errors.New("malformed ipfix template")

	// ErrUnknownTemplate marks a data set referencing a template this
	// session has not announced. It is recoverable: the set is skipped and
	// counted, and the session continues.
	ErrUnknownTemplate = errors.New("unknown ipfix template")
)

// msgHeader is the fixed IPFIX message header.
type msgHeader struct {
	length     uint16
	exportTime uint32
	sequence   uint32
	domainID   uint32
}

func encodeMsgHeader(h msgHeader) []byte {
	buf := make([]byte, msgHeaderSize)
	binary.BigEndian.PutUint16(buf[0:2], protocolVersion)
	binary.BigEndian.PutUint16(buf[2:4], h.length)
	binary.BigEndian.PutUint32(buf[4:8], h.exportTime)
	binary.BigEndian.PutUint32(buf[8:12], h.sequence)
	binary.BigEndian.PutUint32(buf[12:16], h.domainID)
	return buf
}

func decodeMsgHeader(buf []byte) (msgHeader, error) {
	if v := binary.BigEndian.Uint16(buf[0:2]); v != protocolVersion {
		return msgHeader{}, fmt.Errorf("%w: version %d", ErrMalformedMessage, v)
	}
	h := msgHeader{
		length:     binary.BigEndian.Uint16(buf[2:4]),
		exportTime: binary.BigEndian.Uint32(buf[4:8]),
		sequence:   binary.BigEndian.Uint32(buf[8:12]),
		domainID:   binary.BigEndian.Uint32(buf[12:16]),
	}
	if int(h.length) < msgHeaderSize {
		return msgHeader{}, fmt.Errorf("%w: declared length %d", ErrMalformedMessage, h.length)
	}
	return h, nil
}

// readMessage reads one length-delimited message body (sets only, header
// stripped) from r. io.EOF marks a clean end of the message stream.
func readMessage(r io.Reader) (msgHeader, []byte, error) {
	hdrBuf := make([]byte, msgHeaderSize)
	if _, err := io.ReadFull(r, hdrBuf); err != nil {
		if err == io.EOF {
			return msgHeader{}, nil, io.EOF
		}
		return msgHeader{}, nil, fmt.Errorf("%w: truncated header", ErrMalformedMessage)
	}
	hdr, err := decodeMsgHeader(hdrBuf)
	if err != nil {
		return msgHeader{}, nil, err
	}
	body := make([]byte, int(hdr.length)-msgHeaderSize)
	if _, err := io.ReadFull(r, body); err != nil {
		return msgHeader{}, nil, fmt.Errorf("%w: truncated body (%d declared)", ErrMalformedMessage, hdr.length)
	}
	return hdr, body, nil
}

// writeMessage wraps one or more encoded sets in a message header.
func writeMessage(w io.Writer, domainID, sequence uint32, exportTime time.Time, sets []byte) error {
	total := msgHeaderSize + len(sets)
	if total > maxMessageSize {
		return fmt.Errorf("message of %d bytes exceeds maximum %d", total, maxMessageSize)
	}
	// One message, one Write: transports that map writes to discrete
	// broker messages rely on it.
	msg := encodeMsgHeader(msgHeader{
		length:     uint16(total),
		exportTime: uint32(exportTime.Unix()),
		sequence:   sequence,
		domainID:   domainID,
	})
	msg = append(msg, sets...)
	_, err := w.Write(msg)
	return err
}

// encodeSet frames a set: id, length, payload.
func encodeSet(setID uint16, payload []byte) []byte {
	buf := make([]byte, setHeaderSize+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], setID)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(buf)))
	copy(buf[setHeaderSize:], payload)
	return buf
}

// eachSet walks the sets of one message body.
func eachSet(body []byte, fn func(setID uint16, payload []byte) error) error {
	for len(body) > 0 {
		if len(body) < setHeaderSize {
			return fmt.Errorf("%w: %d trailing bytes", ErrMalformedMessage, len(body))
		}
		setID := binary.BigEndian.Uint16(body[0:2])
		setLen := int(binary.BigEndian.Uint16(body[2:4]))
		if setLen < setHeaderSize || setLen > len(body) {
			return fmt.Errorf("%w: set %d declares %d of %d bytes", ErrMalformedMessage, setID, setLen, len(body))
		}
		if err := fn(setID, body[setHeaderSize:setLen]); err != nil {
			return err
		}
		body = body[setLen:]
	}
	return nil
}
