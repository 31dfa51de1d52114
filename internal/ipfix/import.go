package ipfix

import (
	"errors"
	"fmt"
	"io"

	"github.com/movsoftware/silk-sub021/internal/core/model"
)

// Collector is one collecting session over a message stream. Templates are
// learned from the stream and scoped to this session; data sets referencing
// a template the session has not seen are skipped and counted rather than
// killing the session. A malformed template is fatal.
type Collector struct {
	r io.Reader

	templates map[uint16][]fieldSpec
	queue     []model.FlowRecord
	stats     Stats
	failed    error
}

// NewCollector starts a collecting session reading from r.
func NewCollector(r io.Reader) *Collector {
	return &Collector{r: r, templates: make(map[uint16][]fieldSpec)}
}

// Next returns the next decoded record, or io.EOF when the message stream
// ends cleanly. Once a fatal session error is returned every later call
// repeats it.
func (c *Collector) Next() (model.FlowRecord, error) {
	if c.failed != nil {
		return model.FlowRecord{}, c.failed
	}
	for len(c.queue) == 0 {
		if err := c.readMessage(); err != nil {
			if err != io.EOF {
				c.failed = err
			}
			return model.FlowRecord{}, err
		}
	}
	rec := c.queue[0]
	c.queue = c.queue[1:]
	return rec, nil
}

// Stats reports the session's running counters.
func (c *Collector) Stats() Stats { return c.stats }

func (c *Collector) readMessage() error {
	_, body, err := readMessage(c.r)
	if err != nil {
		return err
	}
	return c.handleBody(body)
}

// DecodeMessage processes one standalone framed message, as delivered by a
// message-bus transport, and returns the records it yielded. Session state
// (templates, stats, fatal errors) carries across calls.
func (c *Collector) DecodeMessage(msg []byte) ([]model.FlowRecord, error) {
	if c.failed != nil {
		return nil, c.failed
	}
	if len(msg) < msgHeaderSize {
		return nil, fmt.Errorf("%w: %d-byte message", ErrMalformedMessage, len(msg))
	}
	hdr, err := decodeMsgHeader(msg[:msgHeaderSize])
	if err != nil {
		return nil, err
	}
	if int(hdr.length) != len(msg) {
		return nil, fmt.Errorf("%w: declared %d bytes, got %d", ErrMalformedMessage, hdr.length, len(msg))
	}
	if err := c.handleBody(msg[msgHeaderSize:]); err != nil {
		c.failed = err
		return nil, err
	}
	out := c.queue
	c.queue = nil
	return out, nil
}

func (c *Collector) handleBody(body []byte) error {
	c.stats.Messages++
	return eachSet(body, func(setID uint16, payload []byte) error {
		switch {
		case setID == templateSetID:
			return parseTemplateSet(payload, c.learnTemplate)
		case setID >= minDataSetID:
			if err := c.decodeDataSet(setID, payload); err != nil {
				if errors.Is(err, ErrUnknownTemplate) {
					c.stats.SkippedSets++
					return nil
				}
				return err
			}
			return nil
		default:
			// Options template sets and other reserved ids carry nothing
			// this bridge maps; ignore them.
			return nil
		}
	})
}

func (c *Collector) learnTemplate(id uint16, fields []fieldSpec) error {
	if _, ok := c.templates[id]; !ok {
		c.stats.Templates++
	}
	c.templates[id] = fields
	return nil
}

func (c *Collector) decodeDataSet(setID uint16, payload []byte) error {
	fields, ok := c.templates[setID]
	if !ok {
		return fmt.Errorf("%w: data set %d", ErrUnknownTemplate, setID)
	}
	width := recordWidth(fields)
	for len(payload) >= width {
		var rec model.FlowRecord
		var scratch recordScratch
		for _, f := range fields {
			applyField(&rec, &scratch, f, payload[:f.length])
			payload = payload[f.length:]
		}
		scratch.finish(&rec)
		c.queue = append(c.queue, rec)
		c.stats.DataRecords++
	}
	if len(payload) > 0 && !allZero(payload) {
		return fmt.Errorf("%w: data set %d leaves %d undecodable bytes", ErrMalformedMessage, setID, len(payload))
	}
	return nil
}
