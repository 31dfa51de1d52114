package ipfix

import (
	"fmt"
	"io"
	"time"

	"github.com/movsoftware/silk-sub021/internal/core/model"
)

// ExporterOptions tunes one export session.
type ExporterOptions struct {
	// DomainID is the observation domain stamped on every message.
	DomainID uint32

	// FlushRecords caps the data records batched into one message.
	// Defaults to 32.
	FlushRecords int

	// TemplateRefresh re-announces the session's templates after this many
	// data messages, per the protocol's refresh convention for long-lived
	// sessions. 0 disables refresh (templates still announced once).
	TemplateRefresh int

	// Now stubs the export-time clock in tests.
	Now func() time.Time
}

// Exporter is one export session: it owns the template ids it announces and
// writes template and data-set messages to w. Not safe for concurrent use.
type Exporter struct {
	w    io.Writer
	opts ExporterOptions

	announced    map[uint16][]fieldSpec
	order        []uint16
	sinceRefresh int

	batches map[uint16]*dataBatch
	seq     uint32
	stats   Stats
}

type dataBatch struct {
	buf   []byte
	count int
}

// NewExporter starts an export session writing to w.
func NewExporter(w io.Writer, opts ExporterOptions) *Exporter {
	if opts.FlushRecords <= 0 {
		opts.FlushRecords = 32
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Exporter{
		w:         w,
		opts:      opts,
		announced: make(map[uint16][]fieldSpec),
		batches:   make(map[uint16]*dataBatch),
	}
}

// Write queues one record for export, announcing its shape's template the
// first time the shape is seen in this session.
func (e *Exporter) Write(rec *model.FlowRecord) error {
	format := model.FormatIPv4
	if rec.NeedsIPv6() {
		format = model.FormatIPv6
	}
	tid := templateID(format)

	if _, ok := e.announced[tid]; !ok {
		fields := templateFields(format)
		e.announced[tid] = fields
		e.order = append(e.order, tid)
		if err := e.announce(); err != nil {
			return err
		}
	} else if e.opts.TemplateRefresh > 0 && e.sinceRefresh >= e.opts.TemplateRefresh {
		if err := e.announce(); err != nil {
			return err
		}
	}

	raw, err := encodeDataRecord(rec, e.announced[tid])
	if err != nil {
		return fmt.Errorf("record %d: %w", e.stats.DataRecords, err)
	}
	b := e.batches[tid]
	if b == nil {
		b = &dataBatch{}
		e.batches[tid] = b
	}
	b.buf = append(b.buf, raw...)
	b.count++
	e.stats.DataRecords++
	if b.count >= e.opts.FlushRecords {
		return e.flushBatch(tid)
	}
	return nil
}

// announce writes one template message carrying every template this session
// has defined, in the order they appeared.
func (e *Exporter) announce() error {
	var payload []byte
	for _, tid := range e.order {
		payload = append(payload, encodeTemplateRecord(tid, e.announced[tid])...)
		e.stats.Templates++
	}
	set := encodeSet(templateSetID, payload)
	if err := writeMessage(e.w, e.opts.DomainID, e.seq, e.opts.Now(), set); err != nil {
		return err
	}
	e.stats.Messages++
	e.sinceRefresh = 0
	return nil
}

func (e *Exporter) flushBatch(tid uint16) error {
	b := e.batches[tid]
	if b == nil || b.count == 0 {
		return nil
	}
	set := encodeSet(tid, b.buf)
	if err := writeMessage(e.w, e.opts.DomainID, e.seq, e.opts.Now(), set); err != nil {
		return err
	}
	e.seq += uint32(b.count)
	e.stats.Messages++
	e.sinceRefresh++
	b.buf = b.buf[:0]
	b.count = 0
	return nil
}

// Flush drains every pending batch, shapes in announcement order.
func (e *Exporter) Flush() error {
	for _, tid := range e.order {
		if err := e.flushBatch(tid); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes the session. The underlying writer is the caller's to close.
func (e *Exporter) Close() error { return e.Flush() }

// Stats reports the session's running counters.
func (e *Exporter) Stats() Stats { return e.stats }
