// Package inspect reports stream metadata from the fixed-size header alone,
// without decoding the record body unless a scan is explicitly requested.
package inspect

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/movsoftware/silk-sub021/internal/flowfile"
)

// Field names the inspector understands, in their default report order.
const (
	FieldFormatVersion = "format-version"
	FieldByteOrder     = "byte-order"
	FieldCompression   = "compression"
	FieldRecordFormat  = "record-format"
	FieldRecordLength  = "record-length"
	FieldRecordCount   = "record-count"
)

// DefaultFields is the full report in stable order.
var DefaultFields = []string{
	FieldFormatVersion,
	FieldByteOrder,
	FieldCompression,
	FieldRecordFormat,
	FieldRecordLength,
	FieldRecordCount,
}

// Options controls how expensive an inspection may be.
type Options struct {
	// Scan permits a full pass over the body to count records when the
	// header carries no finalized count. Without it the count is reported
	// as explicitly unknown, never silently as zero.
	Scan bool
}

// Entry is one field of a report. Entries preserve request order so the
// output is machine-parseable.
type Entry struct {
	Field string
	Value string
}

// File inspects a stream file.
func File(path string, fields []string, opts Options) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Source(f, fields, opts)
}

// Source inspects a stream from an open reader. With Scan set the source is
// consumed.
func Source(src io.Reader, fields []string, opts Options) ([]Entry, error) {
	r, err := flowfile.NewReader(src)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		fields = DefaultFields
	}

	if r.Empty() {
		entries := make([]Entry, 0, len(fields))
		for _, f := range fields {
			if f == FieldRecordCount {
				entries = append(entries, Entry{f, "0"})
			} else {
				entries = append(entries, Entry{f, "empty stream"})
			}
		}
		return entries, nil
	}

	hdr := r.Header()
	entries := make([]Entry, 0, len(fields))
	for _, f := range fields {
		switch f {
		case FieldFormatVersion:
			entries = append(entries, Entry{f, strconv.Itoa(flowfile.FileVersion)})
		case FieldByteOrder:
			entries = append(entries, Entry{f, hdr.ByteOrder.String()})
		case FieldCompression:
			entries = append(entries, Entry{f, hdr.Compression.String()})
		case FieldRecordFormat:
			entries = append(entries, Entry{f, hdr.Format.String()})
		case FieldRecordLength:
			entries = append(entries, Entry{f, strconv.Itoa(hdr.RecordLength())})
		case FieldRecordCount:
			value, err := recordCount(r, hdr, opts)
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{f, value})
		default:
			return nil, fmt.Errorf("unknown inspection field %q", f)
		}
	}
	return entries, nil
}

func recordCount(r *flowfile.Reader, hdr flowfile.Header, opts Options) (string, error) {
	if hdr.HasCount {
		return strconv.FormatUint(hdr.RecordCount, 10), nil
	}
	if !opts.Scan {
		return "unknown (stream carries no record count; scan required)", nil
	}
	for {
		if _, err := r.Next(); err == io.EOF {
			break
		} else if err != nil {
			return "", err
		}
	}
	return strconv.FormatUint(r.Count(), 10) + " (scanned)", nil
}

// WriteReport prints entries as "field: value" lines in order.
func WriteReport(w io.Writer, entries []Entry) {
	for _, e := range entries {
		fmt.Fprintf(w, "%s: %s\n", e.Field, e.Value)
	}
}
