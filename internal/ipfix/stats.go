package ipfix

import (
	"fmt"
	"io"
)

// Stats accumulates session counters without altering translation behavior.
type Stats struct {
	// Messages is the count of wire messages written or read.
	Messages uint64

	// Templates counts template records announced (exporter) or distinct
	// templates learned (collector).
	Templates uint64

	// DataRecords counts flow records translated.
	DataRecords uint64

	// SkippedSets counts data sets dropped for referencing an unknown
	// template. Always zero on the exporter side.
	SkippedSets uint64
}

// WriteReport emits the counters as stable field: value lines.
func (s Stats) WriteReport(w io.Writer) {
	fmt.Fprintf(w, "messages: %d\n", s.Messages)
	fmt.Fprintf(w, "templates: %d\n", s.Templates)
	fmt.Fprintf(w, "records: %d\n", s.DataRecords)
	fmt.Fprintf(w, "skipped-sets: %d\n", s.SkippedSets)
}
