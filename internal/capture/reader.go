package capture

import (
	"io"
	"log"

	"github.com/google/gopacket/pcapgo"

	"github.com/movsoftware/silk-sub021/internal/core/model"
)

// Reader reads packets from a pcap source.
type Reader struct {
	pr *pcapgo.Reader
}

// NewReader wraps an open pcap byte source.
func NewReader(src io.Reader) (*Reader, error) {
	pr, err := pcapgo.NewReader(src)
	if err != nil {
		return nil, err
	}
	return &Reader{pr: pr}, nil
}

// ReadRecords parses every packet into a flow record and sends it to out.
// Packets the parser rejects are logged and skipped; capture files routinely
// carry ARP and other non-IP traffic. The channel is closed when the source
// is exhausted.
func (r *Reader) ReadRecords(out chan<- *model.FlowRecord) error {
	defer close(out)
	for {
		data, ci, err := r.pr.ReadPacketData()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		rec, err := ParsePacket(data, ci.Timestamp)
		if err != nil {
			log.Printf("Skipping packet: %v", err)
			continue
		}
		out <- rec
	}
}
