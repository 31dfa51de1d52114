// Package bus moves encoded IPFIX messages over NATS, so exporters and
// collectors can be decoupled by a message broker instead of a direct pipe.
// Each broker message carries exactly one IPFIX message, which is
// self-describing and self-delimiting.
package bus

import (
	"log"

	"github.com/nats-io/nats.go"

	"github.com/movsoftware/silk-sub021/internal/config"
)

// Publisher publishes IPFIX messages to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.BusConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.NATSURL)
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// Write publishes one encoded IPFIX message. It satisfies io.Writer so an
// exporter can emit straight onto the bus; exporters write each message with
// a single Write call.
func (p *Publisher) Write(msg []byte) (int, error) {
	if err := p.nc.Publish(p.subject, msg); err != nil {
		return 0, err
	}
	return len(msg), nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
