// Package sink loads flow streams into external stores.
package sink

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/movsoftware/silk-sub021/internal/config"
	"github.com/movsoftware/silk-sub021/internal/flowfile"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS flow_records (
    SrcIP       String,
    DstIP       String,
    SrcPort     UInt16,
    DstPort     UInt16,
    Protocol    UInt8,
    Packets     UInt64,
    Bytes       UInt64,
    StartTime   DateTime64(3),
    EndTime     DateTime64(3),
    Sensor      UInt16,
    Application UInt16,
    InitFlags   UInt8,
    SessFlags   UInt8
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(StartTime)
ORDER BY (Sensor, StartTime);
`

// ClickHouseWriter batches flow records into a ClickHouse table.
type ClickHouseWriter struct {
	conn driver.Conn
}

// NewClickHouseWriter connects and ensures the target table exists.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured table exists.")

	return &ClickHouseWriter{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: false,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Load drains a stream into the flow_records table in one batch and returns
// the number of rows inserted.
func (w *ClickHouseWriter) Load(ctx context.Context, r *flowfile.Reader) (uint64, error) {
	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO flow_records")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	var rows uint64
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		err = batch.Append(
			rec.SrcIP.String(),
			rec.DstIP.String(),
			rec.SrcPort,
			rec.DstPort,
			rec.Protocol,
			rec.Packets,
			rec.Bytes,
			rec.StartTime,
			rec.EndTime(),
			rec.Sensor,
			rec.Application,
			rec.InitFlags,
			rec.SessFlags,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to append record to batch: %w", err)
		}
		rows++
	}

	if rows == 0 {
		return 0, nil // Nothing to insert
	}
	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}
	return rows, nil
}

// Close releases the connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
