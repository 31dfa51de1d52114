package main

import (
	"flag"
	"io"
	"log"
	"os"

	"github.com/movsoftware/silk-sub021/internal/bus"
	"github.com/movsoftware/silk-sub021/internal/config"
	"github.com/movsoftware/silk-sub021/internal/flowfile"
	"github.com/movsoftware/silk-sub021/internal/ipfix"
)

func main() {
	output := flag.String("o", "-", "Output for IPFIX messages (path, or - for stdout)")
	useNATS := flag.Bool("nats", false, "Publish messages to the NATS subject from the config file")
	configPath := flag.String("config", "", "YAML config file (required with -nats)")
	domain := flag.Uint("domain", 0, "Observation domain id")
	flush := flag.Int("flush", 32, "Records per data message")
	refresh := flag.Int("refresh", 0, "Data messages between template refreshes (0 = off)")
	stats := flag.Bool("stats", false, "Report session statistics on exit")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: flowexport [-o out] [-nats -config file] [-stats] stream")
	}

	// 1. Open the native stream.
	in, err := openInput(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	defer in.Close()
	r, err := flowfile.NewReader(in)
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}

	// 2. Pick the message sink: file, stdout, or NATS.
	var sink io.Writer
	var cleanup func()
	if *useNATS {
		if *configPath == "" {
			log.Fatalf("-nats requires -config")
		}
		cfg, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		pub, err := bus.NewPublisher(cfg.Bus)
		if err != nil {
			log.Fatalf("Failed to connect publisher: %v", err)
		}
		sink = pub
		cleanup = pub.Close
	} else if *output == "-" || *output == "stdout" {
		sink = os.Stdout
	} else {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("Failed to create output: %v", err)
		}
		defer f.Close()
		sink = f
	}

	// 3. Run the export session.
	exp := ipfix.NewExporter(sink, ipfix.ExporterOptions{
		DomainID:        uint32(*domain),
		FlushRecords:    *flush,
		TemplateRefresh: *refresh,
	})
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Read failed: %v", err)
		}
		if err := exp.Write(&rec); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
	}
	if err := exp.Close(); err != nil {
		log.Fatalf("Export failed: %v", err)
	}
	if cleanup != nil {
		cleanup()
	}

	if *stats {
		exp.Stats().WriteReport(os.Stderr)
	}
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" || path == "stdin" {
		return os.Stdin, nil
	}
	return os.Open(path)
}
