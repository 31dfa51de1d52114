package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/movsoftware/silk-sub021/internal/bus"
	"github.com/movsoftware/silk-sub021/internal/compress"
	"github.com/movsoftware/silk-sub021/internal/config"
	"github.com/movsoftware/silk-sub021/internal/core/model"
	"github.com/movsoftware/silk-sub021/internal/flowfile"
	"github.com/movsoftware/silk-sub021/internal/ipfix"
)

func main() {
	input := flag.String("i", "-", "Input IPFIX message stream (path, or - for stdin)")
	useNATS := flag.Bool("nats", false, "Collect messages from the NATS subject in the config file")
	configPath := flag.String("config", "", "YAML config file (required with -nats)")
	order := flag.String("order", "big", "Output byte order: big or little")
	compression := flag.String("compress", "none", "Output compression: none, zlib, lzo1x, snappy")
	format := flag.String("format", "ipv6", "Output record format: ipv4 or ipv6")
	stats := flag.Bool("stats", false, "Report session statistics on exit")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: flowimport [-i in | -nats -config file] [-order o] [-compress m] output")
	}

	hdr, err := outputHeader(*order, *compression, *format)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// Output stream: staged file or stdout.
	var w *flowfile.Writer
	var commit func() error
	if out := flag.Arg(0); out == "-" || out == "stdout" {
		w, err = flowfile.NewWriter(os.Stdout, hdr)
		if err != nil {
			log.Fatalf("Failed to open output: %v", err)
		}
		commit = w.Close
	} else {
		fw, err := flowfile.Create(out, hdr)
		if err != nil {
			log.Fatalf("Failed to create output: %v", err)
		}
		w = fw.Writer
		commit = fw.Close
	}

	var sessionStats ipfix.Stats
	if *useNATS {
		sessionStats, err = collectFromBus(*configPath, w)
	} else {
		sessionStats, err = collectFromStream(*input, w)
	}
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	if err := commit(); err != nil {
		log.Fatalf("Failed to finalize output: %v", err)
	}
	log.Printf("Imported %d records", w.Count())
	if *stats {
		sessionStats.WriteReport(os.Stderr)
	}
}

func outputHeader(order, compression, format string) (flowfile.Header, error) {
	hdr := flowfile.DefaultHeader()
	hdr.Format = model.FormatIPv6
	if order == "little" {
		hdr.ByteOrder = model.LittleEndian
	}
	method, err := compress.ParseMethod(compression)
	if err != nil {
		return flowfile.Header{}, err
	}
	hdr.Compression = method
	if format == "ipv4" {
		hdr.Format = model.FormatIPv4
	}
	return hdr, nil
}

func collectFromStream(input string, w *flowfile.Writer) (ipfix.Stats, error) {
	var src io.ReadCloser = os.Stdin
	if input != "-" && input != "stdin" {
		f, err := os.Open(input)
		if err != nil {
			return ipfix.Stats{}, err
		}
		defer f.Close()
		src = f
	}

	col := ipfix.NewCollector(src)
	for {
		rec, err := col.Next()
		if err == io.EOF {
			return col.Stats(), nil
		}
		if err != nil {
			return col.Stats(), err
		}
		if err := w.Write(&rec); err != nil {
			return col.Stats(), err
		}
	}
}

// collectFromBus consumes messages from NATS until interrupted or the
// session fails.
func collectFromBus(configPath string, w *flowfile.Writer) (ipfix.Stats, error) {
	if configPath == "" {
		return ipfix.Stats{}, fmt.Errorf("-nats requires -config")
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return ipfix.Stats{}, err
	}
	sub, err := bus.NewSubscriber(cfg.Bus)
	if err != nil {
		return ipfix.Stats{}, err
	}
	defer sub.Close()

	col := ipfix.NewCollector(nil)
	fatal := make(chan error, 1)
	err = sub.Start(func(msg []byte) {
		records, err := col.DecodeMessage(msg)
		if err != nil {
			select {
			case fatal <- err:
			default:
			}
			return
		}
		for i := range records {
			if err := w.Write(&records[i]); err != nil {
				select {
				case fatal <- err:
				default:
				}
				return
			}
		}
	})
	if err != nil {
		return col.Stats(), err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		log.Println("Shutdown signal received, finalizing output...")
		return col.Stats(), nil
	case err := <-fatal:
		return col.Stats(), err
	}
}
