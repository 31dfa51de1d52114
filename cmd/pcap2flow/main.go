package main

import (
	"flag"
	"io"
	"log"
	"os"

	"github.com/movsoftware/silk-sub021/internal/capture"
	"github.com/movsoftware/silk-sub021/internal/compress"
	"github.com/movsoftware/silk-sub021/internal/core/model"
	"github.com/movsoftware/silk-sub021/internal/flowfile"
)

func main() {
	output := flag.String("o", "-", "Output stream (path, or - for stdout)")
	order := flag.String("order", "big", "Output byte order: big or little")
	compression := flag.String("compress", "none", "Output compression: none, zlib, lzo1x, snappy")
	format := flag.String("format", "ipv6", "Output record format: ipv4 or ipv6")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: pcap2flow [-o out] [-order o] [-compress m] [-format f] capture.pcap")
	}

	var in io.ReadCloser = os.Stdin
	if path := flag.Arg(0); path != "-" && path != "stdin" {
		f, err := os.Open(path)
		if err != nil {
			log.Fatalf("Failed to open capture: %v", err)
		}
		defer f.Close()
		in = f
	}

	pr, err := capture.NewReader(in)
	if err != nil {
		log.Fatalf("Failed to read pcap header: %v", err)
	}

	hdr := flowfile.DefaultHeader()
	if *order == "little" {
		hdr.ByteOrder = model.LittleEndian
	}
	if hdr.Compression, err = compress.ParseMethod(*compression); err != nil {
		log.Fatalf("%v", err)
	}
	if *format == "ipv6" {
		hdr.Format = model.FormatIPv6
	}

	var w *flowfile.Writer
	var commit func() error
	if *output == "-" || *output == "stdout" {
		w, err = flowfile.NewWriter(os.Stdout, hdr)
		if err != nil {
			log.Fatalf("Failed to open output: %v", err)
		}
		commit = w.Close
	} else {
		fw, err := flowfile.Create(*output, hdr)
		if err != nil {
			log.Fatalf("Failed to create output: %v", err)
		}
		w = fw.Writer
		commit = fw.Close
	}

	records := make(chan *model.FlowRecord, 256)
	readErr := make(chan error, 1)
	go func() {
		readErr <- pr.ReadRecords(records)
	}()

	for rec := range records {
		if err := w.Write(rec); err != nil {
			log.Fatalf("Write failed: %v", err)
		}
	}
	if err := <-readErr; err != nil {
		log.Fatalf("Capture read failed: %v", err)
	}
	if err := commit(); err != nil {
		log.Fatalf("Failed to finalize output: %v", err)
	}
	log.Printf("Converted %d packets", w.Count())
}
