package main

import (
	"context"
	"flag"
	"log"

	"github.com/movsoftware/silk-sub021/internal/config"
	"github.com/movsoftware/silk-sub021/internal/flowfile"
	"github.com/movsoftware/silk-sub021/internal/sink"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "YAML config file")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: flowstore [-config file] stream")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	rc, err := flowfile.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to open stream: %v", err)
	}
	defer rc.Close()

	w, err := sink.NewClickHouseWriter(cfg.ClickHouse)
	if err != nil {
		log.Fatalf("Failed to create ClickHouse writer: %v", err)
	}
	defer w.Close()

	rows, err := w.Load(context.Background(), rc.Reader)
	if err != nil {
		log.Fatalf("Load failed: %v", err)
	}
	log.Printf("Inserted %d records from %s", rows, flag.Arg(0))
}
