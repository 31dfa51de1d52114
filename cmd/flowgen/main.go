package main

import (
	"flag"
	"log"
	"os"

	"github.com/movsoftware/silk-sub021/internal/config"
	"github.com/movsoftware/silk-sub021/internal/flowfile"
	"github.com/movsoftware/silk-sub021/internal/gen"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "YAML config file")
	output := flag.String("o", "-", "Output stream (path, or - for stdout)")
	count := flag.Int("count", 0, "Override the configured record count")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *count > 0 {
		cfg.Generator.Count = *count
	}
	if cfg.Generator.Count <= 0 {
		log.Fatalf("Nothing to generate: count is %d", cfg.Generator.Count)
	}

	// 2. Build the generator
	g, err := gen.New(cfg.Generator)
	if err != nil {
		log.Fatalf("Failed to create generator: %v", err)
	}

	// 3. Open the output stream
	var w *flowfile.Writer
	var commit func() error
	if *output == "-" || *output == "stdout" {
		w, err = flowfile.NewWriter(os.Stdout, g.Header())
		if err != nil {
			log.Fatalf("Failed to open output: %v", err)
		}
		commit = w.Close
	} else {
		fw, err := flowfile.Create(*output, g.Header())
		if err != nil {
			log.Fatalf("Failed to create output: %v", err)
		}
		w = fw.Writer
		commit = fw.Close
	}

	// 4. Generate
	for i := 0; i < cfg.Generator.Count; i++ {
		rec := g.Next(i)
		if err := w.Write(&rec); err != nil {
			log.Fatalf("Write failed: %v", err)
		}
	}
	if err := commit(); err != nil {
		log.Fatalf("Failed to finalize output: %v", err)
	}
	log.Printf("Generated %d records", w.Count())
}
