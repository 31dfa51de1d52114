package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/movsoftware/silk-sub021/internal/inspect"
)

func main() {
	fieldsArg := flag.String("fields", "", "Comma-separated fields to report (default: all)")
	scan := flag.Bool("scan", false, "Scan the body to count records when the header has no count")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatalf("usage: flowinfo [-fields list] [-scan] stream...")
	}

	var fields []string
	if *fieldsArg != "" {
		fields = strings.Split(*fieldsArg, ",")
	}
	opts := inspect.Options{Scan: *scan}

	multiple := flag.NArg() > 1
	for _, path := range flag.Args() {
		entries, err := inspect.File(path, fields, opts)
		if err != nil {
			log.Fatalf("%s: %v", path, err)
		}
		if multiple {
			fmt.Printf("path: %s\n", path)
		}
		inspect.WriteReport(os.Stdout, entries)
	}
}
