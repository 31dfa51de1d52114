package main

import (
	"flag"
	"log"

	"github.com/movsoftware/silk-sub021/internal/flowfile"
)

func main() {
	create := flag.Bool("create", false, "Create the destination if it does not exist")
	template := flag.String("template", "", "Stream whose header seeds a created destination")
	flag.Parse()

	if flag.NArg() < 2 {
		log.Fatalf("usage: flowappend [-create] [-template stream] destination source...")
	}
	dst := flag.Arg(0)
	if dst == "-" || dst == "stdout" {
		log.Fatalf("destination %q: %v", dst, flowfile.ErrNotAppendable)
	}

	res, err := flowfile.Append(dst, flag.Args()[1:], flowfile.AppendOptions{
		Create:   *create,
		Template: *template,
	})
	if err != nil {
		log.Fatalf("Append failed: %v", err)
	}

	if res.TotalKnown {
		log.Printf("Appended %d records to %s (%d total)", res.Appended, dst, res.Total)
	} else {
		log.Printf("Appended %d records to %s (total unknown)", res.Appended, dst)
	}
}
