package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"betterhud/server/internal/ui"
)

func main() {
	out := flag.String("out", "", "write the schema to this file instead of stdout")
	flag.Parse()

	schema, err := ui.Schema()
	if err != nil {
		log.Fatalf("failed to build schema: %v", err)
	}
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		log.Fatalf("failed to encode schema: %v", err)
	}
	data = append(data, '\n')

	if *out == "" {
		os.Stdout.Write(data)
		return
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Fatalf("failed to write %s: %v", *out, err)
	}
}
