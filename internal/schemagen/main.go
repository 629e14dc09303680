package main

import (
	"flag"
	"log"
	"os"

	"github.com/macropower/krun/pkg/config"
	"github.com/macropower/krun/pkg/schema"
)

var outFile = flag.String("o", "schema.json", "Output file for the generated schema")

func main() {
	flag.Parse()

	gen := schema.NewGenerator(config.New(), "github.com/macropower/krun/pkg/config", "./")

	jsData, err := gen.Generate()
	if err != nil {
		log.Fatalf("generate JSON schema: %v", err)
	}

	err = os.WriteFile(*outFile, jsData, 0o600)
	if err != nil {
		log.Fatalf("write schema file: %v", err)
	}
}
