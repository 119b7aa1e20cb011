// Package main generates configuration tooling artifacts.
//
// Usage:
//
//	go run ./cmd/schemagen          > configs/gateway.schema.json
//	go run ./cmd/schemagen defaults > configs/gateway.defaults.yaml
package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/your-org/edge-gateway/internal/config"
	"github.com/your-org/edge-gateway/internal/schema"
)

func main() {
	mode := "schema"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	var data []byte
	var err error

	switch mode {
	case "schema":
		gen := schema.NewGenerator()
		data, err = gen.Generate()
	case "defaults":
		data, err = yaml.Marshal(config.DefaultSettings())
	default:
		fmt.Fprintf(os.Stderr, "Unknown mode: %s\n", mode)
		fmt.Fprintf(os.Stderr, "Available modes: schema, defaults\n")
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating %s: %v\n", mode, err)
		os.Exit(1)
	}

	fmt.Println(string(data))
}
