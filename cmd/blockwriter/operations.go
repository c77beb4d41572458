package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

// operationsFile is the document read by render, apply and submit.
type operationsFile struct {
	Operations []*core.WriteOperation `yaml:"operations" json:"operations"`
}

func loadOperations(path string) ([]*core.WriteOperation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read operations file: %w", err)
	}
	return parseOperations(data, strings.ToLower(filepath.Ext(path)) == ".json")
}

// parseOperations decodes an operations document. Each record inherits
// its operation's table when it names none.
func parseOperations(data []byte, isJSON bool) ([]*core.WriteOperation, error) {
	var doc operationsFile
	if isJSON {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON operations: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML operations: %w", err)
	}

	if len(doc.Operations) == 0 {
		return nil, fmt.Errorf("operations file lists no operations")
	}
	for i, op := range doc.Operations {
		if op == nil {
			return nil, fmt.Errorf("operation %d is empty", i)
		}
		if op.Record == nil {
			op.Record = &core.Record{}
		}
		if op.Record.Table == "" {
			op.Record.Table = op.Table
		}
	}
	return doc.Operations, nil
}
