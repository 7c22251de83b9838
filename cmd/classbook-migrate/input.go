package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iota-uz/classbook/modules/migration/domain/aggregates/dataset"
)

// readDataset loads a dataset from a .json, .yaml or .yml file, or JSON from
// stdin when path is "-". Unknown fields are rejected.
func readDataset(path string, stdin io.Reader) (*dataset.Dataset, error) {
	if strings.TrimSpace(path) == "" {
		return nil, withCode(exitUsage, fmt.Errorf("--input is required"))
	}

	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(filepath.Clean(path))
	}
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("read %s: %w", path, err))
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if raw, err = yamlToJSON(raw); err != nil {
			return nil, withCode(exitValidation, fmt.Errorf("decode %s: %w", path, err))
		}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var ds dataset.Dataset
	if err := dec.Decode(&ds); err != nil {
		return nil, withCode(exitValidation, fmt.Errorf("decode %s: %w", path, err))
	}
	return &ds, nil
}

// yamlToJSON re-encodes a YAML document so the json tags of the dataset
// apply to both formats.
func yamlToJSON(raw []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return []byte("{}"), nil
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, fmt.Errorf("expected a mapping at the top level")
	}
	return json.Marshal(doc)
}
