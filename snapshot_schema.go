package main

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/snapshot.schema.json
var snapshotSchemaJSON []byte

const snapshotSchemaURL = "snapshot.schema.json"

var (
	snapshotSchemaOnce sync.Once
	snapshotSchema     *jsonschema.Schema
	snapshotSchemaErr  error
)

func compiledSnapshotSchema() (*jsonschema.Schema, error) {
	snapshotSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(snapshotSchemaURL, bytes.NewReader(snapshotSchemaJSON)); err != nil {
			snapshotSchemaErr = fmt.Errorf("add snapshot schema: %w", err)
			return
		}
		snapshotSchema, snapshotSchemaErr = c.Compile(snapshotSchemaURL)
	})
	return snapshotSchema, snapshotSchemaErr
}

// ValidateSnapshot checks a saved document against the snapshot schema.
// Import does not depend on it; callers log the result.
func ValidateSnapshot(data []byte) error {
	schema, err := compiledSnapshotSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	return schema.Validate(doc)
}
