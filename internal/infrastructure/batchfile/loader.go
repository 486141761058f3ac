// Package batchfile reads offline candidate batches from JSON files.
package batchfile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"HotspotLite/internal/domain"
)

// Kind is reported as the batch kind of file imports.
const Kind = "file"

const schemaName = "candidate_batch.schema.json"

//go:embed candidate_batch.schema.json
var candidateBatchSchemaJSON string

type fileBatch struct {
	SourceID   string             `json:"sourceId"`
	SourceType domain.SourceType  `json:"sourceType"`
	Candidates []domain.Candidate `json:"candidates"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// LoadFile reads and validates the batch stored at path.
func LoadFile(path string) (domain.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load validates the JSON document against the embedded schema and returns it
// as a batch. Candidates without their own sourceId or sourceType inherit the
// batch-level values. Empty titles and URLs pass; the upsert engine drops them.
func Load(r io.Reader) (domain.Batch, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("read batch: %w", err)
	}

	value, err := decodeStrictJSON(raw)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("decode batch JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return domain.Batch{}, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return domain.Batch{}, fmt.Errorf("schema validation failed: %w", err)
	}

	var fb fileBatch
	if err := json.Unmarshal(raw, &fb); err != nil {
		return domain.Batch{}, fmt.Errorf("unmarshal batch: %w", err)
	}

	sourceID := strings.TrimSpace(fb.SourceID)
	for i := range fb.Candidates {
		if fb.Candidates[i].SourceID == "" {
			fb.Candidates[i].SourceID = sourceID
		}
		if fb.Candidates[i].SourceType == "" {
			fb.Candidates[i].SourceType = fb.SourceType
		}
	}

	return domain.Batch{SourceID: sourceID, Kind: Kind, Candidates: fb.Candidates}, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource(schemaName, strings.NewReader(candidateBatchSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile(schemaName)
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("batch is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("batch contains trailing content")
	}
	return value, nil
}
