package codec

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	schemaBase         = "https://placekit.local/schemas/"
	placedObjectSchema = schemaBase + "placed_object.schema.json"
	envelopeSchema     = schemaBase + "envelope.schema.json"
)

var (
	schemaOnce     sync.Once
	schemaErr      error
	compiledObject *jsonschema.Schema
	compiledEnv    *jsonschema.Schema
)

func loadSchemas() error {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		for _, name := range []string{"placed_object.schema.json", "envelope.schema.json"} {
			b, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				schemaErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			if err := c.AddResource(schemaBase+name, bytes.NewReader(b)); err != nil {
				schemaErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
		}
		if compiledObject, schemaErr = c.Compile(placedObjectSchema); schemaErr != nil {
			return
		}
		compiledEnv, schemaErr = c.Compile(envelopeSchema)
	})
	return schemaErr
}

// ValidateEnvelope checks raw JSON against the envelope schema.
func ValidateEnvelope(raw []byte) error {
	return validate(raw, func() *jsonschema.Schema { return compiledEnv })
}

// ValidateRecord checks raw JSON against the placed-object schema.
func ValidateRecord(raw []byte) error {
	return validate(raw, func() *jsonschema.Schema { return compiledObject })
}

func validate(raw []byte, pick func() *jsonschema.Schema) error {
	if err := loadSchemas(); err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	return pick().Validate(doc)
}
