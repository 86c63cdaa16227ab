package binding

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/gamma-programme/rospitch/errors"
)

//go:embed schema.json
var schemaJSON []byte

// Schema returns the JSON schema binding files are validated against.
func Schema() []byte {
	return append([]byte(nil), schemaJSON...)
}

type document struct {
	Bindings []Binding `yaml:"bindings" json:"bindings"`
}

// LoadFile reads and validates a binding file. Files ending in .json or .jsonc
// may contain comments; anything else is parsed as YAML.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "binding", "LoadFile", fmt.Sprintf("read %s", path))
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	return Parse(data)
}

// Parse validates YAML (or JSON, which is a YAML subset) against the binding
// schema and builds a table.
func Parse(data []byte) (*Table, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrParsingFailed, err), "binding", "Parse", "decode document")
	}
	if raw == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "binding", "Parse", "empty document")
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrParsingFailed, err), "binding", "Parse", "decode bindings")
	}

	return NewTable(doc.Bindings)
}

func validateSchema(raw any) error {
	docJSON, err := json.Marshal(raw)
	if err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrParsingFailed, err), "binding", "validateSchema", "marshal document")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(docJSON),
	)
	if err != nil {
		return errors.WrapFatal(err, "binding", "validateSchema", "run schema validation")
	}

	if !result.Valid() {
		var msg strings.Builder
		for _, desc := range result.Errors() {
			fmt.Fprintf(&msg, "\n  - %s: %s", desc.Field(), desc.Description())
		}
		return errors.WrapInvalid(
			fmt.Errorf("%w: schema validation failed:%s", errors.ErrInvalidConfig, msg.String()),
			"binding", "validateSchema", "validate document")
	}
	return nil
}
