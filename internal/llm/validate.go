package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/receipt-sheets-bot/internal/entity"
)

// compiled order schemas keyed by the comma-joined field list.
var schemaCache sync.Map

// OrderSchema returns the compiled schema for fields. A layout asks for the
// same fields on every receipt, so each field set is compiled once.
func OrderSchema(fields []entity.Field) (*jsonschema.Schema, error) {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	key := strings.Join(names, ",")
	if s, ok := schemaCache.Load(key); ok {
		return s.(*jsonschema.Schema), nil
	}

	b, err := json.Marshal(BuildOrderJSONSchema(fields))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("order.schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile("order.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	actual, _ := schemaCache.LoadOrStore(key, s)
	return actual.(*jsonschema.Schema), nil
}

// ValidateOrderJSON checks a sanitized extraction against the schema for fields.
func ValidateOrderJSON(fields []entity.Field, data []byte) error {
	schema, err := OrderSchema(fields)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
