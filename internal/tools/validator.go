package tools

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
)

// Validate checks args against a tool's input schema: required fields must
// be present and non-null, and every declared field must match its primitive
// type. A JSON null on an optional field counts as absent. Undeclared fields
// are ignored.
func Validate(args map[string]any, schema mcp.ToolInputSchema) error {
	for _, field := range schema.Required {
		if v, exists := args[field]; !exists || v == nil {
			return fmt.Errorf("missing required field: %s", field)
		}
	}

	for key, value := range args {
		if value == nil {
			continue
		}
		expected := expectedType(schema.Properties[key])
		if expected == "" {
			continue
		}
		if err := validateType(value, expected); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
	}
	return nil
}

func expectedType(definition any) string {
	if def, ok := definition.(map[string]any); ok {
		if value, ok := def["type"].(string); ok {
			return value
		}
	}
	return ""
}

func validateType(value any, expected string) error {
	switch expected {
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "number":
		if isNumber(value) {
			return nil
		}
	case "integer":
		if _, ok := toInt64(value); ok {
			return nil
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	default:
		return fmt.Errorf("unsupported schema type %q", expected)
	}
	return fmt.Errorf("expected %s but got %T", expected, value)
}

func isNumber(value any) bool {
	switch v := value.(type) {
	case float32, float64:
		return true
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	}
	return false
}

// toInt64 converts whole-number values. JSON numbers decode as float64.
func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float32:
		return wholeFloat(float64(v))
	case float64:
		return wholeFloat(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
	}
	return 0, false
}

// wholeFloat accepts integral floats within the range a float64 represents
// exactly.
func wholeFloat(f float64) (int64, bool) {
	if math.Trunc(f) != f || math.IsInf(f, 0) || math.Abs(f) >= 1<<53 {
		return 0, false
	}
	return int64(f), true
}
