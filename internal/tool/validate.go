package tool

import (
	"fmt"
	"sort"
)

// ErrInvalidArguments is returned (wrapped with detail) when an invocation
// fails schema validation before the handler is ever called.
type ErrInvalidArguments struct {
	Tool   string
	Reason string
}

func (e *ErrInvalidArguments) Error() string {
	return fmt.Sprintf("invalid arguments for tool %q: %s", e.Tool, e.Reason)
}

// ValidateArguments checks that required parameters are present and that
// declared types match, per spec.md §4.1. It does not attempt full
// JSON-Schema validation (no $ref, no combinators) — schemas in this
// engine are always the flat, tool-authored shape invopop/jsonschema
// would generate for a simple Go struct.
func ValidateArguments(toolName string, schema *ParameterSchema, args map[string]any) error {
	if schema == nil {
		return nil
	}

	missing := make([]string, 0)
	for _, req := range schema.Required {
		if _, ok := args[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &ErrInvalidArguments{Tool: toolName, Reason: fmt.Sprintf("missing required argument(s): %v", missing)}
	}

	for name, value := range args {
		propSchema, ok := schema.Properties[name]
		if !ok {
			continue // unknown extra arguments are tolerated unless AdditionalProperties says otherwise
		}
		if schema.AdditionalProperties != nil && !*schema.AdditionalProperties {
			// still validate known properties below; unknown properties
			// are rejected separately when present.
		}
		if err := validateType(name, propSchema.Type, value); err != nil {
			return &ErrInvalidArguments{Tool: toolName, Reason: err.Error()}
		}
	}

	if schema.AdditionalProperties != nil && !*schema.AdditionalProperties {
		for name := range args {
			if _, ok := schema.Properties[name]; !ok {
				return &ErrInvalidArguments{Tool: toolName, Reason: fmt.Sprintf("unexpected argument %q", name)}
			}
		}
	}

	return nil
}

func validateType(name, declared string, value any) error {
	if declared == "" || value == nil {
		return nil
	}
	switch declared {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("argument %q must be a string", name)
		}
	case "number":
		switch value.(type) {
		case float64, float32, int, int32, int64:
		default:
			return fmt.Errorf("argument %q must be a number", name)
		}
	case "integer":
		switch v := value.(type) {
		case int, int32, int64:
		case float64:
			if v != float64(int64(v)) {
				return fmt.Errorf("argument %q must be an integer", name)
			}
		default:
			return fmt.Errorf("argument %q must be an integer", name)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("argument %q must be a boolean", name)
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("argument %q must be an array", name)
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("argument %q must be an object", name)
		}
	}
	return nil
}
