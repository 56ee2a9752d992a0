package toolreg

import (
	"encoding/json"
	"fmt"
	"math"
)

// Args holds validated tool arguments. Accessors assume validation already
// ran, so a type mismatch can only mean the argument was absent.
type Args map[string]any

// String returns a string argument, or "" when absent.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns an integer argument, or def when absent.
func (a Args) Int(name string, def int) int {
	v, ok := a[name]
	if !ok {
		return def
	}
	f, ok := v.(float64)
	if !ok {
		return def
	}
	return int(f)
}

// Bool returns a boolean argument, or def when absent.
func (a Args) Bool(name string, def bool) bool {
	v, ok := a[name].(bool)
	if !ok {
		return def
	}
	return v
}

// validateArgs checks raw JSON arguments against the schema: the payload
// must be a JSON object, every required parameter must be present, and
// every declared parameter that is present must match its declared type.
// Undeclared extra arguments are ignored; models add them routinely.
func validateArgs(schema Schema, rawArgs json.RawMessage) (Args, error) {
	args := map[string]any{}
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, fmt.Errorf("arguments are not a JSON object: %v", err)
		}
	}

	for _, p := range schema.Params {
		v, present := args[p.Name]
		if !present {
			if p.Required {
				return nil, fmt.Errorf("%s: required argument missing", p.Name)
			}
			continue
		}
		if err := checkType(p, v); err != nil {
			return nil, err
		}
	}
	return args, nil
}

func checkType(p Param, v any) error {
	switch p.Type {
	case TypeString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%s: expected string", p.Name)
		}
	case TypeInteger:
		f, ok := v.(float64)
		if !ok || f != math.Trunc(f) {
			return fmt.Errorf("%s: expected integer", p.Name)
		}
	case TypeNumber:
		if _, ok := v.(float64); !ok {
			return fmt.Errorf("%s: expected number", p.Name)
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("%s: expected boolean", p.Name)
		}
	default:
		return fmt.Errorf("%s: unsupported parameter type %q", p.Name, p.Type)
	}
	return nil
}
