package tools

import "fmt"

// Validate checks args against a minimal JSON-Schema-draft-07-compatible
// object schema: required-property presence and a coarse type check on
// "string"/"number"/"integer"/"boolean"/"array"/"object". It returns a
// single message listing every violation as "{path}: {message}", joined
// with ", ".
func Validate(schema map[string]interface{}, args map[string]interface{}) (string, bool) {
	if schema == nil {
		return "", true
	}
	props, _ := schema["properties"].(map[string]interface{})
	required, _ := schema["required"].([]string)

	var problems []string
	for _, name := range required {
		if _, ok := args[name]; !ok {
			problems = append(problems, fmt.Sprintf("%s: required property missing", name))
		}
	}
	for name, value := range args {
		propSchema, ok := props[name].(map[string]interface{})
		if !ok {
			continue
		}
		wantType, _ := propSchema["type"].(string)
		if wantType == "" {
			continue
		}
		if !typeMatches(wantType, value) {
			problems = append(problems, fmt.Sprintf("%s: expected %s", name, wantType))
		}
	}
	if len(problems) == 0 {
		return "", true
	}
	msg := problems[0]
	for _, p := range problems[1:] {
		msg += ", " + p
	}
	return msg, false
}

func typeMatches(want string, value interface{}) bool {
	switch want {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case "integer":
		switch v := value.(type) {
		case float64:
			return v == float64(int64(v))
		case int, int64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	default:
		return true
	}
}
