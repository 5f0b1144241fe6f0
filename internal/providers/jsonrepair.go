package providers

import (
	"encoding/json"
	"regexp"
	"strings"
)

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// ParseToolArguments repairs and parses a raw tool-argument string returned
// by an LLM, which is routinely not RFC-compliant JSON. Order matters:
// lenient repair first, strict parse second, empty object last.
func ParseToolArguments(raw string) map[string]interface{} {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]interface{}{}
	}

	if repaired, ok := lenientParse(raw); ok {
		return repaired
	}

	var strict map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &strict); err == nil {
		return strict
	}

	return map[string]interface{}{}
}

// lenientParse fixes the two most common LLM mistakes: trailing commas and
// smart-quote substitution. Single-quoted strings and unquoted keys are not
// repaired.
func lenientParse(raw string) (map[string]interface{}, bool) {
	fixed := trailingCommaRe.ReplaceAllString(raw, "$1")
	fixed = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'").Replace(fixed)

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(fixed), &out); err == nil {
		return out, true
	}
	return nil, false
}
