// File: lixenwraith/confbind/helper.go
package confbind

import (
	"fmt"
	"strings"
)

// flattenMap converts a nested map[string]any to a flat map with dot-notation keys.
// Slices of maps are flattened with their element index as a key segment.
func flattenMap(nested map[string]any, prefix string) map[string]any {
	flat := make(map[string]any)

	for key, value := range nested {
		newPath := joinKey(prefix, key)

		switch v := value.(type) {
		case map[string]any:
			for subPath, subValue := range flattenMap(v, newPath) {
				flat[subPath] = subValue
			}
		case []map[string]any:
			for i, elem := range v {
				for subPath, subValue := range flattenMap(elem, joinKey(newPath, fmt.Sprint(i))) {
					flat[subPath] = subValue
				}
			}
		case []any:
			if allMaps(v) {
				for i, elem := range v {
					for subPath, subValue := range flattenMap(elem.(map[string]any), joinKey(newPath, fmt.Sprint(i))) {
						flat[subPath] = subValue
					}
				}
				continue
			}
			flat[newPath] = value
		default:
			flat[newPath] = value
		}
	}

	return flat
}

func allMaps(v []any) bool {
	if len(v) == 0 {
		return false
	}
	for _, e := range v {
		if _, ok := e.(map[string]any); !ok {
			return false
		}
	}
	return true
}

// setNestedValue sets a value in a nested map using a dot-notation path.
// Intermediate maps are created, non-map intermediates are overwritten.
func setNestedValue(nested map[string]any, path string, value any) {
	segments := strings.Split(path, ".")
	current := nested

	for i := 0; i < len(segments)-1; i++ {
		segment := segments[i]

		next, exists := current[segment]
		if nextMap, isMap := next.(map[string]any); exists && isMap {
			current = nextMap
			continue
		}
		newMap := make(map[string]any)
		current[segment] = newMap
		current = newMap
	}

	current[segments[len(segments)-1]] = value
}

// isValidKeySegment checks if a single path segment is a valid TOML bare key part.
func isValidKeySegment(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !(isLetter || isDigit || r == '_' || r == '-') {
			return false
		}
	}
	return true
}

// validateKey checks every dot-separated segment of key.
func validateKey(key string) error {
	for _, segment := range strings.Split(key, ".") {
		if !isValidKeySegment(segment) {
			return fmt.Errorf("invalid key segment %q in %q", segment, key)
		}
	}
	return nil
}

const escapeChar = '\\'

// splitEscaped splits s on sep, honoring backslash escapes. Escapes are kept in the parts.
func splitEscaped(s string, sep rune) []string {
	var parts []string
	var b strings.Builder
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			b.WriteRune(escapeChar)
			b.WriteRune(r)
			escaped = false
		case r == escapeChar:
			escaped = true
		case r == sep:
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	if escaped {
		b.WriteRune(escapeChar)
	}
	return append(parts, b.String())
}

// cutEscaped splits s around the first unescaped sep.
func cutEscaped(s string, sep rune) (before, after string, found bool) {
	escaped := false
	for i, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == escapeChar:
			escaped = true
		case r == sep:
			return s[:i], s[i+len(string(sep)):], true
		}
	}
	return s, "", false
}

// unescape drops one level of backslash escaping.
func unescape(s string) string {
	if !strings.ContainsRune(s, escapeChar) {
		return s
	}
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if !escaped && r == escapeChar {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	if escaped {
		b.WriteRune(escapeChar)
	}
	return b.String()
}

// escape backslash-escapes the escape character and every special rune.
func escape(s string, specials ...rune) string {
	var b strings.Builder
	for _, r := range s {
		if r == escapeChar || strings.ContainsRune(string(specials), r) {
			b.WriteRune(escapeChar)
		}
		b.WriteRune(r)
	}
	return b.String()
}
