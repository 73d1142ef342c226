package utils

import "strings"

// ParseIDList splits a comma-separated list of Discord ids. Tokens are
// trimmed and only those made entirely of ASCII digits are kept; anything
// else is dropped without error. The result is never nil.
func ParseIDList(raw string) []string {
	ids := []string{}
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if IsNumeric(token) {
			ids = append(ids, token)
		}
	}
	return ids
}

// IsNumeric reports whether value is non-empty and contains only 0-9.
func IsNumeric(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}
