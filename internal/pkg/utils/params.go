package utils

import (
	"strings"
)

// ParamTrue - returns true if string param indicates true value
func ParamTrue(prm string) bool {
	return strings.EqualFold(strings.TrimSpace(prm), "true") || prm == "1"
}

// Trunc cuts the string to at most n runes, used for long worker errors in logs
func Trunc(s string, n int) string {
	r := []rune(s)
	if n < 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
