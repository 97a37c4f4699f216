package alignment

import (
	"fmt"
	"strings"
)

// Granularity of the alignment
type Granularity string

const (
	// Word level
	Word Granularity = "word"
	// Phoneme level
	Phoneme Granularity = "phoneme"
)

// ParseGranularity validates granularity param, empty means phoneme
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(strings.ToLower(s)) {
	case "", Phoneme:
		return Phoneme, nil
	case Word:
		return Word, nil
	}
	return "", fmt.Errorf("wrong type '%s'", s)
}

// Tokens splits the text to alignment tokens, empty tokens are dropped
func Tokens(text string, g Granularity) []string {
	if g == Phoneme {
		return strings.Fields(text)
	}
	res := []string{}
	for _, s := range strings.Split(text, " ") {
		if s != "" {
			res = append(res, s)
		}
	}
	return res
}
