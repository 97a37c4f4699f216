package alignment

import (
	"database/sql"

	"github.com/airenas/tarimas/internal/pkg/persistence"
)

// Token is one aligned token with its error if any
type Token struct {
	Text  string `json:"text"`
	Error *Error `json:"error,omitempty"`
}

// Error is the operation attached to a token, timestamps allow seeking in the recording
type Error struct {
	Type             persistence.ErrorType `json:"type"`
	Position         int                   `json:"position"`
	Expected         *string               `json:"expected,omitempty"`
	Actual           *string               `json:"actual,omitempty"`
	TimestampStartMs *int64                `json:"timestampStartMs,omitempty"`
	TimestampEndMs   *int64                `json:"timestampEndMs,omitempty"`
}

// View is the alignment of both sequences ready for display
type View struct {
	Type       Granularity `json:"type"`
	Target     []Token     `json:"target"`
	Recognized []Token     `json:"recognized"`
	Errors     int         `json:"errors"`
}

// Align tokenizes both texts and maps stored operations to the tokens.
// Word level operations are optional in the worker output, if none are stored
// for differing texts they are computed from the tokens.
func Align(targetText, recognizedText string, g Granularity, ops []persistence.ErrorOperation) *View {
	target, recognized := Tokens(targetText, g), Tokens(recognizedText, g)
	if len(ops) == 0 && g == Word && !equal(target, recognized) {
		ops = EditOperations(recognized, target)
	}
	r := Reconstruct(target, recognized, ops)
	return &View{Type: g, Target: toTokens(target, r.TargetErrors), Recognized: toTokens(recognized, r.RecognizedErrors),
		Errors: len(ops)}
}

func toTokens(s []string, errs map[int]persistence.ErrorOperation) []Token {
	res := make([]Token, len(s))
	for i, t := range s {
		res[i].Text = t
		if op, ok := errs[i]; ok {
			res[i].Error = toError(op)
		}
	}
	return res
}

func toError(op persistence.ErrorOperation) *Error {
	return &Error{Type: op.Type, Position: op.Position, Expected: op.Expected, Actual: op.Actual,
		TimestampStartMs: ptrInt(op.TimestampStartMs), TimestampEndMs: ptrInt(op.TimestampEndMs)}
}

func ptrInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
