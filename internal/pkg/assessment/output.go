package assessment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tarimas/internal/pkg/persistence"
	"github.com/airenas/tarimas/internal/pkg/utils"
)

type timestamp struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type errorOp struct {
	Type      persistence.ErrorType `json:"type"`
	Position  int                   `json:"position"`
	Expected  *string               `json:"expected"`
	Actual    *string               `json:"actual"`
	Timestamp *timestamp            `json:"timestamp"`
}

type signalQuality struct {
	IsAcceptable  bool     `json:"is_acceptable"`
	QualityScore  float64  `json:"quality_score"`
	ClippingRatio float64  `json:"clipping_ratio"`
	SilenceRatio  float64  `json:"silence_ratio"`
	SNREstimateDb float64  `json:"snr_estimate_db"`
	Warnings      []string `json:"warnings"`
}

type output struct {
	Score                json.RawMessage `json:"score"`
	Errors               json.RawMessage `json:"errors"`
	TargetIPA            string          `json:"target_ipa"`
	ActualIPA            string          `json:"actual_ipa"`
	TargetTextNormalized *string         `json:"target_text_normalized"`
	ActualTextNormalized *string         `json:"actual_text_normalized"`
	ActualText           *string         `json:"actual_text"`
	WordErrors           []errorOp       `json:"word_errors"`
	SignalQuality        *signalQuality  `json:"signal_quality"`
}

// parsed assessment output
type parsed struct {
	score  float64
	errors []errorOp
	out    *output
}

// parseOutput validates the worker output, score must be a number and errors an array
func parseOutput(data []byte) (*parsed, error) {
	var o output
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("can't decode output: %w", err)
	}
	res := &parsed{out: &o}
	if err := json.Unmarshal(o.Score, &res.score); err != nil || !isJSONNumber(o.Score) {
		return nil, fmt.Errorf("no numeric score")
	}
	if math.IsNaN(res.score) || math.IsInf(res.score, 0) {
		return nil, fmt.Errorf("wrong score")
	}
	if !bytes.HasPrefix(bytes.TrimSpace(o.Errors), []byte("[")) {
		return nil, fmt.Errorf("no errors array")
	}
	if err := json.Unmarshal(o.Errors, &res.errors); err != nil {
		return nil, fmt.Errorf("can't decode errors: %w", err)
	}
	return res, nil
}

func isJSONNumber(b json.RawMessage) bool {
	s := bytes.TrimSpace(b)
	return len(s) > 0 && (s[0] == '-' || (s[0] >= '0' && s[0] <= '9'))
}

var powsmSplit = regexp.MustCompile(`/+`)

// normalizePhonemes turns /a//ɪ//n/ into "a ɪ n"
func normalizePhonemes(s string) string {
	res := make([]string, 0)
	for _, p := range powsmSplit.Split(s, -1) {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return strings.Join(res, " ")
}

func toOperations(ops []errorOp) []persistence.ErrorOperation {
	res := make([]persistence.ErrorOperation, 0, len(ops))
	for _, op := range ops {
		switch op.Type {
		case persistence.ErrSubstitute, persistence.ErrInsert, persistence.ErrDelete:
		default:
			goapp.Log.Warn().Str("type", goapp.Sanitize(string(op.Type))).Msg("unknown error type, skip")
			continue
		}
		eo := persistence.ErrorOperation{Type: op.Type, Position: op.Position, Expected: op.Expected, Actual: op.Actual}
		if op.Timestamp != nil {
			eo.TimestampStartMs = utils.SecondsToSQLMillis(&op.Timestamp.Start)
			eo.TimestampEndMs = utils.SecondsToSQLMillis(&op.Timestamp.End)
		}
		res = append(res, eo)
	}
	return res
}

func toQuality(sq *signalQuality) *persistence.AudioQuality {
	if sq == nil {
		return nil
	}
	res := &persistence.AudioQuality{SNRDb: sq.SNREstimateDb, SilenceRatio: sq.SilenceRatio,
		ClippingRatio: sq.ClippingRatio, Status: persistence.QualityReject}
	if sq.IsAcceptable {
		res.Status = persistence.QualityAccept
		if len(sq.Warnings) > 0 {
			res.Status = persistence.QualityWarning
		}
	}
	return res
}
