package persistence

import (
	"bytes"
	"database/sql"
	"time"

	"github.com/airenas/tarimas/internal/pkg/status"
)

// JobKind names the job table family
type JobKind string

const (
	// KindGeneric - free input jobs without a parent
	KindGeneric JobKind = "jobs"
	// KindAssessment - pronunciation assessment, parent is analysis
	KindAssessment JobKind = "assessment"
	// KindIPAGeneration - reference phoneme transcription, parent is reference speech
	KindIPAGeneration JobKind = "ipa-generation"
)

// ErrorType of the edit operation
type ErrorType string

const (
	// ErrSubstitute - recognized token differs from target
	ErrSubstitute ErrorType = "substitute"
	// ErrInsert - extra recognized token
	ErrInsert ErrorType = "insert"
	// ErrDelete - missing target token
	ErrDelete ErrorType = "delete"
)

// QualityStatus of the recording
type QualityStatus string

const (
	QualityAccept  QualityStatus = "accept"
	QualityWarning QualityStatus = "warning"
	QualityReject  QualityStatus = "reject"
)

type (
	//Job table row, same shape for all kinds
	Job struct {
		ID              string
		Kind            JobKind
		ExternalID      string
		ParentID        string
		Status          status.Status
		Result          []byte
		Error           sql.NullString
		ExecutionTimeMs sql.NullInt64
		DelayTimeMs     sql.NullInt64
		Created         time.Time
		Updated         time.Time
	}

	//JobUpdate is the full overwrite of the mutable job fields
	JobUpdate struct {
		ExternalID      string
		Status          status.Status
		Result          []byte
		Error           sql.NullString
		ExecutionTimeMs sql.NullInt64
		DelayTimeMs     sql.NullInt64
	}

	// ErrorOperation is one step of the edit path.
	// Delete positions index the target sequence, insert and substitute index the recognized one.
	ErrorOperation struct {
		Type             ErrorType     `json:"type"`
		Position         int           `json:"position"`
		Expected         *string       `json:"expected,omitempty"`
		Actual           *string       `json:"actual,omitempty"`
		TimestampStartMs sql.NullInt64 `json:"-"`
		TimestampEndMs   sql.NullInt64 `json:"-"`
	}

	//Analysis table
	Analysis struct {
		ID                   string
		UserRecordingID      string
		ReferenceSpeechID    string
		Status               status.AnalysisStatus
		Error                sql.NullString
		OverallScore         sql.NullFloat64
		PhonemeScore         sql.NullFloat64
		TargetPhonemes       sql.NullString
		RecognizedPhonemes   sql.NullString
		PhonemeDistance      sql.NullInt32
		TargetWords          sql.NullString
		RecognizedWords      sql.NullString
		ProcessingDurationMs sql.NullInt64
		Created              time.Time
	}

	//Recording is the user recording
	Recording struct {
		ID         string
		UserID     string
		StorageKey string
	}

	//ReferenceSpeech table
	ReferenceSpeech struct {
		ID               string
		TextContent      string
		StorageKey       string
		IPATranscription sql.NullString
		IPAMethod        sql.NullString
	}

	//AnalysisDetails groups records needed to submit an assessment
	AnalysisDetails struct {
		Analysis  *Analysis
		Recording *Recording
		Reference *ReferenceSpeech
	}

	//AudioQuality metrics of the recording
	AudioQuality struct {
		UserRecordingID string
		SNRDb           float64
		SilenceRatio    float64
		ClippingRatio   float64
		Status          QualityStatus
	}

	//AnalysisResult is saved on the assessment completion
	AnalysisResult struct {
		AnalysisID    string
		Analysis      *Analysis
		PhonemeErrors []ErrorOperation
		WordErrors    []ErrorOperation
		Quality       *AudioQuality
	}
)

// Changes reports if applying upd modifies any stored field of the job
func (j *Job) Changes(upd *JobUpdate) bool {
	return j.Status != upd.Status || !bytes.Equal(j.Result, upd.Result) || j.Error != upd.Error ||
		j.ExecutionTimeMs != upd.ExecutionTimeMs || j.DelayTimeMs != upd.DelayTimeMs
}
