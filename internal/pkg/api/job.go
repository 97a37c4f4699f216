package api

import (
	"encoding/json"
	"time"

	"github.com/airenas/tarimas/internal/pkg/persistence"
	"github.com/airenas/tarimas/internal/pkg/utils"
)

// Job is the client facing job representation
type Job struct {
	ID                string          `json:"id"`
	Kind              string          `json:"kind"`
	ExternalJobID     string          `json:"externalJobId"`
	AnalysisID        string          `json:"analysisId,omitempty"`
	ReferenceSpeechID string          `json:"referenceSpeechId,omitempty"`
	Status            string          `json:"status"`
	Result            json.RawMessage `json:"result,omitempty"`
	Error             string          `json:"error,omitempty"`
	ExecutionTimeMs   *int64          `json:"executionTimeMs,omitempty"`
	DelayTimeMs       *int64          `json:"delayTimeMs,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// ToJob maps stored job, the parent goes to the field named by the kind
func ToJob(j *persistence.Job) *Job {
	if j == nil {
		return nil
	}
	res := &Job{ID: j.ID, Kind: string(j.Kind), ExternalJobID: j.ExternalID, Status: j.Status.String(),
		Error: utils.FromSQLStr(j.Error), CreatedAt: j.Created, UpdatedAt: j.Updated}
	switch j.Kind {
	case persistence.KindAssessment:
		res.AnalysisID = j.ParentID
	case persistence.KindIPAGeneration:
		res.ReferenceSpeechID = j.ParentID
	}
	if len(j.Result) > 0 {
		res.Result = json.RawMessage(j.Result)
	}
	if j.ExecutionTimeMs.Valid {
		res.ExecutionTimeMs = &j.ExecutionTimeMs.Int64
	}
	if j.DelayTimeMs.Valid {
		res.DelayTimeMs = &j.DelayTimeMs.Int64
	}
	return res
}

// ToJobs maps a list of jobs
func ToJobs(jobs []*persistence.Job) []*Job {
	res := make([]*Job, 0, len(jobs))
	for _, j := range jobs {
		res = append(res, ToJob(j))
	}
	return res
}

// AssessmentRequest starts assessment of the analysis
type AssessmentRequest struct {
	AnalysisID string `json:"analysisId"`
}

// IPAGenerationRequest starts phoneme transcription of the reference speech
type IPAGenerationRequest struct {
	ReferenceSpeechID string `json:"referenceSpeechId"`
}

// JobRequest starts a generic job
type JobRequest struct {
	Input json.RawMessage `json:"input"`
}

// WebhookResponse acknowledges the worker callback
type WebhookResponse struct {
	Received bool `json:"received"`
}
