package jobs

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/airenas/tarimas/internal/pkg/callback"
	"github.com/airenas/tarimas/internal/pkg/persistence"
	"github.com/airenas/tarimas/internal/pkg/status"
)

// Kind provides job kind specific behavior for the manager
type Kind interface {
	Name() persistence.JobKind
	Endpoint() string
	// Prepare checks preconditions and returns the submission plan
	Prepare(ctx context.Context, req *SubmitRequest) (*Plan, error)
	// Apply moves the reconciled job state into the domain records
	Apply(ctx context.Context, job *persistence.Job, o *Outcome) error
}

// SubmitRequest is the input for the job submission
type SubmitRequest struct {
	ParentID string
	CallerID string
	Input    json.RawMessage
	Origin   string
}

// Plan is prepared by the kind before the worker call
type Plan struct {
	ParentID string
	// Input builds worker input, base is the resolved URL of this service
	Input func(ctx context.Context, base *callback.Base) (any, error)
	// Submitted is called after the job row is saved, may be nil
	Submitted func(ctx context.Context, job *persistence.Job) error
}

// Outcome is a reconciled worker update
type Outcome struct {
	Status          status.Status
	Output          json.RawMessage
	Error           string
	EmbeddedFailure bool
	ExecutionTimeMs sql.NullInt64
}

// HasOutput returns true if there is output to parse
func (o *Outcome) HasOutput() bool {
	return len(o.Output) > 0
}

// AnalysisStatus derives the parent status from the job status
func (o *Outcome) AnalysisStatus() status.AnalysisStatus {
	switch o.Status {
	case status.Completed:
		return status.AnalysisCompleted
	case status.Failed:
		return status.AnalysisFailed
	}
	return status.AnalysisProcessing
}

// Generic is a job kind without a parent, the caller provides worker input
type Generic struct {
	endpoint string
}

// NewGeneric creates generic kind
func NewGeneric(endpoint string) *Generic {
	return &Generic{endpoint: endpoint}
}

// Name returns kind name
func (g *Generic) Name() persistence.JobKind {
	return persistence.KindGeneric
}

// Endpoint returns worker endpoint
func (g *Generic) Endpoint() string {
	return g.endpoint
}

// Prepare passes caller input as is, empty input becomes an empty object
func (g *Generic) Prepare(ctx context.Context, req *SubmitRequest) (*Plan, error) {
	input := req.Input
	if len(input) == 0 || string(input) == "null" {
		input = json.RawMessage(`{}`)
	}
	return &Plan{Input: func(context.Context, *callback.Base) (any, error) { return input, nil }}, nil
}

// Apply does nothing, generic jobs keep only the job row
func (g *Generic) Apply(ctx context.Context, job *persistence.Job, o *Outcome) error {
	return nil
}
