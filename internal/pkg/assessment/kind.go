package assessment

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tarimas/internal/pkg/callback"
	"github.com/airenas/tarimas/internal/pkg/jobs"
	"github.com/airenas/tarimas/internal/pkg/persistence"
	"github.com/airenas/tarimas/internal/pkg/status"
	"github.com/airenas/tarimas/internal/pkg/utils"
)

// DB provides analysis persistence
type DB interface {
	LoadAnalysisDetails(ctx context.Context, id string) (*persistence.AnalysisDetails, error)
	MarkAnalysisProcessing(ctx context.Context, id, targetWords string) error
	UpdateAnalysisStatus(ctx context.Context, id string, st status.AnalysisStatus, errMsg sql.NullString, durationMs sql.NullInt64) error
	// CompleteAnalysis saves results replacing previous errors and quality metrics
	CompleteAnalysis(ctx context.Context, res *persistence.AnalysisResult) error
}

// AudioLinks provides audio URLs for the worker
type AudioLinks interface {
	AudioURL(ctx context.Context, base *callback.Base, kind, id, key string) (string, error)
}

// Kind is the pronunciation assessment job kind, parent is the analysis
type Kind struct {
	db       DB
	links    AudioLinks
	endpoint string
}

type input struct {
	AudioURI   string `json:"audio_uri"`
	TargetText string `json:"target_text"`
	TargetIPA  string `json:"target_ipa,omitempty"`
}

// NewKind creates assessment kind
func NewKind(db DB, links AudioLinks, endpoint string) (*Kind, error) {
	if db == nil {
		return nil, fmt.Errorf("no DB")
	}
	if links == nil {
		return nil, fmt.Errorf("no audio links")
	}
	if endpoint == "" {
		return nil, fmt.Errorf("no endpoint")
	}
	return &Kind{db: db, links: links, endpoint: endpoint}, nil
}

// Name returns kind name
func (k *Kind) Name() persistence.JobKind {
	return persistence.KindAssessment
}

// Endpoint returns worker endpoint
func (k *Kind) Endpoint() string {
	return k.endpoint
}

// Prepare checks the analysis exists, belongs to the caller and is not completed
func (k *Kind) Prepare(ctx context.Context, req *jobs.SubmitRequest) (*jobs.Plan, error) {
	if req.ParentID == "" {
		return nil, utils.NewErrCoded(status.ECValidation, "No analysis ID", nil)
	}
	d, err := k.db.LoadAnalysisDetails(ctx, req.ParentID)
	if err != nil {
		return nil, fmt.Errorf("can't load analysis: %w", err)
	}
	if d == nil {
		return nil, utils.NewErrNotFound("Analysis not found")
	}
	if d.Recording.UserID != req.CallerID {
		return nil, utils.NewErrCoded(status.ECForbidden, "Forbidden", nil)
	}
	if d.Analysis.Status == status.AnalysisCompleted {
		return nil, utils.NewErrConflict("Analysis is already completed")
	}
	return &jobs.Plan{
		ParentID: d.Analysis.ID,
		Input: func(ctx context.Context, base *callback.Base) (any, error) {
			uri, err := k.links.AudioURL(ctx, base, callback.AudioRecording, d.Recording.ID, d.Recording.StorageKey)
			if err != nil {
				return nil, fmt.Errorf("can't prepare audio URL: %w", err)
			}
			return &input{AudioURI: uri, TargetText: d.Reference.TextContent,
				TargetIPA: utils.FromSQLStr(d.Reference.IPATranscription)}, nil
		},
		Submitted: func(ctx context.Context, job *persistence.Job) error {
			return k.db.MarkAnalysisProcessing(ctx, d.Analysis.ID, d.Reference.TextContent)
		},
	}, nil
}

// Apply updates the analysis, on completion saves scores, errors and quality metrics
func (k *Kind) Apply(ctx context.Context, job *persistence.Job, o *jobs.Outcome) error {
	as := o.AnalysisStatus()
	switch as {
	case status.AnalysisCompleted:
		return k.complete(ctx, job, o)
	case status.AnalysisFailed:
		msg := o.Error
		if msg == "" {
			msg = "Assessment failed"
		}
		return k.db.UpdateAnalysisStatus(ctx, job.ParentID, as, utils.ToSQLStr(msg), o.ExecutionTimeMs)
	}
	return k.db.UpdateAnalysisStatus(ctx, job.ParentID, as, sql.NullString{}, o.ExecutionTimeMs)
}

func (k *Kind) complete(ctx context.Context, job *persistence.Job, o *jobs.Outcome) error {
	if !o.HasOutput() {
		return k.fail(ctx, job, o, fmt.Errorf("no output"))
	}
	p, err := parseOutput(o.Output)
	if err != nil {
		return k.fail(ctx, job, o, err)
	}
	phonemeErrors := toOperations(p.errors)
	an := &persistence.Analysis{ID: job.ParentID, Status: status.AnalysisCompleted,
		OverallScore:         utils.ToSQLFloat(p.score),
		PhonemeScore:         utils.ToSQLFloat(p.score),
		TargetPhonemes:       utils.ToSQLStr(normalizePhonemes(p.out.TargetIPA)),
		RecognizedPhonemes:   utils.ToSQLStr(normalizePhonemes(p.out.ActualIPA)),
		TargetWords:          utils.PtrToSQLStr(p.out.TargetTextNormalized),
		RecognizedWords:      utils.PtrToSQLStr(firstNonNil(p.out.ActualTextNormalized, p.out.ActualText)),
		PhonemeDistance:      utils.ToSQLInt32(int32(len(phonemeErrors))),
		ProcessingDurationMs: o.ExecutionTimeMs,
	}
	res := &persistence.AnalysisResult{AnalysisID: job.ParentID, Analysis: an,
		PhonemeErrors: phonemeErrors, WordErrors: toOperations(p.out.WordErrors),
		Quality: toQuality(p.out.SignalQuality)}
	if err := k.db.CompleteAnalysis(ctx, res); err != nil {
		return fmt.Errorf("can't save analysis: %w", err)
	}
	goapp.Log.Info().Str("analysis", job.ParentID).Float64("score", p.score).Int("errors", len(res.PhonemeErrors)).
		Int("wordErrors", len(res.WordErrors)).Msg("assessment completed")
	return nil
}

func (k *Kind) fail(ctx context.Context, job *persistence.Job, o *jobs.Outcome, err error) error {
	goapp.Log.Error().Err(err).Str("extID", job.ExternalID).Str("analysis", job.ParentID).Msg("invalid assessment output")
	return k.db.UpdateAnalysisStatus(ctx, job.ParentID, status.AnalysisFailed,
		utils.ToSQLStr(fmt.Sprintf("Invalid assessment output: %v", err)), o.ExecutionTimeMs)
}

func firstNonNil(s ...*string) *string {
	for _, v := range s {
		if v != nil {
			return v
		}
	}
	return nil
}
