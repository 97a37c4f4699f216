package ipagen

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tarimas/internal/pkg/callback"
	"github.com/airenas/tarimas/internal/pkg/jobs"
	"github.com/airenas/tarimas/internal/pkg/persistence"
	"github.com/airenas/tarimas/internal/pkg/status"
	"github.com/airenas/tarimas/internal/pkg/utils"
)

// Method is saved as the transcription method of the reference
const Method = "powsm"

// DB provides reference speech persistence
type DB interface {
	LoadReference(ctx context.Context, id string) (*persistence.ReferenceSpeech, error)
	UpdateReferenceIPA(ctx context.Context, id, ipa, method string) error
}

// AudioLinks provides audio URLs for the worker
type AudioLinks interface {
	AudioURL(ctx context.Context, base *callback.Base, kind, id, key string) (string, error)
}

// Kind generates phoneme transcription for a reference speech
type Kind struct {
	db       DB
	links    AudioLinks
	endpoint string
}

type input struct {
	Text     string `json:"text"`
	AudioURI string `json:"audio_uri"`
}

type output struct {
	IPAPhonemes *string `json:"ipa_phonemes"`
}

// NewKind creates IPA generation kind
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
	return persistence.KindIPAGeneration
}

// Endpoint returns worker endpoint
func (k *Kind) Endpoint() string {
	return k.endpoint
}

// Prepare checks the reference exists
func (k *Kind) Prepare(ctx context.Context, req *jobs.SubmitRequest) (*jobs.Plan, error) {
	if req.ParentID == "" {
		return nil, utils.NewErrCoded(status.ECValidation, "No reference speech ID", nil)
	}
	ref, err := k.db.LoadReference(ctx, req.ParentID)
	if err != nil {
		return nil, fmt.Errorf("can't load reference: %w", err)
	}
	if ref == nil {
		return nil, utils.NewErrNotFound("Reference speech not found")
	}
	return &jobs.Plan{
		ParentID: ref.ID,
		Input: func(ctx context.Context, base *callback.Base) (any, error) {
			uri, err := k.links.AudioURL(ctx, base, callback.AudioReference, ref.ID, ref.StorageKey)
			if err != nil {
				return nil, fmt.Errorf("can't prepare audio URL: %w", err)
			}
			return &input{Text: ref.TextContent, AudioURI: uri}, nil
		},
	}, nil
}

// Apply saves generated phonemes on completion
func (k *Kind) Apply(ctx context.Context, job *persistence.Job, o *jobs.Outcome) error {
	if o.Status != status.Completed || !o.HasOutput() {
		return nil
	}
	var out output
	if err := json.Unmarshal(o.Output, &out); err != nil {
		goapp.Log.Warn().Err(err).Str("extID", job.ExternalID).Msg("can't decode ipa output")
		return nil
	}
	if out.IPAPhonemes == nil || *out.IPAPhonemes == "" {
		goapp.Log.Warn().Str("extID", job.ExternalID).Msg("no ipa_phonemes in output")
		return nil
	}
	if err := k.db.UpdateReferenceIPA(ctx, job.ParentID, *out.IPAPhonemes, Method); err != nil {
		return fmt.Errorf("can't save ipa: %w", err)
	}
	goapp.Log.Info().Str("reference", job.ParentID).Msg("ipa saved")
	return nil
}
