package mocks

import (
	"context"
	"database/sql"
	"io"

	"github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/tarimas/internal/pkg/callback"
	"github.com/airenas/tarimas/internal/pkg/persistence"
	"github.com/airenas/tarimas/internal/pkg/runpod/api"
	"github.com/airenas/tarimas/internal/pkg/status"
	"github.com/stretchr/testify/mock"
)

// Filer is minio mock
type Filer struct{ mock.Mock }

// LoadFile func mock
func (m *Filer) LoadFile(ctx context.Context, fileName string) (io.ReadSeekCloser, error) {
	args := m.Called(ctx, fileName)
	return to[io.ReadSeekCloser](args.Get(0)), args.Error(1)
}

// Sender is postgres queue mock
type Sender struct{ mock.Mock }

func (m *Sender) SendMessage(ctx context.Context, msg messages.Message, queue string) error {
	args := m.Called(ctx, msg, queue)
	return args.Error(0)
}

// Worker is the worker client mock
type Worker struct{ mock.Mock }

func (m *Worker) Run(ctx context.Context, endpoint string, input any, webhook string) (*api.RunResponse, error) {
	args := m.Called(ctx, endpoint, input, webhook)
	return to[*api.RunResponse](args.Get(0)), args.Error(1)
}

func (m *Worker) Status(ctx context.Context, endpoint, extID string) (*api.StatusData, error) {
	args := m.Called(ctx, endpoint, extID)
	return to[*api.StatusData](args.Get(0)), args.Error(1)
}

// AnalysisDB is analysis persistence mock
type AnalysisDB struct{ mock.Mock }

func (m *AnalysisDB) LoadAnalysisDetails(ctx context.Context, id string) (*persistence.AnalysisDetails, error) {
	args := m.Called(ctx, id)
	return to[*persistence.AnalysisDetails](args.Get(0)), args.Error(1)
}

func (m *AnalysisDB) MarkAnalysisProcessing(ctx context.Context, id, targetWords string) error {
	args := m.Called(ctx, id, targetWords)
	return args.Error(0)
}

func (m *AnalysisDB) UpdateAnalysisStatus(ctx context.Context, id string, st status.AnalysisStatus, errMsg sql.NullString, durationMs sql.NullInt64) error {
	args := m.Called(ctx, id, st, errMsg, durationMs)
	return args.Error(0)
}

func (m *AnalysisDB) CompleteAnalysis(ctx context.Context, res *persistence.AnalysisResult) error {
	args := m.Called(ctx, res)
	return args.Error(0)
}

func (m *AnalysisDB) LoadErrors(ctx context.Context, analysisID string, word bool) ([]persistence.ErrorOperation, error) {
	args := m.Called(ctx, analysisID, word)
	return to[[]persistence.ErrorOperation](args.Get(0)), args.Error(1)
}

func (m *AnalysisDB) LoadRecording(ctx context.Context, id string) (*persistence.Recording, error) {
	args := m.Called(ctx, id)
	return to[*persistence.Recording](args.Get(0)), args.Error(1)
}

// ReferenceDB is reference speech persistence mock
type ReferenceDB struct{ mock.Mock }

func (m *ReferenceDB) LoadReference(ctx context.Context, id string) (*persistence.ReferenceSpeech, error) {
	args := m.Called(ctx, id)
	return to[*persistence.ReferenceSpeech](args.Get(0)), args.Error(1)
}

func (m *ReferenceDB) UpdateReferenceIPA(ctx context.Context, id, ipa, method string) error {
	args := m.Called(ctx, id, ipa, method)
	return args.Error(0)
}

// AudioLinks is audio URL provider mock
type AudioLinks struct{ mock.Mock }

func (m *AudioLinks) AudioURL(ctx context.Context, base *callback.Base, kind, id, key string) (string, error) {
	args := m.Called(ctx, base, kind, id, key)
	return args.String(0), args.Error(1)
}

func to[T interface{}](val interface{}) T {
	if val == nil {
		var res T
		return res
	}
	return val.(T)
}

// JobDB is job loader mock
type JobDB struct{ mock.Mock }

func (m *JobDB) LoadJob(ctx context.Context, kind persistence.JobKind, id string) (*persistence.Job, error) {
	args := m.Called(ctx, kind, id)
	return to[*persistence.Job](args.Get(0)), args.Error(1)
}

func (m *JobDB) Live(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
