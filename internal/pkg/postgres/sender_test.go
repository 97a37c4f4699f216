package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/tarimas/internal/pkg/messages"
	"github.com/airenas/tarimas/internal/pkg/persistence"
	"github.com/airenas/tarimas/internal/pkg/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vgarvardt/gue/v5"
)

type enqueuerFake struct {
	jobs []*gue.Job
	err  error
}

func (f *enqueuerFake) Enqueue(ctx context.Context, j *gue.Job) error {
	f.jobs = append(f.jobs, j)
	return f.err
}

func TestSendMessage(t *testing.T) {
	f := &enqueuerFake{}
	s := &Sender{gc: f}

	err := s.SendMessage(test.Ctx(t), messages.NewJobMessage(&persistence.Job{ID: "j1", Kind: persistence.KindAssessment,
		ExternalID: "e1"}), messages.StatusChange)

	require.Nil(t, err)
	require.Equal(t, 1, len(f.jobs))
	assert.Equal(t, messages.StatusChange, f.jobs[0].Queue)
	assert.Equal(t, messages.StatusChange, f.jobs[0].Type)
	var got messages.JobMessage
	require.Nil(t, json.Unmarshal(f.jobs[0].Args, &got))
	assert.Equal(t, "j1", got.ID)
	assert.Equal(t, persistence.KindAssessment, got.Kind)
	assert.Equal(t, "e1", got.ExternalID)
}

func TestSendMessage_Fail(t *testing.T) {
	s := &Sender{gc: &enqueuerFake{err: fmt.Errorf("olia")}}

	err := s.SendMessage(test.Ctx(t), &amessages.QueueMessage{ID: "1"}, messages.StatusChange)

	assert.NotNil(t, err)
}
