package messages

import (
	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/tarimas/internal/pkg/persistence"
)

const (
	st = "TARIMAS/"
	// StatusChange queue name
	StatusChange = st + "StatusChange"
)

// JobMessage is sent when a job row changes
type JobMessage struct {
	amessages.QueueMessage
	Kind       persistence.JobKind `json:"kind,omitempty"`
	ExternalID string              `json:"externalID,omitempty"`
}

// NewJobMessage creates status change message for the job
func NewJobMessage(j *persistence.Job) *JobMessage {
	return &JobMessage{QueueMessage: amessages.QueueMessage{ID: j.ID}, Kind: j.Kind, ExternalID: j.ExternalID}
}
