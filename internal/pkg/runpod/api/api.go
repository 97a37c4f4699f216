package api

import (
	"encoding/json"
	"fmt"

	"github.com/airenas/tarimas/internal/pkg/status"
)

// RunRequest is the body of the run method
type RunRequest struct {
	Input   any    `json:"input"`
	Webhook string `json:"webhook,omitempty"`
}

// RunResponse keeps structure for run method
type RunResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// StatusData keeps structure for status method and the webhook payload
type StatusData struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	Output        json.RawMessage `json:"output,omitempty"`
	Error         *string         `json:"error,omitempty"`
	ExecutionTime *float64        `json:"executionTime,omitempty"`
	DelayTime     *float64        `json:"delayTime,omitempty"`
}

// Validate checks the worker response schema
func (r *RunResponse) Validate() error {
	return validate(r.ID, r.Status)
}

// Validate checks the status or webhook schema
func (d *StatusData) Validate() error {
	return validate(d.ID, d.Status)
}

// WorkerStatus returns parsed status, call after Validate
func (d *StatusData) WorkerStatus() status.WorkerStatus {
	return status.WorkerStatus(d.Status)
}

// HasOutput returns true if output is present and not null
func (d *StatusData) HasOutput() bool {
	return len(d.Output) > 0 && string(d.Output) != "null"
}

// EmbeddedError reports worker failure hidden inside a successful output:
// output.status == "FAILED" or non empty output.error
func (d *StatusData) EmbeddedError() (string, bool) {
	if !d.HasOutput() {
		return "", false
	}
	var o map[string]any
	if err := json.Unmarshal(d.Output, &o); err != nil {
		return "", false
	}
	e, hasErr := o["error"]
	if hasErr && !truthy(e) {
		hasErr = false
	}
	if s, ok := o["status"].(string); !hasErr && !(ok && s == string(status.WorkerFailed)) {
		return "", false
	}
	if !hasErr {
		return "Unknown error", true
	}
	if s, ok := e.(string); ok {
		return s, true
	}
	return fmt.Sprint(e), true
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	}
	return true
}

func validate(id, st string) error {
	if id == "" {
		return fmt.Errorf("no id")
	}
	if _, err := status.ParseWorker(st); err != nil {
		return err
	}
	return nil
}
