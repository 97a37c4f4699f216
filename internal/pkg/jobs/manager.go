package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tarimas/internal/pkg/callback"
	"github.com/airenas/tarimas/internal/pkg/messages"
	"github.com/airenas/tarimas/internal/pkg/persistence"
	"github.com/airenas/tarimas/internal/pkg/runpod/api"
	"github.com/airenas/tarimas/internal/pkg/status"
	"github.com/airenas/tarimas/internal/pkg/utils"
	"github.com/google/uuid"
)

// DB provides job persistence for all kinds
type DB interface {
	InsertJob(ctx context.Context, job *persistence.Job) error
	LoadJob(ctx context.Context, kind persistence.JobKind, id string) (*persistence.Job, error)
	LoadJobByExternalID(ctx context.Context, kind persistence.JobKind, extID string) (*persistence.Job, error)
	LatestJob(ctx context.Context, kind persistence.JobKind, parentID string) (*persistence.Job, error)
	ListJobs(ctx context.Context, kind persistence.JobKind, limit int) ([]*persistence.Job, error)
	// UpdateJob overwrites the job, returns false if a higher ranked status is already stored
	UpdateJob(ctx context.Context, kind persistence.JobKind, upd *persistence.JobUpdate) (bool, error)
}

// Worker is the external compute worker
type Worker interface {
	Run(ctx context.Context, endpoint string, input any, webhook string) (*api.RunResponse, error)
	Status(ctx context.Context, endpoint, extID string) (*api.StatusData, error)
}

// URLResolver provides the base URL reachable by the worker
type URLResolver interface {
	Resolve(origin string) *callback.Base
}

// MsgSender provides send msg functionality
type MsgSender interface {
	SendMessage(context.Context, amessages.Message, string) error
}

// Manager submits jobs and reconciles worker updates for all kinds
type Manager struct {
	db        DB
	worker    Worker
	resolver  URLResolver
	sender    MsgSender
	kinds     map[persistence.JobKind]Kind
	listLimit int
}

// NewManager creates job manager
func NewManager(db DB, worker Worker, resolver URLResolver, sender MsgSender, kinds ...Kind) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("no DB")
	}
	if worker == nil {
		return nil, fmt.Errorf("no worker")
	}
	if resolver == nil {
		return nil, fmt.Errorf("no URL resolver")
	}
	if sender == nil {
		return nil, fmt.Errorf("no msg sender")
	}
	res := &Manager{db: db, worker: worker, resolver: resolver, sender: sender,
		kinds: map[persistence.JobKind]Kind{}, listLimit: 100}
	for _, k := range kinds {
		if _, ok := res.kinds[k.Name()]; ok {
			return nil, fmt.Errorf("duplicate kind %s", k.Name())
		}
		res.kinds[k.Name()] = k
	}
	if len(res.kinds) == 0 {
		return nil, fmt.Errorf("no kinds")
	}
	return res, nil
}

// Submit sends a new job to the worker and saves it
func (m *Manager) Submit(ctx context.Context, kind persistence.JobKind, req *SubmitRequest) (*persistence.Job, error) {
	k, err := m.kind(kind)
	if err != nil {
		return nil, err
	}
	plan, err := k.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if plan.ParentID != "" {
		latest, err := m.db.LatestJob(ctx, kind, plan.ParentID)
		if err != nil {
			return nil, fmt.Errorf("can't load latest job: %w", err)
		}
		if latest != nil && latest.Status.IsActive() {
			return nil, utils.NewErrConflict("Job already in progress")
		}
	}
	base := m.resolver.Resolve(req.Origin)
	input, err := plan.Input(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("can't prepare input: %w", err)
	}
	resp, err := m.worker.Run(ctx, k.Endpoint(), input, base.WebhookURL(kind))
	if err != nil {
		return nil, utils.NewErrCoded(status.ECBadGateway, "Failed to submit job", err)
	}
	now := time.Now()
	job := &persistence.Job{ID: uuid.NewString(), Kind: kind, ExternalID: resp.ID, ParentID: plan.ParentID,
		Status: status.InQueue, Created: now, Updated: now}
	if err := m.db.InsertJob(ctx, job); err != nil {
		return nil, fmt.Errorf("can't save job: %w", err)
	}
	goapp.Log.Info().Str("kind", string(kind)).Str("ID", job.ID).Str("extID", job.ExternalID).
		Str("parent", job.ParentID).Msg("job submitted")
	if plan.Submitted != nil {
		if err := plan.Submitted(ctx, job); err != nil {
			return nil, fmt.Errorf("can't update parent: %w", err)
		}
	}
	m.notify(ctx, job)
	return job, nil
}

// Get returns stored job without refreshing it
func (m *Manager) Get(ctx context.Context, kind persistence.JobKind, id string) (*persistence.Job, error) {
	if _, err := m.kind(kind); err != nil {
		return nil, err
	}
	job, err := m.db.LoadJob(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("can't load job: %w", err)
	}
	if job == nil {
		return nil, utils.NewErrNotFound("Job not found")
	}
	return job, nil
}

// FindByExternalID returns stored job by the worker ID
func (m *Manager) FindByExternalID(ctx context.Context, kind persistence.JobKind, extID string) (*persistence.Job, error) {
	if _, err := m.kind(kind); err != nil {
		return nil, err
	}
	job, err := m.db.LoadJobByExternalID(ctx, kind, extID)
	if err != nil {
		return nil, fmt.Errorf("can't load job: %w", err)
	}
	if job == nil {
		return nil, utils.NewErrNotFound("Job not found")
	}
	return job, nil
}

// Latest returns the newest job of the parent, nil if none
func (m *Manager) Latest(ctx context.Context, kind persistence.JobKind, parentID string) (*persistence.Job, error) {
	if _, err := m.kind(kind); err != nil {
		return nil, err
	}
	job, err := m.db.LatestJob(ctx, kind, parentID)
	if err != nil {
		return nil, fmt.Errorf("can't load latest job: %w", err)
	}
	return job, nil
}

// List returns newest jobs, with refresh the active ones are polled first
func (m *Manager) List(ctx context.Context, kind persistence.JobKind, refresh bool) ([]*persistence.Job, error) {
	if _, err := m.kind(kind); err != nil {
		return nil, err
	}
	res, err := m.db.ListJobs(ctx, kind, m.listLimit)
	if err != nil {
		return nil, fmt.Errorf("can't list jobs: %w", err)
	}
	if !refresh {
		return res, nil
	}
	for i, j := range res {
		if !j.Status.IsActive() {
			continue
		}
		upd, err := m.Poll(ctx, kind, j.ID)
		if err != nil {
			goapp.Log.Warn().Err(err).Str("ID", j.ID).Msg("can't poll")
			continue
		}
		res[i] = upd
	}
	return res, nil
}

// Poll refreshes an active job from the worker.
// Terminal jobs are returned without a worker call, worker failures return the stored state.
func (m *Manager) Poll(ctx context.Context, kind persistence.JobKind, id string) (*persistence.Job, error) {
	k, err := m.kind(kind)
	if err != nil {
		return nil, err
	}
	job, err := m.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, nil
	}
	sd, err := m.worker.Status(ctx, k.Endpoint(), job.ExternalID)
	if err != nil {
		goapp.Log.Warn().Err(err).Str("ID", job.ID).Str("extID", job.ExternalID).Msg("can't get worker status, return stored")
		return job, nil
	}
	return m.Reconcile(ctx, k, job, sd)
}

// Webhook applies the worker callback payload.
// Only a malformed payload is an error, unknown jobs are acknowledged.
func (m *Manager) Webhook(ctx context.Context, kind persistence.JobKind, body []byte) error {
	k, err := m.kind(kind)
	if err != nil {
		return err
	}
	var sd api.StatusData
	if err := json.Unmarshal(body, &sd); err != nil {
		return utils.NewErrCoded(status.ECValidation, "Invalid webhook payload", err)
	}
	if err := sd.Validate(); err != nil {
		return utils.NewErrCoded(status.ECValidation, "Invalid webhook payload", err)
	}
	job, err := m.db.LoadJobByExternalID(ctx, kind, sd.ID)
	if err != nil {
		return fmt.Errorf("can't load job: %w", err)
	}
	if job == nil {
		goapp.Log.Warn().Str("kind", string(kind)).Str("extID", goapp.Sanitize(sd.ID)).Msg("webhook for unknown job, ignored")
		return nil
	}
	_, err = m.Reconcile(ctx, k, job, &sd)
	return err
}

// Reconcile applies worker status data to the job and its domain records
func (m *Manager) Reconcile(ctx context.Context, k Kind, job *persistence.Job, sd *api.StatusData) (*persistence.Job, error) {
	o := &Outcome{Status: status.FromWorker(sd.WorkerStatus()), ExecutionTimeMs: utils.ToSQLMillis(sd.ExecutionTime)}
	upd := &persistence.JobUpdate{ExternalID: job.ExternalID, Status: o.Status, Error: utils.PtrToSQLStr(sd.Error),
		ExecutionTimeMs: o.ExecutionTimeMs, DelayTimeMs: utils.ToSQLMillis(sd.DelayTime)}
	if sd.HasOutput() {
		o.Output = sd.Output
		upd.Result = sd.Output
	}
	if msg, ok := sd.EmbeddedError(); ok {
		o.Status, o.EmbeddedFailure = status.Failed, true
		upd.Status = status.Failed
		upd.Error = sql.NullString{String: msg, Valid: true}
	}
	o.Error = upd.Error.String

	if upd.Status.Rank() < job.Status.Rank() {
		goapp.Log.Warn().Str("ID", job.ID).Str("stored", job.Status.String()).Str("got", upd.Status.String()).Msg("stale update, skip")
		return job, nil
	}
	applied, err := m.db.UpdateJob(ctx, k.Name(), upd)
	if err != nil {
		return nil, fmt.Errorf("can't update job: %w", err)
	}
	if !applied {
		goapp.Log.Warn().Str("ID", job.ID).Str("got", upd.Status.String()).Msg("newer status stored, skip")
		return m.Get(ctx, k.Name(), job.ID)
	}
	res := *job
	if job.Changes(upd) {
		res.Updated = time.Now()
	}
	res.Status, res.Result, res.Error = upd.Status, upd.Result, upd.Error
	res.ExecutionTimeMs, res.DelayTimeMs = upd.ExecutionTimeMs, upd.DelayTimeMs
	goapp.Log.Info().Str("kind", string(k.Name())).Str("ID", job.ID).Str("extID", job.ExternalID).
		Str("status", res.Status.String()).Bool("embeddedFailure", o.EmbeddedFailure).
		Str("error", goapp.Sanitize(utils.Trunc(o.Error, 200))).Msg("job updated")

	if err := k.Apply(ctx, &res, o); err != nil {
		return nil, fmt.Errorf("can't apply job result: %w", err)
	}
	if job.Status != res.Status {
		m.notify(ctx, &res)
	}
	return &res, nil
}

func (m *Manager) notify(ctx context.Context, job *persistence.Job) {
	if err := m.sender.SendMessage(ctx, messages.NewJobMessage(job), messages.StatusChange); err != nil {
		goapp.Log.Error().Err(err).Str("ID", job.ID).Msg("can't send status change")
	}
}

func (m *Manager) kind(kind persistence.JobKind) (Kind, error) {
	res, ok := m.kinds[kind]
	if !ok {
		return nil, utils.NewErrCoded(status.ECValidation, fmt.Sprintf("Unknown job kind '%s'", goapp.Sanitize(string(kind))), nil)
	}
	return res, nil
}
