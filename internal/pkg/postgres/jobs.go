package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/airenas/tarimas/internal/pkg/persistence"
	"github.com/airenas/tarimas/internal/pkg/status"
	"github.com/airenas/tarimas/internal/pkg/utils"
	"github.com/jackc/pgx/v5"
)

type jobTable struct {
	name   string
	parent string
	// unique index allowing one active job per parent
	active string
}

var jobTables = map[persistence.JobKind]jobTable{
	persistence.KindGeneric: {name: "jobs"},
	persistence.KindAssessment: {name: "assessment_jobs", parent: "analysis_id",
		active: "uq_assessment_jobs_active"},
	persistence.KindIPAGeneration: {name: "ipa_generation_jobs", parent: "reference_speech_id",
		active: "uq_ipa_generation_jobs_active"},
}

// orders statuses so a stored terminal status is never replaced by an older one
const rankSQL = `CASE status WHEN 'in_queue' THEN 1 WHEN 'in_progress' THEN 2 ELSE 3 END`

func table(kind persistence.JobKind) (jobTable, error) {
	res, ok := jobTables[kind]
	if !ok {
		return res, fmt.Errorf("no table for kind '%s'", kind)
	}
	return res, nil
}

func (t jobTable) columns() string {
	return fmt.Sprintf(`id::text, external_job_id, %s, status, result, error, execution_time_ms, delay_time_ms,
		created_at, updated_at`, t.parentExpr())
}

func (t jobTable) updateSQL() string {
	return fmt.Sprintf(`UPDATE %s SET 
	status = $2,
	result = $3,
	error = $4,
	execution_time_ms = $5,
	delay_time_ms = $6,
	updated_at = CASE WHEN (status, result, error, execution_time_ms, delay_time_ms)
		IS DISTINCT FROM ($2::text, $3::jsonb, $4::text, $5::bigint, $6::bigint) THEN $7 ELSE updated_at END
	WHERE external_job_id = $1 AND %s <= $8`, t.name, rankSQL)
}

func (t jobTable) parentExpr() string {
	if t.parent == "" {
		return "''"
	}
	return t.parent + "::text"
}

// InsertJob inserts new job, returns conflict error if the parent has an active job
func (db *DB) InsertJob(ctx context.Context, job *persistence.Job) error {
	t, err := table(job.Kind)
	if err != nil {
		return err
	}
	args := []any{job.ID, job.ExternalID, job.Status, job.Created, job.Updated}
	sql := fmt.Sprintf(`INSERT INTO %s(id, external_job_id, status, created_at, updated_at) 
		VALUES($1, $2, $3, $4, $5)`, t.name)
	if t.parent != "" {
		args = append(args, job.ParentID)
		sql = fmt.Sprintf(`INSERT INTO %s(id, external_job_id, status, created_at, updated_at, %s) 
		VALUES($1, $2, $3, $4, $5, $6)`, t.name, t.parent)
	}
	if _, err := db.pool.Exec(ctx, sql, args...); err != nil {
		return t.insertError(err)
	}
	return nil
}

// insertError maps only the active job index violation to a conflict
func (t jobTable) insertError(err error) error {
	if t.active != "" && isUniqueViolation(err, t.active) {
		return utils.NewErrConflict("Job already in progress")
	}
	return fmt.Errorf("can't insert job: %w", err)
}

// LoadJob loads job by ID, returns nil if not found
func (db *DB) LoadJob(ctx context.Context, kind persistence.JobKind, id string) (*persistence.Job, error) {
	return db.loadOne(ctx, kind, "id::text = $1", id)
}

// LoadJobByExternalID loads job by the worker ID, returns nil if not found
func (db *DB) LoadJobByExternalID(ctx context.Context, kind persistence.JobKind, extID string) (*persistence.Job, error) {
	return db.loadOne(ctx, kind, "external_job_id = $1", extID)
}

// LatestJob loads the newest job of the parent, returns nil if none
func (db *DB) LatestJob(ctx context.Context, kind persistence.JobKind, parentID string) (*persistence.Job, error) {
	t, err := table(kind)
	if err != nil {
		return nil, err
	}
	if t.parent == "" {
		return nil, fmt.Errorf("kind '%s' has no parent", kind)
	}
	return db.loadOne(ctx, kind, t.parent+"::text = $1 ORDER BY created_at DESC LIMIT 1", parentID)
}

// ListJobs returns newest jobs
func (db *DB) ListJobs(ctx context.Context, kind persistence.JobKind, limit int) ([]*persistence.Job, error) {
	t, err := table(kind)
	if err != nil {
		return nil, err
	}
	rows, err := db.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC LIMIT $1`,
		t.columns(), t.name), limit)
	if err != nil {
		return nil, fmt.Errorf("can't list jobs: %w", err)
	}
	defer rows.Close()
	res := []*persistence.Job{}
	for rows.Next() {
		j, err := scanJob(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("can't scan job: %w", err)
		}
		res = append(res, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("can't list jobs: %w", err)
	}
	return res, nil
}

// UpdateJob overwrites job fields unless a higher ranked status is stored.
// updated_at changes only if some field differs, so a replayed update leaves the row as is.
func (db *DB) UpdateJob(ctx context.Context, kind persistence.JobKind, upd *persistence.JobUpdate) (bool, error) {
	t, err := table(kind)
	if err != nil {
		return false, err
	}
	res, err := db.pool.Exec(ctx, t.updateSQL(),
		upd.ExternalID, upd.Status, nullJSON(upd.Result), upd.Error, upd.ExecutionTimeMs, upd.DelayTimeMs,
		time.Now(), upd.Status.Rank())
	if err != nil {
		return false, fmt.Errorf("can't update job: %w", err)
	}
	return res.RowsAffected() == 1, nil
}

func (db *DB) loadOne(ctx context.Context, kind persistence.JobKind, where string, arg string) (*persistence.Job, error) {
	t, err := table(kind)
	if err != nil {
		return nil, err
	}
	row := db.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, t.columns(), t.name, where), arg)
	res, err := scanJob(row, kind)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("can't load job: %w", err)
	}
	return res, nil
}

func scanJob(row pgx.Row, kind persistence.JobKind) (*persistence.Job, error) {
	res := persistence.Job{Kind: kind}
	var st string
	err := row.Scan(&res.ID, &res.ExternalID, &res.ParentID, &st, &res.Result, &res.Error,
		&res.ExecutionTimeMs, &res.DelayTimeMs, &res.Created, &res.Updated)
	if err != nil {
		return nil, err
	}
	res.Status = status.Status(st)
	return &res, nil
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
