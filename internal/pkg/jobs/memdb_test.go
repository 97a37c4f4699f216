package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/airenas/tarimas/internal/pkg/persistence"
	"github.com/airenas/tarimas/internal/pkg/utils"
)

// memDB keeps jobs in memory with the same guards as the postgres store,
// updated time is refreshed only when a field changes
type memDB struct {
	lock sync.Mutex
	jobs map[string]*persistence.Job
}

func newMemDB() *memDB {
	return &memDB{jobs: map[string]*persistence.Job{}}
}

func (db *memDB) InsertJob(ctx context.Context, job *persistence.Job) error {
	db.lock.Lock()
	defer db.lock.Unlock()
	for _, j := range db.jobs {
		if j.Kind != job.Kind {
			continue
		}
		if j.ExternalID == job.ExternalID {
			return fmt.Errorf("duplicate external job id %s", job.ExternalID)
		}
		if job.ParentID != "" && j.ParentID == job.ParentID && j.Status.IsActive() {
			return utils.NewErrConflict("Job already in progress")
		}
	}
	c := *job
	db.jobs[job.ID] = &c
	return nil
}

func (db *memDB) LoadJob(ctx context.Context, kind persistence.JobKind, id string) (*persistence.Job, error) {
	db.lock.Lock()
	defer db.lock.Unlock()
	if j, ok := db.jobs[id]; ok && j.Kind == kind {
		c := *j
		return &c, nil
	}
	return nil, nil
}

func (db *memDB) LoadJobByExternalID(ctx context.Context, kind persistence.JobKind, extID string) (*persistence.Job, error) {
	db.lock.Lock()
	defer db.lock.Unlock()
	if j := db.byExtID(kind, extID); j != nil {
		c := *j
		return &c, nil
	}
	return nil, nil
}

func (db *memDB) LatestJob(ctx context.Context, kind persistence.JobKind, parentID string) (*persistence.Job, error) {
	all, _ := db.ListJobs(ctx, kind, 1000)
	for _, j := range all {
		if j.ParentID == parentID {
			return j, nil
		}
	}
	return nil, nil
}

func (db *memDB) ListJobs(ctx context.Context, kind persistence.JobKind, limit int) ([]*persistence.Job, error) {
	db.lock.Lock()
	defer db.lock.Unlock()
	res := []*persistence.Job{}
	for _, j := range db.jobs {
		if j.Kind == kind {
			c := *j
			res = append(res, &c)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Created.After(res[j].Created) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (db *memDB) UpdateJob(ctx context.Context, kind persistence.JobKind, upd *persistence.JobUpdate) (bool, error) {
	db.lock.Lock()
	defer db.lock.Unlock()
	j := db.byExtID(kind, upd.ExternalID)
	if j == nil || j.Status.Rank() > upd.Status.Rank() {
		return false, nil
	}
	if j.Changes(upd) {
		j.Updated = time.Now()
	}
	j.Status, j.Result, j.Error = upd.Status, upd.Result, upd.Error
	j.ExecutionTimeMs, j.DelayTimeMs = upd.ExecutionTimeMs, upd.DelayTimeMs
	return true, nil
}

func (db *memDB) byExtID(kind persistence.JobKind, extID string) *persistence.Job {
	for _, j := range db.jobs {
		if j.Kind == kind && j.ExternalID == extID {
			return j
		}
	}
	return nil
}

func (db *memDB) count() int {
	db.lock.Lock()
	defer db.lock.Unlock()
	return len(db.jobs)
}
