package status

import "fmt"

// Status represents internal job status
type Status string

const (
	// InQueue - job accepted by the worker, not started
	InQueue Status = "in_queue"
	// InProgress - worker is processing
	InProgress Status = "in_progress"
	// Completed - final step
	Completed Status = "completed"
	// Failed - final step
	Failed Status = "failed"
)

// WorkerStatus is the status vocabulary of the external worker
type WorkerStatus string

const (
	// WorkerInQueue value
	WorkerInQueue WorkerStatus = "IN_QUEUE"
	// WorkerInProgress value
	WorkerInProgress WorkerStatus = "IN_PROGRESS"
	// WorkerCompleted value
	WorkerCompleted WorkerStatus = "COMPLETED"
	// WorkerFailed value
	WorkerFailed WorkerStatus = "FAILED"
)

var (
	workerStatus = map[WorkerStatus]Status{WorkerInQueue: InQueue, WorkerInProgress: InProgress,
		WorkerCompleted: Completed, WorkerFailed: Failed}
	statusRank = map[Status]int{InQueue: 1, InProgress: 2, Completed: 3, Failed: 3}
)

func (st Status) String() string {
	return string(st)
}

// IsTerminal returns true for completed or failed
func (st Status) IsTerminal() bool {
	return st == Completed || st == Failed
}

// IsActive returns true for statuses that block a new submission
func (st Status) IsActive() bool {
	return st == InQueue || st == InProgress
}

// Rank returns the progress order of the status, 0 for unknown.
// Terminal statuses share the same rank.
func (st Status) Rank() int {
	return statusRank[st]
}

// ParseWorker validates worker status string
func ParseWorker(s string) (WorkerStatus, error) {
	res := WorkerStatus(s)
	if _, ok := workerStatus[res]; !ok {
		return "", fmt.Errorf("unknown worker status '%s'", s)
	}
	return res, nil
}

// FromWorker maps worker status to the internal one.
// The worker vocabulary is closed, so an unknown value panics.
func FromWorker(ws WorkerStatus) Status {
	res, ok := workerStatus[ws]
	if !ok {
		panic(fmt.Sprintf("unmapped worker status '%s'", ws))
	}
	return res
}

// AnalysisStatus represents the status of the analysis record
type AnalysisStatus string

const (
	// AnalysisPending - created, not submitted
	AnalysisPending AnalysisStatus = "pending"
	// AnalysisProcessing - job submitted
	AnalysisProcessing AnalysisStatus = "processing"
	// AnalysisCompleted - results saved
	AnalysisCompleted AnalysisStatus = "completed"
	// AnalysisFailed - job or output failed
	AnalysisFailed AnalysisStatus = "failed"
)

// ErrCode represents error code
type ErrCode int

const (
	// ECInternal unexpected failure
	ECInternal ErrCode = iota + 1
	// ECNotFound parent or job absent
	ECNotFound
	// ECForbidden ownership mismatch
	ECForbidden
	// ECConflict active job exists or parent already completed
	ECConflict
	// ECBadGateway worker unreachable or returned invalid data
	ECBadGateway
	// ECValidation malformed inbound payload
	ECValidation
)

var ecName = map[ErrCode]string{ECInternal: "INTERNAL", ECNotFound: "NOT_FOUND", ECForbidden: "FORBIDDEN",
	ECConflict: "CONFLICT", ECBadGateway: "BAD_GATEWAY", ECValidation: "VALIDATION_ERROR"}

func (ec ErrCode) String() string {
	return ecName[ec]
}
