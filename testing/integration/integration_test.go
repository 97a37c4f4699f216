//go:build integration
// +build integration

package integration

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/airenas/tarimas/internal/pkg/api"
	rapi "github.com/airenas/tarimas/internal/pkg/runpod/api"
	"github.com/airenas/tarimas/internal/pkg/test"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type config struct {
	jobsURL    string
	statusURL  string
	dbURL      string
	httpclient *http.Client
	db         *pgxpool.Pool
}

var cfg config

func TestMain(m *testing.M) {
	cfg.jobsURL = GetEnvOrFail("JOBS_URL")
	cfg.statusURL = GetEnvOrFail("STATUS_URL")
	cfg.dbURL = GetEnvOrFail("DB_URL")
	cfg.httpclient = &http.Client{Timeout: time.Second * 30}

	tCtx, cf := context.WithTimeout(context.Background(), time.Second*20)
	defer cf()
	WaitForOpenOrFail(tCtx, cfg.dbURL)
	WaitForOpenOrFail(tCtx, cfg.jobsURL)
	WaitForOpenOrFail(tCtx, cfg.statusURL)
	waitForDB(tCtx, cfg.dbURL)

	var err error
	cfg.db, err = pgxpool.New(context.Background(), cfg.dbURL)
	if err != nil {
		log.Fatalf("FAIL: can't init db pool: %v", err)
	}
	defer cfg.db.Close()

	//start the fake worker, the jobs service is configured to call it
	l, ts := startMockWorker(9876)
	defer ts.Close()
	defer l.Close()

	os.Exit(m.Run())
}

func TestJobsLive(t *testing.T) {
	t.Parallel()
	resp := test.Invoke(t, cfg.httpclient, NewRequest(t, http.MethodGet, cfg.jobsURL, "/live", nil))
	test.CheckCode(t, resp, http.StatusOK)
}

func TestStatusLive(t *testing.T) {
	t.Parallel()
	test.CheckCode(t, test.Invoke(t, cfg.httpclient, NewRequest(t, http.MethodGet, cfg.statusURL, "/live", nil)), http.StatusOK)
}

func TestJob_Poll(t *testing.T) {
	t.Parallel()
	job := submitJob(t)
	assert.Equal(t, "in_queue", job.Status)
	assert.NotEmpty(t, job.ExternalJobID)

	resp := test.Invoke(t, cfg.httpclient, NewRequest(t, http.MethodGet, cfg.jobsURL, "/jobs/"+job.ID, nil))
	test.CheckCode(t, resp, http.StatusOK)
	res := test.Decode[api.Job](t, resp)
	assert.Equal(t, "completed", res.Status)
	assert.JSONEq(t, `{"ok":true}`, string(res.Result))
}

func TestJob_Webhook(t *testing.T) {
	t.Parallel()
	job := submitJob(t)
	sendWebhook(t, "jobs", rapi.StatusData{ID: job.ExternalJobID, Status: "IN_PROGRESS"})
	assert.Equal(t, "in_progress", getStatus(t, "jobs", job.ID).Status)
	// replay is accepted
	sendWebhook(t, "jobs", rapi.StatusData{ID: job.ExternalJobID, Status: "IN_PROGRESS"})
	errStr := "out of memory"
	sendWebhook(t, "jobs", rapi.StatusData{ID: job.ExternalJobID, Status: "FAILED", Error: &errStr})
	st := getStatus(t, "jobs", job.ID)
	assert.Equal(t, "failed", st.Status)
	assert.Equal(t, errStr, st.Error)
	// stale event after terminal
	sendWebhook(t, "jobs", rapi.StatusData{ID: job.ExternalJobID, Status: "IN_PROGRESS"})
	assert.Equal(t, "failed", getStatus(t, "jobs", job.ID).Status)
}

func TestWebhook_UnknownJob(t *testing.T) {
	t.Parallel()
	resp := test.Invoke(t, cfg.httpclient, NewRequest(t, http.MethodPost, cfg.jobsURL, "/webhook/jobs",
		rapi.StatusData{ID: "olia-" + uuid.NewString(), Status: "COMPLETED"}))
	test.CheckCode(t, resp, http.StatusOK)
}

func TestStatus_NotFound(t *testing.T) {
	t.Parallel()
	resp := test.Invoke(t, cfg.httpclient, NewRequest(t, http.MethodGet, cfg.statusURL, "/status/jobs/"+uuid.NewString(), nil))
	test.CheckCode(t, resp, http.StatusNotFound)
}

func TestIPAGeneration(t *testing.T) {
	t.Parallel()
	refID := addReference(t)
	job := submitIPA(t, refID, http.StatusCreated)
	assert.Equal(t, refID, job.ReferenceSpeechID)

	submitIPA(t, refID, http.StatusConflict)

	out := `{"ipa_phonemes":"l a b a s"}`
	sendWebhook(t, "ipa-generation", rapi.StatusData{ID: job.ExternalJobID, Status: "COMPLETED", Output: []byte(out)})

	var ipa string
	err := cfg.db.QueryRow(context.Background(),
		`SELECT ipa_transcription FROM reference_speeches WHERE id = $1`, refID).Scan(&ipa)
	require.Nil(t, err)
	assert.Equal(t, "l a b a s", ipa)

	resp := test.Invoke(t, cfg.httpclient, NewRequest(t, http.MethodGet, cfg.jobsURL, "/ipa-generation/"+refID+"/job", nil))
	test.CheckCode(t, resp, http.StatusOK)
	latest := test.Decode[api.Job](t, resp)
	assert.Equal(t, job.ID, latest.ID)
	assert.Equal(t, "completed", latest.Status)

	// a new job is allowed after the previous one is finished
	submitIPA(t, refID, http.StatusCreated)
}

func TestIPAGeneration_NoReference(t *testing.T) {
	t.Parallel()
	submitIPA(t, uuid.NewString(), http.StatusNotFound)
}

func TestSubscribe(t *testing.T) {
	t.Parallel()
	job := submitJob(t)

	wsURL := "ws" + strings.TrimPrefix(cfg.statusURL, "http") + "/subscribe"
	c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Nil(t, err)
	defer c.Close()
	require.Nil(t, c.WriteMessage(websocket.TextMessage, []byte(job.ID)))
	time.Sleep(500 * time.Millisecond)

	sendWebhook(t, "jobs", rapi.StatusData{ID: job.ExternalJobID, Status: "IN_PROGRESS"})

	require.Nil(t, c.SetReadDeadline(time.Now().Add(10*time.Second)))
	var res api.Job
	require.Nil(t, c.ReadJSON(&res))
	assert.Equal(t, job.ID, res.ID)
	assert.Equal(t, "in_progress", res.Status)
}

func submitJob(t *testing.T) api.Job {
	t.Helper()
	resp := test.Invoke(t, cfg.httpclient, NewRequest(t, http.MethodPost, cfg.jobsURL, "/jobs",
		api.JobRequest{Input: []byte(`{"text":"labas"}`)}))
	test.CheckCode(t, resp, http.StatusCreated)
	res := test.Decode[api.Job](t, resp)
	require.NotEmpty(t, res.ID)
	return res
}

func submitIPA(t *testing.T, refID string, code int) api.Job {
	t.Helper()
	resp := test.Invoke(t, cfg.httpclient, NewRequest(t, http.MethodPost, cfg.jobsURL, "/ipa-generation",
		api.IPAGenerationRequest{ReferenceSpeechID: refID}))
	test.CheckCode(t, resp, code)
	if code != http.StatusCreated {
		return api.Job{}
	}
	return test.Decode[api.Job](t, resp)
}

func sendWebhook(t *testing.T, kind string, d rapi.StatusData) {
	t.Helper()
	resp := test.Invoke(t, cfg.httpclient, NewRequest(t, http.MethodPost, cfg.jobsURL, "/webhook/"+kind, d))
	test.CheckCode(t, resp, http.StatusOK)
}

func getStatus(t *testing.T, kind, id string) api.Job {
	t.Helper()
	resp := test.Invoke(t, cfg.httpclient, NewRequest(t, http.MethodGet, cfg.statusURL, fmt.Sprintf("/status/%s/%s", kind, id), nil))
	test.CheckCode(t, resp, http.StatusOK)
	st := test.Decode[api.Job](t, resp)
	return st
}

func addReference(t *testing.T) string {
	t.Helper()
	id := uuid.NewString()
	_, err := cfg.db.Exec(context.Background(),
		`INSERT INTO reference_speeches (id, text_content, storage_key) VALUES ($1, $2, $3)`,
		id, "labas", "reference/"+id+".wav")
	require.Nil(t, err)
	return id
}

var extCounter int64

func startMockWorker(port int) (net.Listener, *httptest.Server) {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		log.Fatalf("can't start mock worker: %v", err)
	}
	ts := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		switch {
		case len(parts) == 3 && parts[2] == "run" && r.Method == http.MethodPost:
			id := fmt.Sprintf("ext-%d-%d", time.Now().UnixNano(), atomic.AddInt64(&extCounter, 1))
			_, _ = io.Copy(w, strings.NewReader(fmt.Sprintf(`{"id":"%s","status":"IN_QUEUE"}`, id)))
		case len(parts) == 4 && parts[2] == "status":
			_, _ = io.Copy(w, strings.NewReader(fmt.Sprintf(
				`{"id":"%s","status":"COMPLETED","output":{"ok":true},"executionTime":1.5,"delayTime":0.2}`, parts[3])))
		default:
			log.Printf("Unknown request to: %s", r.URL.String())
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	ts.Listener.Close()
	ts.Listener = l

	ts.Start()
	log.Printf("started mock worker on port: %d", port)
	return l, ts
}
