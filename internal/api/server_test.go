package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookscrape/catalog-crawler/internal/catalog"
	"github.com/bookscrape/catalog-crawler/internal/config"
)

type fakeService struct {
	triggerJob catalog.Job
	triggerErr error
	statusJob  catalog.Job
	statusErr  error

	gotRequester string
	gotJobID     string
}

func (f *fakeService) Trigger(_ context.Context, requester string) (catalog.Job, error) {
	f.gotRequester = requester
	return f.triggerJob, f.triggerErr
}

func (f *fakeService) Status(_ context.Context, jobID string) (catalog.Job, error) {
	f.gotJobID = jobID
	return f.statusJob, f.statusErr
}

func newTestServer(t *testing.T, svc *fakeService, cfg config.Config) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(svc, cfg, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func pendingJob() catalog.Job {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return catalog.Job{
		ID:          "11111111-2222-3333-4444-555555555555",
		Status:      catalog.JobStatusPending,
		Message:     "Scraping queued for execution.",
		CreatedAt:   now,
		UpdatedAt:   now,
		TriggeredBy: "tester",
	}
}

func TestTriggerReturnsCreated(t *testing.T) {
	svc := &fakeService{triggerJob: pendingJob()}
	srv := newTestServer(t, svc, config.Config{})

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/scraping/trigger", nil)
	require.NoError(t, err)
	req.Header.Set("X-Triggered-By", "tester")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	env := decodeEnvelope(t, resp)
	assert.True(t, env.Success)
	assert.Equal(t, "Scraping started in background.", env.Message)
	assert.Equal(t, "tester", svc.gotRequester)

	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", data["id"])
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, "tester", data["trigger_by_user"])
}

func TestTriggerDefaultsRequesterToAnonymous(t *testing.T) {
	svc := &fakeService{triggerJob: pendingJob()}
	srv := newTestServer(t, svc, config.Config{})

	resp, err := http.Post(srv.URL+"/api/v1/scraping/trigger", "", nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "anonymous", svc.gotRequester)
}

func TestTriggerConflict(t *testing.T) {
	svc := &fakeService{triggerErr: catalog.ErrAlreadyRunning}
	srv := newTestServer(t, svc, config.Config{})

	resp, err := http.Post(srv.URL+"/api/v1/scraping/trigger", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	assert.False(t, env.Success)
	assert.Equal(t, "A scraping run is already in progress.", env.Message)
	assert.Nil(t, env.Data)
}

func TestTriggerInternalError(t *testing.T) {
	svc := &fakeService{triggerErr: errors.New("store offline")}
	srv := newTestServer(t, svc, config.Config{})

	resp, err := http.Post(srv.URL+"/api/v1/scraping/trigger", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	assert.False(t, env.Success)
}

func TestStatusReturnsJobSnapshot(t *testing.T) {
	job := pendingJob()
	job.Status = catalog.JobStatusDone
	job.Message = "Scraping finished successfully. Books collected: 42"
	svc := &fakeService{statusJob: job}
	srv := newTestServer(t, svc, config.Config{})

	resp, err := http.Get(srv.URL + "/api/v1/scraping/status/" + job.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	assert.True(t, env.Success)
	assert.Equal(t, job.Message, env.Message)
	assert.Equal(t, job.ID, svc.gotJobID)

	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "done", data["status"])
	assert.Equal(t, job.ID, data["id"])
	assert.Equal(t, "tester", data["trigger_by_user"])
}

func TestStatusUnknownJob(t *testing.T) {
	svc := &fakeService{statusErr: catalog.ErrJobNotFound}
	srv := newTestServer(t, svc, config.Config{})

	resp, err := http.Get(srv.URL + "/api/v1/scraping/status/missing-id")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	assert.False(t, env.Success)
	assert.Equal(t, "Scraping id not found.", env.Message)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, config.Config{})

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	cfg := config.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "secret"
	svc := &fakeService{triggerJob: pendingJob()}
	srv := newTestServer(t, svc, cfg)

	resp, err := http.Post(srv.URL+"/api/v1/scraping/trigger", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/scraping/trigger", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}
