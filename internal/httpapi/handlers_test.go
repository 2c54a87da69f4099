package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/atropos-server/internal/coordinator"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	coord := coordinator.New(reg)
	return New(coord, logger, reg)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHandlers_RegisterAndInfo(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/register", map[string]any{
		"run_group": "a", "run_project": "p",
		"batch_size": 4, "max_token_len": 256,
		"starting_step": 0, "num_steps": 10,
		"save_checkpoint_interval": 5, "checkpoint_dir": "/tmp",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	var regResp map[string]string
	decodeBody(t, rec, &regResp)
	assert.NotEmpty(t, regResp["uuid"])

	rec = doJSON(t, h, http.MethodGet, "/info", nil)
	var info map[string]int
	decodeBody(t, rec, &info)
	assert.Equal(t, 4, info["batch_size"])
	assert.Equal(t, 256, info["max_token_len"])
}

func TestHandlers_RegisterEnvGate(t *testing.T) {
	h := newTestServer(t)
	doJSON(t, h, http.MethodPost, "/register", map[string]any{
		"run_group": "a", "run_project": "p",
		"batch_size": 4, "max_token_len": 256,
		"starting_step": 0, "num_steps": 10,
		"save_checkpoint_interval": 5, "checkpoint_dir": "/tmp",
	})

	rec := doJSON(t, h, http.MethodPost, "/register-env", map[string]any{
		"max_token_length": 256, "desired_name": "e", "weight": 1.0, "group_size": 4,
	})
	var resp map[string]any
	decodeBody(t, rec, &resp)
	assert.Equal(t, "wait for trainer to start", resp["status"])

	rec = doJSON(t, h, http.MethodGet, "/batch", nil)
	var batchResp map[string]any
	decodeBody(t, rec, &batchResp)
	assert.Nil(t, batchResp["batch"])

	rec = doJSON(t, h, http.MethodPost, "/register-env", map[string]any{
		"max_token_length": 256, "desired_name": "e", "weight": 1.0, "group_size": 4,
	})
	decodeBody(t, rec, &resp)
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, "e_0", resp["run_name"])
	assert.Equal(t, float64(0), resp["env_id"])
}

func TestHandlers_ScoredDataValidation(t *testing.T) {
	h := newTestServer(t)
	doJSON(t, h, http.MethodPost, "/register", map[string]any{
		"run_group": "a", "run_project": "p",
		"batch_size": 4, "max_token_len": 256,
		"starting_step": 0, "num_steps": 10,
		"save_checkpoint_interval": 5, "checkpoint_dir": "/tmp",
	})

	rec := doJSON(t, h, http.MethodPost, "/scored_data", map[string]any{
		"tokens": [][]int{{1, 2}},
		"masks":  [][]int{{1}}, // mismatched inner length
		"scores": []float64{1.0},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_ResetData(t *testing.T) {
	h := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/reset_data", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Reset successful", rec.Body.String())
}

func TestHandlers_Health(t *testing.T) {
	h := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	var health map[string]any
	decodeBody(t, rec, &health)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, false, health["started"])
}

func TestHandlers_StatusEnvRequiresEnvID(t *testing.T) {
	h := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/status-env", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_MetricsExposesCoordinatorInstruments(t *testing.T) {
	h := newTestServer(t)
	doJSON(t, h, http.MethodPost, "/register", map[string]any{
		"run_group": "a", "run_project": "p",
		"batch_size": 4, "max_token_len": 256,
		"starting_step": 0, "num_steps": 10,
		"save_checkpoint_interval": 5, "checkpoint_dir": "/tmp",
	})

	rec := doJSON(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "atropos_queue_size", "per-instance registry must back /metrics, not the global default")
	assert.Contains(t, body, "atropos_current_step")
	assert.Contains(t, body, "atropos_batches_served_total")
	assert.Contains(t, body, "atropos_envs_registered")
	assert.Contains(t, body, "atropos_http_requests_total")
}
