package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/kraklabs/atropos-server/internal/apperrors"
	"github.com/kraklabs/atropos-server/internal/coordinator"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a coordinator error to the taxonomy in spec §7:
// validation errors are 400, invariant violations are 500. Ordering
// errors never reach this path — those are surfaced as 200 structured
// refusals by the handlers that can produce them.
func writeError(w http.ResponseWriter, err error) {
	if e, ok := apperrors.As(err); ok && e.Kind == apperrors.KindInvariant {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": e.Error()})
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// POST /register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var desc coordinator.RunDescriptor
	if err := decodeJSON(r, &desc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	uuid, err := s.coord.Register(desc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"uuid": uuid})
}

// POST /register-env
func (s *Server) handleRegisterEnv(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var p coordinator.RegisterEnvParams
	if err := decodeJSON(r, &p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	res, ok, err := s.coord.RegisterEnv(p)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "wait for trainer to start"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "success",
		"env_id":              res.EnvID,
		"run_name":            res.RunName,
		"checkpoint_dir":      res.CheckpointDir,
		"starting_step":       res.StartingStep,
		"checkpoint_interval": res.CheckpointInterval,
		"num_steps":           res.NumSteps,
	})
}

// POST /disconnect-env
func (s *Server) handleDisconnectEnv(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		EnvID int `json:"env_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if s.coord.DisconnectEnv(req.EnvID) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "failure", "error": "unknown env_id"})
}

// GET /run_info
func (s *Server) handleRunInfo(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	group, project := s.coord.RunInfo()
	writeJSON(w, http.StatusOK, map[string]string{"group": group, "project": project})
}

// GET /info
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	batchSize, maxTokenLen := s.coord.Info()
	writeJSON(w, http.StatusOK, map[string]int{"batch_size": batchSize, "max_token_len": maxTokenLen})
}

// GET /batch
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	batch := s.coord.Batch()
	if batch == nil {
		writeJSON(w, http.StatusOK, map[string]any{"batch": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batch": *batch})
}

// GET /latest_example
func (s *Server) handleLatestExample(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.coord.LatestExample())
}

// POST /scored_data
func (s *Server) handleScoredData(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var g coordinator.ScoredGroup
	if err := decodeJSON(r, &g); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	res, err := s.coord.ScoredData(g)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"status": res.Status}
	if res.Status == "buffered" {
		resp["buffer_size"] = res.BufferSize
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /scored_data_list
func (s *Server) handleScoredDataList(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var groups []coordinator.ScoredGroup
	if err := decodeJSON(r, &groups); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	res := s.coord.ScoredDataList(groups)
	resp := map[string]any{
		"status":           "received",
		"groups_processed": res.GroupsProcessed,
	}
	if res.Buffered > 0 {
		resp["buffered"] = res.Buffered
		resp["last_buffer_size"] = res.LastBufferSize
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	currentStep, queueSize := s.coord.Status()
	writeJSON(w, http.StatusOK, map[string]int{"current_step": currentStep, "queue_size": queueSize})
}

// GET /status-env?env_id=N
func (s *Server) handleStatusEnv(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	envID, err := parseEnvIDQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.coord.StatusEnv(envID))
}

// GET /reset_data
func (s *Server) handleResetData(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	s.coord.Reset()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Reset successful"))
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.coord.Health())
}
