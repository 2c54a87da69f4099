package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
)

const maxEnvIDQuery = 65535

// parseEnvIDQuery extracts and validates the env_id query parameter
// (spec §6: env_id ∈ [0, 65535]).
func parseEnvIDQuery(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("env_id")
	if raw == "" {
		return 0, fmt.Errorf("env_id is required")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("env_id must be an integer")
	}
	if n < 0 || n > maxEnvIDQuery {
		return 0, fmt.Errorf("env_id must be in [0, %d]", maxEnvIDQuery)
	}
	return n, nil
}
