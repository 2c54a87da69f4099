package apperrors

import (
	"encoding/json"
	"fmt"
	"os"
)

// FatalError prints err to stderr and exits the process with status 1. When
// asJSON is true the error is emitted as a single JSON object instead of a
// plain line, mirroring how the coordinator's CLI reports startup failures
// (config load, listener bind) in either human or scripted contexts.
func FatalError(err error, asJSON bool) {
	if err == nil {
		return
	}
	if asJSON {
		_ = json.NewEncoder(os.Stderr).Encode(map[string]string{"error": err.Error()})
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}
