package control

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/jimstein/diffstock/types"
)

// writeError maps a kind-qualified error to the HTTP status the control
// surface contract requires and a stable error code string, per §7.
func writeError(w http.ResponseWriter, err error) {
	kind := types.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case types.BadInput:
		status = http.StatusBadRequest
	case types.Transient:
		status = http.StatusServiceUnavailable
	case types.Conflict:
		status = http.StatusConflict
	case types.Fatal:
		status = http.StatusInternalServerError
	}
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
		"kind":  string(kind),
	}); encErr != nil {
		log.Printf("control: error encoding error response: %v", encErr)
	}
}
