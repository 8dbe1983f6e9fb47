package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	derrors "omnigest/pkg/domain-errors"
	"omnigest/pkg/platform/sentinel"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation to HTTP responses so every
// handler returns the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := string(derrors.CodeInternal)

	var de *derrors.Error
	switch {
	case errors.As(err, &de):
		status = derrors.ToHTTPStatus(de.Code)
		code = string(de.Code)
	case errors.Is(err, sentinel.ErrNotFound):
		status = http.StatusNotFound
		code = string(derrors.CodeNotFound)
	}

	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": err.Error(),
	})
}
