package api

import (
	"encoding/json"
	"net/http"

	"github.com/nodeforge/cove/pkg/apierr"
)

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return apierr.Validation("decode request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := apierr.HTTPStatus(err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func pathValue(r *http.Request, key string) string {
	return r.PathValue(key)
}
