package queryapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/linkora-dex/backend/internal/gateway"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	gateway.SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func parseIntParam(q url.Values, key string, fallback int) int {
	v := q.Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
