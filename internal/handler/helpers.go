package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dukerupert/annex/internal/annostore"
	"github.com/dukerupert/annex/internal/notecodec"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

func pathInt(s string) (int, error) {
	return strconv.Atoi(s)
}

// storeStatus maps storage and codec errors to HTTP status codes.
func storeStatus(err error) int {
	switch {
	case errors.Is(err, annostore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, annostore.ErrMissingID),
		errors.Is(err, annostore.ErrNegativePage),
		errors.Is(err, notecodec.ErrReservedDelimiter):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
