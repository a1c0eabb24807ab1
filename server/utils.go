package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"autoclip/clip"
	"autoclip/twitchapi"
)

// parseFloat64Query extracts a float64 parameter from query string with a default value.
func parseFloat64Query(r *http.Request, key string, def float64) float64 {
	if v := r.URL.Query().Get(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// parseIntListQuery extracts a comma-separated list of ints from the query
// string. Malformed entries are skipped.
func parseIntListQuery(r *http.Request, key string) []int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	var out []int
	for _, s := range strings.Split(v, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// writeError maps the error taxonomy onto HTTP statuses: invalid input is the
// caller's fault (400), a missing upstream entity is 404, and every upstream
// or pipeline failure is a bad gateway.
func writeError(w http.ResponseWriter, err error) {
	var ve *clip.ValidationError
	if errors.As(err, &ve) {
		http.Error(w, ve.Error(), http.StatusBadRequest)
		return
	}
	var ae *twitchapi.APIError
	if errors.As(err, &ae) {
		if ae.Status == http.StatusNotFound {
			http.Error(w, ae.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, ae.Error(), http.StatusBadGateway)
		return
	}
	var fe *clip.FetchError
	var pe *clip.ParseError
	if errors.As(err, &fe) || errors.As(err, &pe) {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
