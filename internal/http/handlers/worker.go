package handlers

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
)

const maxSweepBatch = 50

// RunWorkerSweep is the scheduled/kick entry point: it claims up to max
// queued jobs and runs them. An external scheduler calls it on a fixed
// interval as the durability fallback for the Gateway's opportunistic kick.
func (a *App) RunWorkerSweep(w http.ResponseWriter, r *http.Request) {
	if !a.sweepAuthorized(r) {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid or missing worker secret")
		return
	}

	max := a.SweepBatch
	if raw := r.URL.Query().Get("max"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "max must be a positive integer")
			return
		}
		max = parsed
	}
	if max <= 0 {
		max = 1
	}
	if max > maxSweepBatch {
		max = maxSweepBatch
	}

	result, err := a.Worker.RunSweep(r.Context(), max)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: worker sweep failed")
		a.error(w, http.StatusInternalServerError, "internal", "sweep failed")
		return
	}
	a.json(w, http.StatusOK, result)
}

// sweepAuthorized checks the shared secret via bearer token or query
// parameter. With no secret configured the endpoint is open; that is an
// explicit operator choice and documented as insecure by default.
func (a *App) sweepAuthorized(r *http.Request) bool {
	if a.WorkerSecret == "" {
		return true
	}
	candidate := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if candidate == r.Header.Get("Authorization") {
		candidate = ""
	}
	if candidate == "" {
		candidate = r.URL.Query().Get("secret")
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(a.WorkerSecret)) == 1
}
