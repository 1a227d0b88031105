package handlers

import (
	"encoding/json"
	"net/http"

	"quotepix/internal/infra"
	"quotepix/internal/renderjobs"
)

// App bundles the handler dependencies.
type App struct {
	SQL          infra.SQLExecutor
	Gateway      *renderjobs.Gateway
	Worker       *renderjobs.Worker
	Logger       infra.Logger
	WorkerSecret string
	SweepBatch   int
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorBody{Error: errCode, Message: message})
}
