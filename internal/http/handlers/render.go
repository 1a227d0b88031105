package handlers

import (
	"errors"
	"net/http"

	"quotepix/internal/domain"
	"quotepix/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// Short human strings for the hard-failure paths, keyed by locale. Internal
// machine codes never leak through this surface.
var renderMessages = map[string]map[string]string{
	"quote_not_found": {
		"en": "quote not found",
		"es": "presupuesto no encontrado",
	},
	"render_failed": {
		"en": "could not process the render request",
		"es": "no se pudo procesar la solicitud de visualización",
	},
}

func localized(key, locale string) string {
	if m, ok := renderMessages[key]; ok {
		if msg, ok := m[locale]; ok {
			return msg
		}
		return m["en"]
	}
	return key
}

// RequestRender is the public entry point for requesting a render. Safe to
// call repeatedly for the same quote.
func (a *App) RequestRender(w http.ResponseWriter, r *http.Request) {
	tenantRef := chi.URLParam(r, "tenant")
	quoteID := chi.URLParam(r, "quote_id")
	if tenantRef == "" || quoteID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "tenant and quote_id are required")
		return
	}

	result, err := a.Gateway.RequestRender(r.Context(), tenantRef, quoteID)
	if err != nil {
		locale := middleware.LocaleFromContext(r.Context())
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", localized("quote_not_found", locale))
			return
		}
		a.Logger.Error().Err(err).Str("quote_id", quoteID).Msg("handlers: render request failed")
		a.error(w, http.StatusInternalServerError, "internal", localized("render_failed", locale))
		return
	}

	a.json(w, http.StatusOK, result)
}
