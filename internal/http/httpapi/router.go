package httpapi

import (
	stdhttp "net/http"
	"time"

	"quotepix/internal/http/handlers"
	"quotepix/internal/infra"
	"quotepix/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouterOptions carries everything the router needs beyond the app itself.
type RouterOptions struct {
	Config        *infra.Config
	Logger        infra.Logger
	CountryLookup middleware.CountryLookup
	StaticDir     string // non-empty enables /static serving (filesystem storage)
}

func NewRouter(app *handlers.App, opts RouterOptions) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, middleware.RequestID, chimw.Recoverer)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.CORS(opts.Config.AllowedOrigins))
	r.Use(middleware.I18N("en", opts.CountryLookup))

	r.Get("/v1/healthz", app.Health)

	// Public surface, rate limited per caller IP.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.Config.RateLimitPerMin, time.Minute))
		r.Post("/v1/tenants/{tenant}/quotes/{quote_id}/render", app.RequestRender)
	})

	// Scheduler surface, guarded by the shared secret instead.
	r.Post("/v1/worker/sweep", app.RunWorkerSweep)

	if opts.StaticDir != "" {
		fs := stdhttp.StripPrefix("/static/", stdhttp.FileServer(stdhttp.Dir(opts.StaticDir)))
		r.Handle("/static/*", fs)
	}

	return r
}
