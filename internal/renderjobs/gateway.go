package renderjobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"quotepix/internal/domain"
	"quotepix/internal/infra"
)

// RequestStatus is the caller-visible state of a render request.
type RequestStatus string

const (
	StatusNotRequested RequestStatus = "not_requested"
	StatusQueued       RequestStatus = "queued"
	StatusRunning      RequestStatus = "running"
	StatusRendered     RequestStatus = "rendered"
)

// RequestResult is the Gateway's synchronous answer. Safe to return verbatim
// to API callers.
type RequestResult struct {
	Status   RequestStatus `json:"status"`
	JobID    string        `json:"job_id,omitempty"`
	ImageURL string        `json:"image_url,omitempty"`
}

// Gateway is the only entry point that creates render jobs. It upholds the
// soft invariant that at most one job per quote is queued or running at a
// time, and it kicks the worker opportunistically so callers see low latency
// without depending on it.
type Gateway struct {
	store       *Store
	worker      *Worker
	logger      infra.Logger
	kickTimeout time.Duration
}

func NewGateway(store *Store, worker *Worker, logger infra.Logger, kickTimeout time.Duration) *Gateway {
	if kickTimeout <= 0 {
		kickTimeout = 3 * time.Second
	}
	return &Gateway{store: store, worker: worker, logger: logger, kickTimeout: kickTimeout}
}

// RequestRender resolves the quote, dedupes against in-flight work, and
// enqueues a new job when needed. Repeated calls for the same quote are
// always safe: after success they return the stored image, mid-flight they
// return the existing job.
func (g *Gateway) RequestRender(ctx context.Context, tenantRef, quoteID string) (RequestResult, error) {
	tenant, err := g.store.TenantByRef(ctx, tenantRef)
	if err != nil {
		return RequestResult{}, fmt.Errorf("resolve tenant %q: %w", tenantRef, err)
	}
	quote, err := g.store.QuoteForRender(ctx, quoteID, tenant.ID)
	if err != nil {
		return RequestResult{}, fmt.Errorf("resolve quote %q: %w", quoteID, err)
	}

	if !quote.RenderOptIn {
		return RequestResult{Status: StatusNotRequested}, nil
	}

	if quote.RenderStatus == string(domain.JobStatusRendered) && quote.RenderImageURL != "" {
		return RequestResult{Status: StatusRendered, ImageURL: quote.RenderImageURL}, nil
	}

	if jobID, status, err := g.store.FindActive(ctx, tenant.ID, quote.ID); err == nil {
		g.kick()
		return RequestResult{Status: RequestStatus(status), JobID: jobID}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return RequestResult{}, err
	}

	jobID, err := g.store.Enqueue(ctx, tenant.ID, quote.ID, seedPrompt(quote))
	if err != nil {
		return RequestResult{}, err
	}
	g.store.MirrorQuote(ctx, quote.ID, string(domain.JobStatusQueued), "", "", "")
	g.kick()
	return RequestResult{Status: StatusQueued, JobID: jobID}, nil
}

// kick runs a single-job sweep on a detached context with a hard timeout.
// Purely a latency optimization: errors and timeouts are swallowed because
// the scheduled sweep is the durable fallback. The timeout bounds only the
// claim; once a job is claimed the worker detaches from this deadline and
// runs it to a terminal state.
func (g *Gateway) kick() {
	if g.worker == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.kickTimeout)
		defer cancel()
		if _, err := g.worker.RunSweep(ctx, 1); err != nil {
			g.logger.Debug().Err(err).Msg("gateway: opportunistic kick failed")
		}
	}()
}

// seedPrompt is a cheap placeholder stored at enqueue time. The worker
// replaces it with the fully composed instruction; enqueue must not resolve
// tenant policy.
func seedPrompt(quote *domain.Quote) string {
	service := strings.TrimSpace(quote.ServiceType)
	if service == "" {
		return "After visualization"
	}
	return "After visualization: " + service
}
