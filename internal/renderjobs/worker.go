package renderjobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quotepix/internal/composer"
	"quotepix/internal/domain"
	"quotepix/internal/infra"
	"quotepix/internal/keypool"
	"quotepix/internal/notify"
	"quotepix/internal/providers/image"
	"quotepix/internal/storage"
)

const renderAspectRatio = "4:3"

// Worker executes claimed render jobs: compose and guard the prompt, resolve
// the funding credential, call the generation service, upload the artifact,
// persist the terminal state and fire the best-effort notification.
type Worker struct {
	store     *Store
	resolver  *keypool.Resolver
	generator image.Generator
	objects   storage.ObjectStore
	notifier  notify.Notifier
	logger    infra.Logger

	platformCap    int
	blockedTopics  []string
	safetyPreamble string
}

// WorkerOptions wires the worker's collaborators and platform guardrails.
type WorkerOptions struct {
	Store     *Store
	Resolver  *keypool.Resolver
	Generator image.Generator
	Objects   storage.ObjectStore
	Notifier  notify.Notifier
	Logger    infra.Logger

	PlatformDailyCap int
	BlockedTopics    []string
	SafetyPreamble   string
}

func NewWorker(opts WorkerOptions) *Worker {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	return &Worker{
		store:          opts.Store,
		resolver:       opts.Resolver,
		generator:      opts.Generator,
		objects:        opts.Objects,
		notifier:       notifier,
		logger:         opts.Logger,
		platformCap:    opts.PlatformDailyCap,
		blockedTopics:  opts.BlockedTopics,
		safetyPreamble: opts.SafetyPreamble,
	}
}

// JobResult is the per-job outcome of a sweep.
type JobResult struct {
	JobID     string `json:"job_id"`
	QuoteID   string `json:"quote_id"`
	OK        bool   `json:"ok"`
	ImageURL  string `json:"image_url,omitempty"`
	ErrorCode string `json:"error,omitempty"`
}

// SweepResult summarizes one claim-and-run pass.
type SweepResult struct {
	Claimed int         `json:"claimed"`
	Results []JobResult `json:"results"`
}

// RunSweep claims up to maxJobs queued jobs and runs each to a terminal
// state. One job's failure never aborts the rest of the batch; per-job errors
// land in the result set, not in the returned error.
func (w *Worker) RunSweep(ctx context.Context, maxJobs int) (SweepResult, error) {
	jobs, err := w.store.ClaimUpTo(ctx, maxJobs)
	if err != nil {
		return SweepResult{}, err
	}
	result := SweepResult{Claimed: len(jobs)}
	for _, job := range jobs {
		result.Results = append(result.Results, w.execute(ctx, job))
	}
	return result, nil
}

func (w *Worker) execute(ctx context.Context, job domain.RenderJob) JobResult {
	// A claimed job always runs to a terminal state on its own merits. The
	// claimer's deadline (the gateway's kick timeout, a scheduler hanging up
	// on the sweep endpoint) bounds only the claim; it must not cancel an
	// in-flight generation and turn a healthy job into a failed one.
	ctx = context.WithoutCancel(ctx)

	start := time.Now()
	w.logger.Info().Str("job_id", job.ID).Str("quote_id", job.QuoteID).Msg("worker: picked job")

	outcome, err := w.renderJob(ctx, job)
	if err != nil {
		code := domain.Code(err)
		w.logger.Error().Err(err).
			Str("job_id", job.ID).
			Str("code", code).
			Msg("worker: job failed")
		if cerr := w.store.Complete(ctx, job.ID, domain.JobStatusFailed, outcome.prompt, "", code); cerr != nil {
			w.logger.Error().Err(cerr).Str("job_id", job.ID).Msg("worker: persist failure state failed")
		}
		w.store.MirrorQuote(ctx, job.QuoteID, string(domain.JobStatusFailed), "", code, outcome.prompt)
		w.store.RecordUsage(ctx, job.TenantID, job.ID, "render", false, code, time.Since(start))
		return JobResult{JobID: job.ID, QuoteID: job.QuoteID, ErrorCode: code}
	}

	if cerr := w.store.Complete(ctx, job.ID, domain.JobStatusRendered, outcome.prompt, outcome.imageURL, ""); cerr != nil {
		w.logger.Error().Err(cerr).Str("job_id", job.ID).Msg("worker: persist rendered state failed")
	}
	w.store.MirrorQuote(ctx, job.QuoteID, string(domain.JobStatusRendered), outcome.imageURL, "", outcome.prompt)
	w.store.RecordUsage(ctx, job.TenantID, job.ID, "render", true, "", time.Since(start))

	// Terminal state is durable at this point; notification is best effort
	// and must never flip it back.
	w.dispatchNotification(ctx, job, outcome)

	return JobResult{JobID: job.ID, QuoteID: job.QuoteID, OK: true, ImageURL: outcome.imageURL}
}

type renderOutcome struct {
	prompt   string
	imageURL string
	quote    *domain.Quote
}

// renderJob runs the generation pipeline for one claimed job. Checks that
// cost nothing (opt-in, photos, cap, guardrails) all run before the credit
// consume and the paid external call.
func (w *Worker) renderJob(ctx context.Context, job domain.RenderJob) (renderOutcome, error) {
	var out renderOutcome

	tenant, err := w.store.TenantByID(ctx, job.TenantID)
	if err != nil {
		return out, fmt.Errorf("load tenant: %w", err)
	}
	quote, err := w.store.QuoteForRender(ctx, job.QuoteID, job.TenantID)
	if err != nil {
		return out, fmt.Errorf("load quote: %w", err)
	}
	out.quote = quote

	if !quote.RenderOptIn {
		return out, domain.Coded(domain.CodeRenderNotRequested, "quote is not opted in to rendering")
	}
	if len(quote.PhotoURLs) == 0 {
		return out, domain.Coded(domain.CodeMissingPhotos, "quote has no photos to render from")
	}

	cap := composer.EffectiveDailyCap(w.platformCap, tenant.DailyRenderCap)
	if cap > 0 {
		count, err := w.store.CountRenderedSince(ctx, tenant.ID, startOfDay(time.Now()))
		if err != nil {
			return out, fmt.Errorf("daily cap check: %w", err)
		}
		if count >= cap {
			return out, domain.Coded(domain.CodeDailyCapReached,
				fmt.Sprintf("daily render cap reached (%d/%d)", count, cap))
		}
	}

	guardrails := composer.NewGuardrailSet(
		append(append([]string{}, w.blockedTopics...), tenant.BlockedTopics...),
		w.safetyPreamble,
		cap,
	)
	if err := guardrails.Check(
		quote.ServiceType,
		quote.Summary,
		quote.CustomerNotes,
		tenant.StyleNotes,
		composer.StyleText(tenant.StyleKey, tenant.StyleNotes),
	); err != nil {
		return out, err
	}

	composed := composer.Compose(composer.Layers{
		IndustryPack:   composer.IndustryPack(tenant.Industry),
		TenantBase:     tenant.BasePrompt,
		StyleKey:       tenant.StyleKey,
		StyleNotes:     tenant.StyleNotes,
		ServiceType:    quote.ServiceType,
		Summary:        quote.Summary,
		CustomerNotes:  quote.CustomerNotes,
		SafetyPreamble: guardrails.SafetyPreamble,
		PricingEnabled: tenant.PricingEnabled,
		PricingMode:    tenant.PricingMode,
	})
	out.prompt = composed.Text

	key, err := w.resolver.Resolve(ctx, tenant, keypool.SourceAuto, true)
	if err != nil {
		return out, err
	}

	asset, err := w.generator.Generate(ctx, image.GenerateRequest{
		Prompt:          composed.Text,
		AspectRatio:     renderAspectRatio,
		SourceImageURLs: quote.PhotoURLs,
		APIKey:          key.APIKey,
		RequestID:       job.ID,
	})
	if err != nil {
		return out, domain.CodedWrap(domain.CodeGenerationFailed, "image generation failed", err)
	}

	if w.objects == nil {
		return out, domain.Coded(domain.CodeStorageUnconfigured, "no object store configured")
	}
	storageKey := fmt.Sprintf("renders/%s/%s%s", tenant.ID, job.ID, extensionForMIME(asset.MIME))
	url, err := w.objects.Put(ctx, storageKey, asset.MIME, asset.Data)
	if err != nil {
		return out, domain.CodedWrap(domain.CodeUploadFailed, "artifact upload failed", err)
	}
	out.imageURL = url
	return out, nil
}

func (w *Worker) dispatchNotification(ctx context.Context, job domain.RenderJob, outcome renderOutcome) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Str("job_id", job.ID).Msgf("worker: notification dispatch panicked: %v", r)
		}
	}()
	event := notify.RenderCompleted{
		TenantID: job.TenantID,
		QuoteID:  job.QuoteID,
		JobID:    job.ID,
		ImageURL: outcome.imageURL,
	}
	if outcome.quote != nil {
		event.CustomerName = outcome.quote.CustomerName
		event.CustomerEmail = outcome.quote.CustomerEmail
	}
	if err := w.notifier.RenderCompleted(ctx, event); err != nil {
		w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("worker: notification dispatch failed")
		w.store.RecordUsage(ctx, job.TenantID, job.ID, "notify", false, domain.Code(err), 0)
	}
}

func startOfDay(t time.Time) time.Time {
	local := t.Local()
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
