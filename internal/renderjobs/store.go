package renderjobs

import (
	"context"
	"fmt"
	"time"

	"quotepix/internal/domain"
	"quotepix/internal/infra"
	"quotepix/internal/sqlinline"
)

// Store is the durable substrate for render jobs plus the tenant and quote
// reads the pipeline needs. All statements go through the marked inline SQL
// in sqlinline.
type Store struct {
	sql    infra.SQLExecutor
	logger infra.Logger
}

func NewStore(sql infra.SQLExecutor, logger infra.Logger) *Store {
	return &Store{sql: sql, logger: logger}
}

// Enqueue inserts a new queued job and returns its id. Dedupe against
// existing in-flight jobs is the Gateway's responsibility, not Enqueue's.
func (s *Store) Enqueue(ctx context.Context, tenantID, quoteID, seedPrompt string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QEnqueueRenderJob, tenantID, quoteID, seedPrompt)
	var id string
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("enqueue render job: %w", err)
	}
	return id, nil
}

// ClaimUpTo atomically claims up to n queued jobs, oldest first, skipping
// rows locked by concurrent claimers. Selection and the transition to
// running happen in one statement, so two callers never receive the same
// job. Fewer than n results (including zero) is not an error.
func (s *Store) ClaimUpTo(ctx context.Context, n int) ([]domain.RenderJob, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.sql.Query(ctx, sqlinline.QClaimRenderJobs, n)
	if err != nil {
		return nil, fmt.Errorf("claim render jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.RenderJob
	for rows.Next() {
		var j domain.RenderJob
		if err := rows.Scan(
			&j.ID,
			&j.TenantID,
			&j.QuoteID,
			&j.Status,
			&j.Prompt,
			&j.ImageURL,
			&j.ErrorCode,
			&j.CreatedAt,
			&j.StartedAt,
			&j.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan claimed job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed jobs: %w", err)
	}
	return jobs, nil
}

// Complete moves a running job to its terminal state. Only the worker holding
// the claim may call it. A zero-row update means the row vanished or was
// already terminal; the expensive work already happened, so that is logged
// and swallowed rather than surfaced.
func (s *Store) Complete(ctx context.Context, jobID string, status domain.JobStatus, finalPrompt, imageURL, errorCode string) error {
	if !status.Terminal() {
		return fmt.Errorf("complete render job: %q is not a terminal status", status)
	}
	tag, err := s.sql.Exec(ctx, sqlinline.QCompleteRenderJob, jobID, string(status), finalPrompt, imageURL, errorCode)
	if err != nil {
		return fmt.Errorf("complete render job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Warn().Str("job_id", jobID).Str("status", string(status)).
			Msg("renderjobs: complete affected no rows")
	}
	return nil
}

// FindActive returns the queued or running job for a quote, if any.
func (s *Store) FindActive(ctx context.Context, tenantID, quoteID string) (string, domain.JobStatus, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QFindActiveJobForQuote, tenantID, quoteID)
	var id string
	var status domain.JobStatus
	if err := row.Scan(&id, &status); err != nil {
		if infra.IsNoRows(err) {
			return "", "", domain.ErrNotFound
		}
		return "", "", fmt.Errorf("find active job: %w", err)
	}
	return id, status, nil
}

// CountRenderedSince counts the tenant's successful renders completed at or
// after the given instant. The daily cap is derived from this count rather
// than a second mutable counter that could drift.
func (s *Store) CountRenderedSince(ctx context.Context, tenantID string, since time.Time) (int, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QCountRenderedSince, tenantID, since)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count rendered jobs: %w", err)
	}
	return count, nil
}

// TenantByRef resolves a tenant by slug or id.
func (s *Store) TenantByRef(ctx context.Context, ref string) (*domain.Tenant, error) {
	return s.scanTenant(s.sql.QueryRow(ctx, sqlinline.QSelectTenantByRef, ref))
}

// TenantByID resolves a tenant by id.
func (s *Store) TenantByID(ctx context.Context, id string) (*domain.Tenant, error) {
	return s.scanTenant(s.sql.QueryRow(ctx, sqlinline.QSelectTenantByID, id))
}

func (s *Store) scanTenant(row interface{ Scan(...any) error }) (*domain.Tenant, error) {
	var t domain.Tenant
	if err := row.Scan(
		&t.ID,
		&t.Slug,
		&t.PlanTier,
		&t.GraceCredits,
		&t.GraceUsed,
		&t.APIKeyEnc,
		&t.Industry,
		&t.BasePrompt,
		&t.StyleKey,
		&t.StyleNotes,
		&t.PricingEnabled,
		&t.PricingMode,
		&t.BlockedTopics,
		&t.DailyRenderCap,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	return &t, nil
}

// QuoteForRender loads a quote scoped to its tenant.
func (s *Store) QuoteForRender(ctx context.Context, quoteID, tenantID string) (*domain.Quote, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectQuoteForRender, quoteID, tenantID)
	var q domain.Quote
	if err := row.Scan(
		&q.ID,
		&q.TenantID,
		&q.ServiceType,
		&q.Summary,
		&q.CustomerNotes,
		&q.CustomerName,
		&q.CustomerEmail,
		&q.PhotoURLs,
		&q.RenderOptIn,
		&q.RenderStatus,
		&q.RenderImageURL,
		&q.RenderError,
		&q.RenderPrompt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan quote: %w", err)
	}
	return &q, nil
}

// MirrorQuote copies job state onto the quote row for UI convenience. The
// job store stays the source of truth, so mirror failures are logged, not
// propagated.
func (s *Store) MirrorQuote(ctx context.Context, quoteID, status, imageURL, errorCode, prompt string) {
	if _, err := s.sql.Exec(ctx, sqlinline.QUpdateQuoteRenderState, quoteID, status, imageURL, errorCode, prompt); err != nil {
		s.logger.Error().Err(err).Str("quote_id", quoteID).Msg("renderjobs: quote mirror update failed")
	}
}

// RecordUsage appends a usage event for analytics. Best effort.
func (s *Store) RecordUsage(ctx context.Context, tenantID, jobID, eventType string, success bool, code string, latency time.Duration) {
	if _, err := s.sql.Exec(ctx, sqlinline.QInsertUsageEvent,
		tenantID, jobID, eventType, success, code, int(latency.Milliseconds())); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("renderjobs: usage event insert failed")
	}
}
