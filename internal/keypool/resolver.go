package keypool

import (
	"context"
	"fmt"
	"slices"

	"quotepix/internal/domain"
	"quotepix/internal/infra"
	"quotepix/internal/infra/credentials"
	"quotepix/internal/sqlinline"
)

// Source is a caller hint for which credential pool should fund a generation
// call. The resolver may override it: a tenant-owned key always wins, even
// over an explicit SourceShared request, so shared credits are never spent
// when the tenant can pay their own way.
type Source string

const (
	SourceAuto   Source = "auto"
	SourceTenant Source = "tenant"
	SourceShared Source = "shared"
)

// ResolvedKey is the credential chosen for one generation call.
type ResolvedKey struct {
	Source Source
	APIKey string
}

// Resolver decides which credential funds a job and meters the shared pool.
// All grace_used mutation in the system goes through Resolve; no other code
// path writes the counter.
type Resolver struct {
	sql         infra.SQLExecutor
	creds       *credentials.Store
	credSecret  string
	fallbackKey string // platform key from the environment, used when none is stored
	graceTiers  []string
	logger      infra.Logger
}

func NewResolver(sql infra.SQLExecutor, creds *credentials.Store, credSecret, fallbackKey string, graceTiers []string, logger infra.Logger) *Resolver {
	return &Resolver{
		sql:         sql,
		creds:       creds,
		credSecret:  credSecret,
		fallbackKey: fallbackKey,
		graceTiers:  graceTiers,
		logger:      logger,
	}
}

// Resolve picks the credential for tenant and, when consume is true and the
// shared pool is chosen, atomically charges one grace credit. With consume
// false the same eligibility and remaining-credit checks still run; only the
// charge is skipped.
func (r *Resolver) Resolve(ctx context.Context, tenant *domain.Tenant, preferred Source, consume bool) (ResolvedKey, error) {
	if tenant == nil {
		return ResolvedKey{}, fmt.Errorf("tenant is required")
	}

	if tenant.APIKeyEnc != "" {
		if preferred == SourceShared {
			r.logger.Info().
				Str("tenant_id", tenant.ID).
				Msg("keypool: shared-pool hint overridden, tenant key present")
		}
		key, err := credentials.DecryptKey(r.credSecret, tenant.APIKeyEnc)
		if err != nil {
			return ResolvedKey{}, domain.CodedWrap(domain.CodeCredentialDecrypt, "tenant credential unusable", err)
		}
		return ResolvedKey{Source: SourceTenant, APIKey: key}, nil
	}

	platformKey, err := r.creds.PlatformGenerationKey(ctx)
	if err != nil {
		return ResolvedKey{}, fmt.Errorf("load platform key: %w", err)
	}
	if platformKey == "" {
		platformKey = r.fallbackKey
	}
	if platformKey == "" {
		return ResolvedKey{}, domain.Coded(domain.CodePlatformKeyMissing, "no platform generation key configured")
	}

	state, err := r.creditState(ctx, tenant.ID)
	if err != nil {
		return ResolvedKey{}, err
	}
	if err := r.gateState(state); err != nil {
		return ResolvedKey{}, err
	}

	if consume {
		if err := r.consume(ctx, tenant.ID); err != nil {
			return ResolvedKey{}, err
		}
	}

	return ResolvedKey{Source: SourceShared, APIKey: platformKey}, nil
}

func (r *Resolver) creditState(ctx context.Context, tenantID string) (domain.TenantCreditState, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectTenantCreditState, tenantID)
	var state domain.TenantCreditState
	if err := row.Scan(&state.PlanTier, &state.GraceCredits, &state.GraceUsed); err != nil {
		if infra.IsNoRows(err) {
			return state, domain.ErrNotFound
		}
		return state, err
	}
	return state, nil
}

func (r *Resolver) gateState(state domain.TenantCreditState) error {
	if !slices.Contains(r.graceTiers, state.PlanTier) {
		return domain.Coded(domain.CodePlanNotEligible,
			fmt.Sprintf("plan %q does not qualify for the shared pool", state.PlanTier))
	}
	if state.GraceUsed >= state.GraceCredits {
		return &domain.CreditsExhaustedError{Used: state.GraceUsed, Granted: state.GraceCredits}
	}
	return nil
}

// consume performs the single conditional increment. The WHERE clause
// re-checks tier eligibility and remaining credits at write time, which
// closes the race window between the earlier read and the charge: N
// concurrent consumers against C remaining credits yield exactly C successes.
func (r *Resolver) consume(ctx context.Context, tenantID string) error {
	row := r.sql.QueryRow(ctx, sqlinline.QConsumeGraceCredit, tenantID, r.graceTiers)
	var used, granted int
	err := row.Scan(&used, &granted)
	if err == nil {
		r.logger.Info().
			Str("tenant_id", tenantID).
			Int("grace_used", used).
			Int("grace_credits", granted).
			Msg("keypool: grace credit consumed")
		return nil
	}
	if !infra.IsNoRows(err) {
		return err
	}

	// Zero rows: something changed between the read and the write. Re-read
	// and raise the most specific applicable error.
	state, stateErr := r.creditState(ctx, tenantID)
	if stateErr != nil {
		return stateErr
	}
	if gateErr := r.gateState(state); gateErr != nil {
		return gateErr
	}
	return fmt.Errorf("grace credit consume affected no rows for tenant %s", tenantID)
}
