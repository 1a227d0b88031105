package keypool

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"quotepix/internal/domain"
	"quotepix/internal/infra"
	"quotepix/internal/infra/credentials"
	"quotepix/internal/sqlinline"
)

const (
	testTenantID = "11111111-1111-4111-8111-111111111111"
	testSecret   = "resolver-test-secret"
)

// ledgerDB fakes the tenant credit ledger and the integration token table.
type ledgerDB struct {
	planTier     string
	graceCredits int
	graceUsed    int
	platformKey  string

	// consumeRace drops the conditional update's row once, simulating a
	// concurrent consumer winning between the read and the write.
	consumeRace bool

	consumeCalls int
}

var _ infra.SQLExecutor = (*ledgerDB)(nil)

func (db *ledgerDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("unexpected Exec")
}

func (db *ledgerDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected Query")
}

func (db *ledgerDB) QueryRow(_ context.Context, query string, _ ...any) pgx.Row {
	switch query {
	case sqlinline.QSelectIntegrationToken:
		if db.platformKey == "" {
			return scanFunc(func(...any) error { return pgx.ErrNoRows })
		}
		return scanFunc(func(dest ...any) error {
			*dest[0].(*string) = db.platformKey
			return nil
		})
	case sqlinline.QSelectTenantCreditState:
		return scanFunc(func(dest ...any) error {
			*dest[0].(*string) = db.planTier
			*dest[1].(*int) = db.graceCredits
			*dest[2].(*int) = db.graceUsed
			return nil
		})
	case sqlinline.QConsumeGraceCredit:
		db.consumeCalls++
		if db.consumeRace {
			db.consumeRace = false
			db.graceUsed = db.graceCredits
			return scanFunc(func(...any) error { return pgx.ErrNoRows })
		}
		if db.graceUsed >= db.graceCredits {
			return scanFunc(func(...any) error { return pgx.ErrNoRows })
		}
		db.graceUsed++
		return scanFunc(func(dest ...any) error {
			*dest[0].(*int) = db.graceUsed
			*dest[1].(*int) = db.graceCredits
			return nil
		})
	}
	return scanFunc(func(...any) error { return errors.New("unexpected QueryRow") })
}

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }

func newTestResolver(db *ledgerDB, fallbackKey string) *Resolver {
	return NewResolver(db, credentials.NewStore(db), testSecret, fallbackKey,
		[]string{"tier1", "tier2"}, zerolog.Nop())
}

func eligibleTenant() *domain.Tenant {
	return &domain.Tenant{ID: testTenantID, PlanTier: "tier1"}
}

func mustEncrypt(t *testing.T, key string) string {
	t.Helper()
	enc, err := credentials.EncryptKey(testSecret, key)
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	return enc
}

func TestResolveTenantKeyWins(t *testing.T) {
	db := &ledgerDB{planTier: "tier1", graceCredits: 5, platformKey: "sk-platform"}
	resolver := newTestResolver(db, "")

	tenant := eligibleTenant()
	tenant.APIKeyEnc = mustEncrypt(t, "sk-tenant-abc")

	for _, preferred := range []Source{SourceAuto, SourceTenant, SourceShared} {
		key, err := resolver.Resolve(context.Background(), tenant, preferred, true)
		if err != nil {
			t.Fatalf("Resolve(%s): %v", preferred, err)
		}
		if key.Source != SourceTenant || key.APIKey != "sk-tenant-abc" {
			t.Fatalf("Resolve(%s) = %+v, want tenant key", preferred, key)
		}
	}
	if db.consumeCalls != 0 {
		t.Fatalf("tenant-key resolution charged the shared pool %d times", db.consumeCalls)
	}
}

func TestResolveUndecryptableTenantKey(t *testing.T) {
	resolver := newTestResolver(&ledgerDB{}, "")

	tenant := eligibleTenant()
	tenant.APIKeyEnc = "not-a-valid-blob"

	_, err := resolver.Resolve(context.Background(), tenant, SourceAuto, true)
	if domain.Code(err) != domain.CodeCredentialDecrypt {
		t.Fatalf("code = %q, want %q (err: %v)", domain.Code(err), domain.CodeCredentialDecrypt, err)
	}
	if !errors.Is(err, credentials.ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt in the chain, got %v", err)
	}
}

func TestResolvePlatformKeyMissing(t *testing.T) {
	resolver := newTestResolver(&ledgerDB{planTier: "tier1", graceCredits: 5}, "")

	_, err := resolver.Resolve(context.Background(), eligibleTenant(), SourceAuto, true)
	if domain.Code(err) != domain.CodePlatformKeyMissing {
		t.Fatalf("code = %q, want %q", domain.Code(err), domain.CodePlatformKeyMissing)
	}
}

func TestResolveFallbackPlatformKey(t *testing.T) {
	db := &ledgerDB{planTier: "tier1", graceCredits: 5}
	resolver := newTestResolver(db, "sk-env-fallback")

	key, err := resolver.Resolve(context.Background(), eligibleTenant(), SourceAuto, true)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if key.Source != SourceShared || key.APIKey != "sk-env-fallback" {
		t.Fatalf("unexpected key: %+v", key)
	}
}

func TestResolvePlanNotEligible(t *testing.T) {
	db := &ledgerDB{planTier: "free", graceCredits: 5, platformKey: "sk-platform"}
	resolver := newTestResolver(db, "")

	_, err := resolver.Resolve(context.Background(), eligibleTenant(), SourceAuto, true)
	if domain.Code(err) != domain.CodePlanNotEligible {
		t.Fatalf("code = %q, want %q", domain.Code(err), domain.CodePlanNotEligible)
	}
	if db.consumeCalls != 0 {
		t.Fatal("ineligible plan must not reach the consume statement")
	}
}

func TestResolveCreditsExhausted(t *testing.T) {
	db := &ledgerDB{planTier: "tier1", graceCredits: 3, graceUsed: 3, platformKey: "sk-platform"}
	resolver := newTestResolver(db, "")

	_, err := resolver.Resolve(context.Background(), eligibleTenant(), SourceAuto, true)
	var exhausted *domain.CreditsExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected CreditsExhaustedError, got %v", err)
	}
	if exhausted.Used != 3 || exhausted.Granted != 3 {
		t.Fatalf("unexpected counters: %+v", exhausted)
	}
	if db.consumeCalls != 0 {
		t.Fatal("exhausted pool must not reach the consume statement")
	}
}

func TestResolveConsumesExactlyOneCredit(t *testing.T) {
	db := &ledgerDB{planTier: "tier1", graceCredits: 5, graceUsed: 2, platformKey: "sk-platform"}
	resolver := newTestResolver(db, "")

	key, err := resolver.Resolve(context.Background(), eligibleTenant(), SourceAuto, true)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if key.Source != SourceShared || key.APIKey != "sk-platform" {
		t.Fatalf("unexpected key: %+v", key)
	}
	if db.consumeCalls != 1 || db.graceUsed != 3 {
		t.Fatalf("consume calls = %d, grace_used = %d", db.consumeCalls, db.graceUsed)
	}
}

func TestResolveWithoutConsumeLeavesLedgerUntouched(t *testing.T) {
	db := &ledgerDB{planTier: "tier1", graceCredits: 5, graceUsed: 2, platformKey: "sk-platform"}
	resolver := newTestResolver(db, "")

	key, err := resolver.Resolve(context.Background(), eligibleTenant(), SourceAuto, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if key.Source != SourceShared {
		t.Fatalf("unexpected source: %+v", key)
	}
	if db.consumeCalls != 0 || db.graceUsed != 2 {
		t.Fatalf("preview resolution mutated the ledger: calls=%d used=%d", db.consumeCalls, db.graceUsed)
	}
}

func TestResolveConsumeLosesRace(t *testing.T) {
	// The read sees a credit left, but a concurrent consumer takes it before
	// the conditional update lands. The zero-row outcome must surface as the
	// specific exhaustion error, never as a charge.
	db := &ledgerDB{planTier: "tier1", graceCredits: 5, graceUsed: 4, platformKey: "sk-platform", consumeRace: true}
	resolver := newTestResolver(db, "")

	_, err := resolver.Resolve(context.Background(), eligibleTenant(), SourceAuto, true)
	var exhausted *domain.CreditsExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected CreditsExhaustedError after lost race, got %v", err)
	}
	if db.graceUsed != db.graceCredits {
		t.Fatalf("lost race must not overcharge: used=%d credits=%d", db.graceUsed, db.graceCredits)
	}
}

func TestResolveNilTenant(t *testing.T) {
	resolver := newTestResolver(&ledgerDB{}, "")
	if _, err := resolver.Resolve(context.Background(), nil, SourceAuto, true); err == nil {
		t.Fatal("expected an error for a nil tenant")
	}
}
