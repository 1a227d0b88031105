package domain

// Tenant carries the slice of tenant configuration the render core needs:
// credential, plan, prompt customization and guardrail overrides.
type Tenant struct {
	ID   string
	Slug string

	PlanTier string
	// Activation grace counters. GraceUsed only ever grows; credits are
	// attempts, not successes, and are not refunded on failure.
	GraceCredits int
	GraceUsed    int

	// APIKeyEnc is the tenant-owned generation credential, encrypted at rest.
	// Empty when the tenant has none.
	APIKeyEnc string

	Industry string
	// BasePrompt is empty while the tenant is still on the platform default;
	// industry prompt packs only apply in that case.
	BasePrompt string
	StyleKey   string // photoreal | clean | custom
	StyleNotes string

	PricingEnabled bool
	PricingMode    string // range | exact

	BlockedTopics  []string
	DailyRenderCap int // <= 0 means unset
}

// TenantCreditState is the ledger slice of a tenant row.
type TenantCreditState struct {
	PlanTier     string
	GraceCredits int
	GraceUsed    int
}

// Remaining returns how many grace attempts the tenant still has.
func (s TenantCreditState) Remaining() int {
	if r := s.GraceCredits - s.GraceUsed; r > 0 {
		return r
	}
	return 0
}
