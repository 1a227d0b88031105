package composer

import (
	"fmt"
	"strings"
)

// platformDenylist is the baseline content denylist every tenant inherits.
var platformDenylist = []string{
	"weapon",
	"firearm",
	"explosive",
	"gore",
	"nudity",
	"violence",
	"drug lab",
	"counterfeit",
}

// GuardrailSet bundles the effective content rules for one render: the
// denylist, an extra safety preamble, and the per-tenant daily render cap.
type GuardrailSet struct {
	Denylist       []string
	SafetyPreamble string
	DailyCap       int
}

// NewGuardrailSet merges the platform denylist with configured blocked
// topics, deduplicated case-insensitively.
func NewGuardrailSet(blockedTopics []string, preamble string, dailyCap int) GuardrailSet {
	seen := make(map[string]struct{})
	var terms []string
	for _, t := range append(append([]string{}, platformDenylist...), blockedTopics...) {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		terms = append(terms, key)
	}
	return GuardrailSet{Denylist: terms, SafetyPreamble: preamble, DailyCap: dailyCap}
}

// BlockedError identifies the denylisted term that caused a refusal.
type BlockedError struct {
	Term string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("content blocked: prompt contains %q", e.Term)
}

func (e *BlockedError) Code() string { return "content_blocked" }

// Check scans every tenant- or customer-influenced text field against the
// denylist. It must run before any external call is made or any credit is
// consumed; a guardrail rejection is free.
func (g GuardrailSet) Check(fields ...string) error {
	haystack := strings.ToLower(strings.Join(fields, "\n"))
	for _, term := range g.Denylist {
		if strings.Contains(haystack, term) {
			return &BlockedError{Term: term}
		}
	}
	return nil
}

// EffectiveDailyCap combines the platform cap with a tenant override. The
// tenant value can only tighten the platform cap; non-positive values count
// as unset.
func EffectiveDailyCap(platformCap, tenantCap int) int {
	switch {
	case platformCap <= 0 && tenantCap <= 0:
		return 0
	case platformCap <= 0:
		return tenantCap
	case tenantCap <= 0:
		return platformCap
	case tenantCap < platformCap:
		return tenantCap
	default:
		return platformCap
	}
}
