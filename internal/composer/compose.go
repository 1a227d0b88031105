package composer

import "strings"

// DefaultBasePrompt is the platform-wide instruction used when neither the
// tenant nor an industry pack has customized the base layer.
const DefaultBasePrompt = "Produce a realistic \"after\" visualization of the customer's property once the requested service has been completed. Preserve the scene geometry, camera angle and surrounding context of the original photo."

// Layers is the full, immutable input to Compose. Composition is a pure
// function of this struct so the same inputs always yield the same
// instruction text.
type Layers struct {
	// Base prompt layering. TenantBase empty means the tenant is still on
	// the platform default, which is the only case where IndustryPack may
	// apply.
	PlatformBase string
	IndustryPack string
	TenantBase   string

	// Tenant style preferences.
	StyleKey   string // photoreal | clean | custom
	StyleNotes string // appended verbatim

	// Quote context.
	ServiceType   string
	Summary       string
	CustomerNotes string

	SafetyPreamble string

	// Pricing policy wrapper.
	PricingEnabled bool
	PricingMode    string // range | exact
}

// Applied records which optional layers actually fired, so the layering
// decision is inspectable without re-deriving it from the output text.
type Applied struct {
	TenantBase   bool
	IndustryPack bool
	StylePreset  bool
	Pricing      string // assessment | range | exact
}

// Composed is the final instruction plus the layering trace.
type Composed struct {
	Text    string
	Applied Applied
}

var stylePresets = map[string]string{
	"photoreal": "Photorealistic finish: natural lighting, true-to-life materials, colors and textures.",
	"clean":     "Clean presentation: tidy composition, uncluttered surroundings, soft even lighting.",
}

// Compose merges the platform preamble, base-prompt layering, tenant style
// and the pricing wrapper into one instruction string.
func Compose(l Layers) Composed {
	var applied Applied

	base := strings.TrimSpace(l.PlatformBase)
	if base == "" {
		base = DefaultBasePrompt
	}
	switch {
	case strings.TrimSpace(l.TenantBase) != "":
		// Tenant customization always wins over industry defaults.
		base = strings.TrimSpace(l.TenantBase)
		applied.TenantBase = true
	case strings.TrimSpace(l.IndustryPack) != "":
		base = strings.TrimSpace(l.IndustryPack)
		applied.IndustryPack = true
	}

	style := StyleText(l.StyleKey, l.StyleNotes)
	if _, ok := stylePresets[strings.ToLower(strings.TrimSpace(l.StyleKey))]; ok {
		applied.StylePreset = true
	}

	service := ""
	if s := strings.TrimSpace(l.ServiceType); s != "" {
		service = "Service requested: " + s + "."
	}
	summary := ""
	if s := strings.TrimSpace(l.Summary); s != "" {
		summary = "Job summary: " + s
	}
	notes := ""
	if n := strings.TrimSpace(l.CustomerNotes); n != "" {
		notes = "Customer notes: " + n
	}

	pricing, mode := pricingWrapper(l.PricingEnabled, l.PricingMode)
	applied.Pricing = mode

	text := renderTemplate(map[string]string{
		"preamble": strings.TrimSpace(l.SafetyPreamble),
		"base":     base,
		"style":    style,
		"service":  service,
		"summary":  summary,
		"notes":    notes,
		"pricing":  pricing,
	})

	return Composed{Text: text, Applied: applied}
}

// StyleText resolves the tenant style selection to the text that reaches the
// final prompt: the preset description plus the tenant's notes verbatim.
// Guardrail checks scan this same text, so the two can never diverge.
func StyleText(key, notes string) string {
	var parts []string
	if preset, ok := stylePresets[strings.ToLower(strings.TrimSpace(key))]; ok {
		parts = append(parts, preset)
	}
	if n := strings.TrimSpace(notes); n != "" {
		parts = append(parts, n)
	}
	return strings.Join(parts, " ")
}

func pricingWrapper(enabled bool, mode string) (string, string) {
	if !enabled {
		return "This is a visual assessment only. Do not show, imply, or invent prices anywhere in the result.", "assessment"
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "range":
		return "Any pricing language must stay within the estimate range provided separately; never present an exact figure.", "range"
	default:
		return "Pricing is determined by the written estimate; the visualization must not contradict or restate it.", "exact"
	}
}

// promptTemplate names every placeholder slot in composition order. A slot
// with empty content vanishes entirely from the output, and runs of blank
// lines collapse to one, so the final text is stable and diffable.
const promptTemplate = `{{preamble}}

{{base}}

{{style}}

{{service}}
{{summary}}
{{notes}}

{{pricing}}`

func renderTemplate(vars map[string]string) string {
	out := promptTemplate
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{{"+name+"}}", value)
	}
	return collapseBlankLines(out)
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var kept []string
	blank := true // swallow leading blanks
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			if !blank {
				kept = append(kept, "")
			}
			blank = true
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t"))
		blank = false
	}
	for len(kept) > 0 && kept[len(kept)-1] == "" {
		kept = kept[:len(kept)-1]
	}
	return strings.Join(kept, "\n")
}
