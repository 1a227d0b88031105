package domain

// Quote is the customer-submitted estimate request the render core reads from
// and mirrors status back onto. The job store remains the source of truth;
// the render_* columns exist for UI convenience only.
type Quote struct {
	ID            string
	TenantID      string
	ServiceType   string
	Summary       string
	CustomerNotes string
	CustomerName  string
	CustomerEmail string
	PhotoURLs     []string

	RenderOptIn    bool
	RenderStatus   string
	RenderImageURL string
	RenderError    string
	RenderPrompt   string
}
