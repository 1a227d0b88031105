package image

import "context"

// GenerateRequest describes one generation attempt. The API key travels with
// the request because the funding credential is resolved per job, not per
// client.
type GenerateRequest struct {
	Prompt          string
	AspectRatio     string
	SourceImageURLs []string
	APIKey          string
	RequestID       string
}

// Asset is the produced image.
type Asset struct {
	Data []byte
	MIME string
}

// Generator is the narrow contract the worker depends on. A single attempt
// per job; retries happen at the enqueue level, never inside the call.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
}
