package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quotepix/internal/infra"
)

// Options controls how the generation client is configured.
type Options struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin facade over the hosted image-generation API. It issues
// exactly one attempt per call and owns no retry or backoff logic.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
	logger  *infra.Logger
}

func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("image: base url is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, errors.New("image: model is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	return &Client{baseURL: baseURL, model: model, http: httpClient, logger: opts.Logger}, nil
}

type generatePayload struct {
	Contents []payloadContent `json:"contents"`
}

type payloadContent struct {
	Parts []payloadPart `json:"parts"`
}

type payloadPart struct {
	Text       string             `json:"text,omitempty"`
	InlineData *payloadInlineData `json:"inlineData,omitempty"`
}

type payloadInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []responsePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type responsePart struct {
	InlineData *payloadInlineData `json:"inlineData"`
	FileData   *struct {
		MIMEType string `json:"mimeType"`
		FileURI  string `json:"fileUri"`
	} `json:"fileData"`
}

// Generate performs one generation call and returns the produced image. The
// first source photo, when reachable, is inlined so the model edits the real
// scene instead of inventing one.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return nil, errors.New("image: api key is required")
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("image: prompt is required")
	}
	if aspect := strings.TrimSpace(req.AspectRatio); aspect != "" {
		prompt += "\nCompose the result for a " + aspect + " aspect ratio."
	}

	parts := []payloadPart{{Text: prompt}}
	if len(req.SourceImageURLs) > 0 {
		data, mime, err := c.fetchSource(ctx, req.SourceImageURLs[0])
		if err != nil {
			if c.logger != nil {
				c.logger.Warn().Err(err).Str("request_id", req.RequestID).Msg("image: source photo fetch failed, generating without it")
			}
		} else {
			parts = append(parts, payloadPart{InlineData: &payloadInlineData{
				MIMEType: mime,
				Data:     base64.StdEncoding.EncodeToString(data),
			}})
		}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(c.model), url.QueryEscape(req.APIKey))

	body, err := json.Marshal(generatePayload{Contents: []payloadContent{{Parts: parts}}})
	if err != nil {
		return nil, fmt.Errorf("image: encode payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("image: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("image: call generation api: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("image: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image: generation api status %d: %s", resp.StatusCode, truncate(string(raw), 512))
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("image: decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("image: generation api error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}

	for _, candidate := range decoded.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("image: decode inline asset: %w", err)
				}
				return &Asset{Data: data, MIME: firstNonEmpty(part.InlineData.MIMEType, "image/png")}, nil
			}
			if part.FileData != nil && part.FileData.FileURI != "" {
				data, mime, err := c.download(ctx, part.FileData.FileURI, req.APIKey)
				if err != nil {
					return nil, err
				}
				return &Asset{Data: data, MIME: firstNonEmpty(part.FileData.MIMEType, mime, "image/png")}, nil
			}
		}
	}
	return nil, errors.New("image: response contained no image data")
}

func (c *Client) fetchSource(ctx context.Context, sourceURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: status %d", sourceURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, "", err
	}
	return data, firstNonEmpty(resp.Header.Get("Content-Type"), "image/jpeg"), nil
}

func (c *Client) download(ctx context.Context, uri, apiKey string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, "", fmt.Errorf("image: build download request: %w", err)
	}
	req.Header.Set("X-Goog-Api-Key", apiKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("image: download asset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image: download asset status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, "", fmt.Errorf("image: read asset: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Generator = (*Client)(nil)
