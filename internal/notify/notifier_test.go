package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookNotifierDeliversEvent(t *testing.T) {
	var body []byte
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, server.Client())
	err := notifier.RenderCompleted(context.Background(), RenderCompleted{
		TenantID: "t-1",
		QuoteID:  "q-1",
		JobID:    "j-1",
		ImageURL: "https://cdn.example.com/after.png",
	})
	if err != nil {
		t.Fatalf("RenderCompleted: %v", err)
	}
	if contentType != "application/json" {
		t.Fatalf("content type = %q", contentType)
	}

	var payload struct {
		Event string          `json:"event"`
		Data  RenderCompleted `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Event != "render.completed" {
		t.Fatalf("event = %q", payload.Event)
	}
	if payload.Data.JobID != "j-1" || payload.Data.ImageURL != "https://cdn.example.com/after.png" {
		t.Fatalf("unexpected data: %+v", payload.Data)
	}
}

func TestWebhookNotifierRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, server.Client())
	if err := notifier.RenderCompleted(context.Background(), RenderCompleted{}); err == nil {
		t.Fatal("expected an error for a non-2xx response")
	}
}

func TestWebhookNotifierRequiresEndpoint(t *testing.T) {
	notifier := NewWebhookNotifier("  ", nil)
	if err := notifier.RenderCompleted(context.Background(), RenderCompleted{}); err == nil {
		t.Fatal("expected an error without an endpoint")
	}
}
