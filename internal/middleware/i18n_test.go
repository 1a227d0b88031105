package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func localeProbe(t *testing.T, lookup CountryLookup, configure func(r *http.Request)) string {
	t.Helper()
	var got string
	handler := I18N("en", lookup)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = LocaleFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:1234"
	if configure != nil {
		configure(req)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestI18NLocaleDetection(t *testing.T) {
	spainLookup := CountryLookup(func(string) (string, error) { return "ES", nil })
	usLookup := CountryLookup(func(string) (string, error) { return "US", nil })
	failingLookup := CountryLookup(func(string) (string, error) { return "", errors.New("db closed") })

	tests := []struct {
		name      string
		lookup    CountryLookup
		configure func(r *http.Request)
		want      string
	}{
		{"default without signals", nil, nil, "en"},
		{"x-locale header wins", spainLookup, func(r *http.Request) {
			r.Header.Set("X-Locale", "EN")
			r.Header.Set("Accept-Language", "es")
		}, "en"},
		{"x-locale with region", nil, func(r *http.Request) {
			r.Header.Set("X-Locale", "es-MX")
		}, "es"},
		{"unknown x-locale falls back to english", nil, func(r *http.Request) {
			r.Header.Set("X-Locale", "fr")
		}, "en"},
		{"accept-language spanish", nil, func(r *http.Request) {
			r.Header.Set("Accept-Language", "es-AR,es;q=0.9,en;q=0.5")
		}, "es"},
		{"accept-language prefers best match", nil, func(r *http.Request) {
			r.Header.Set("Accept-Language", "en-GB,en;q=0.9")
		}, "en"},
		{"geoip spanish-speaking country", spainLookup, nil, "es"},
		{"geoip other country", usLookup, nil, "en"},
		{"geoip failure falls back", failingLookup, nil, "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := localeProbe(t, tt.lookup, tt.configure); got != tt.want {
				t.Fatalf("locale = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocaleFromContextDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := LocaleFromContext(req.Context()); got != "en" {
		t.Fatalf("locale = %q, want en", got)
	}
}
