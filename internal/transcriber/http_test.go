package transcriber

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPBackend_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speech-to-text" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "key123" {
			t.Errorf("expected api key header, got '%s'", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model_id"); got != "scribe_v1" {
			t.Errorf("expected model_id scribe_v1, got '%s'", got)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		file.Close()

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"hello world","confidence":0.87,"language_code":"en"}`))
	}))
	defer srv.Close()

	b := NewHTTPBackend(HTTPConfig{BaseURL: srv.URL, APIKey: "key123", ModelID: "scribe_v1", Name: "primary"})

	result, err := b.Transcribe(context.Background(), Request{SegmentID: "seg_1", Audio: []byte("RIFFxxxx")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "hello world" {
		t.Errorf("expected text 'hello world', got '%s'", result.Text)
	}
	if result.Confidence != 0.87 {
		t.Errorf("expected confidence 0.87, got %f", result.Confidence)
	}
	if result.SegmentID != "seg_1" {
		t.Errorf("expected segment id carried through, got '%s'", result.SegmentID)
	}
	if result.Backend != "primary" {
		t.Errorf("expected backend name 'primary', got '%s'", result.Backend)
	}
}

func TestHTTPBackend_DefaultConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"no confidence reported"}`))
	}))
	defer srv.Close()

	b := NewHTTPBackend(HTTPConfig{BaseURL: srv.URL})
	result, err := b.Transcribe(context.Background(), Request{SegmentID: "seg_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Confidence != 1.0 {
		t.Errorf("expected default confidence 1.0, got %f", result.Confidence)
	}
}

func TestHTTPBackend_FailureClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   FailureClass
	}{
		{"rate limited", http.StatusTooManyRequests, FailureTransient},
		{"server error", http.StatusInternalServerError, FailureTransient},
		{"bad gateway", http.StatusBadGateway, FailureTransient},
		{"bad request", http.StatusBadRequest, FailurePermanent},
		{"unauthorized", http.StatusUnauthorized, FailurePermanent},
		{"payload too large", http.StatusRequestEntityTooLarge, FailurePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			b := NewHTTPBackend(HTTPConfig{BaseURL: srv.URL})
			_, err := b.Transcribe(context.Background(), Request{SegmentID: "seg_1"})

			var backendErr *BackendError
			if !errors.As(err, &backendErr) {
				t.Fatalf("expected BackendError, got %v", err)
			}
			if backendErr.Class != tt.want {
				t.Errorf("expected class %s for status %d, got %s", tt.want, tt.status, backendErr.Class)
			}
			if backendErr.Status != tt.status {
				t.Errorf("expected status %d recorded, got %d", tt.status, backendErr.Status)
			}
		})
	}
}

func TestHTTPBackend_TimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	b := NewHTTPBackend(HTTPConfig{BaseURL: srv.URL, CallTimeout: 20 * time.Millisecond})
	_, err := b.Transcribe(context.Background(), Request{SegmentID: "seg_1"})

	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if backendErr.Class != FailureTransient {
		t.Errorf("expected timeout classified transient, got %s", backendErr.Class)
	}
}
