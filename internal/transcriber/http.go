package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const defaultCallTimeout = 60 * time.Second

type HTTPConfig struct {
	BaseURL     string
	APIKey      string
	ModelID     string
	Name        string
	CallTimeout time.Duration
}

// HTTPBackend sends segment audio to a speech-to-text HTTP API as a
// multipart upload and reads back the transcript JSON.
type HTTPBackend struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTPBackend(cfg HTTPConfig) *HTTPBackend {
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	if cfg.Name == "" {
		cfg.Name = "stt-http"
	}
	return &HTTPBackend{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (b *HTTPBackend) Name() string { return b.cfg.Name }

type transcriptResponse struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
	Language   string   `json:"language_code"`
}

func (b *HTTPBackend) Transcribe(ctx context.Context, req Request) (*Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	model := req.ModelID
	if model == "" {
		model = b.cfg.ModelID
	}
	if err := mw.WriteField("model_id", model); err != nil {
		return nil, &BackendError{Class: FailurePermanent, Err: err}
	}
	if req.Language != "" {
		if err := mw.WriteField("language", req.Language); err != nil {
			return nil, &BackendError{Class: FailurePermanent, Err: err}
		}
	}

	fw, err := mw.CreateFormFile("file", req.SegmentID+".wav")
	if err != nil {
		return nil, &BackendError{Class: FailurePermanent, Err: err}
	}
	if _, err := fw.Write(req.Audio); err != nil {
		return nil, &BackendError{Class: FailurePermanent, Err: err}
	}
	if err := mw.Close(); err != nil {
		return nil, &BackendError{Class: FailurePermanent, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/speech-to-text", &body)
	if err != nil {
		return nil, &BackendError{Class: FailurePermanent, Err: err}
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	if b.cfg.APIKey != "" {
		httpReq.Header.Set("xi-api-key", b.cfg.APIKey)
	}

	started := time.Now()
	resp, err := b.client.Do(httpReq)
	if err != nil {
		// Network failures and deadline expiry are retryable.
		return nil, &BackendError{Class: FailureTransient, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("http %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
		return nil, &BackendError{Class: classifyStatus(resp.StatusCode), Status: resp.StatusCode, Err: err}
	}

	var tr transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, &BackendError{Class: FailureTransient, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	confidence := 1.0
	if tr.Confidence != nil {
		confidence = *tr.Confidence
	}

	return &Result{
		SegmentID:        req.SegmentID,
		Text:             tr.Text,
		Confidence:       confidence,
		BackendLatencyMs: time.Since(started).Milliseconds(),
		Backend:          b.cfg.Name,
	}, nil
}

func classifyStatus(status int) FailureClass {
	switch {
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return FailureTransient
	case status >= 500:
		return FailureTransient
	default:
		return FailurePermanent
	}
}
