// Package transcribe turns event audio into a transcript document.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/adas-events/internal/logging"
)

const DefaultBaseURL = "https://api.assemblyai.com"

var (
	ErrNotConfigured = errors.New("transcription is not configured")
	ErrTimeout       = errors.New("transcription timed out")
	ErrFailed        = errors.New("transcription failed")
)

// Source is either a local audio file or a URL the provider can fetch.
type Source struct {
	FilePath string
	URL      string
}

// AssemblyAI is a client for the AssemblyAI v2 REST API.
type AssemblyAI struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	logger       *zap.Logger
}

func NewAssemblyAI(apiKey, baseURL string, pollInterval time.Duration, logger *zap.Logger) *AssemblyAI {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	return &AssemblyAI{
		apiKey:       apiKey,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		client:       &http.Client{},
		pollInterval: pollInterval,
		logger:       logging.OrNop(logger).Named("assemblyai"),
	}
}

// Transcribe uploads or references the audio, starts a transcript and
// polls until it completes.  The caller bounds the whole flow with ctx.
func (a *AssemblyAI) Transcribe(ctx context.Context, src Source) (string, error) {
	if a.apiKey == "" {
		return "", ErrNotConfigured
	}
	audioURL := src.URL
	if src.FilePath != "" {
		u, err := a.upload(ctx, src.FilePath)
		if err != nil {
			return "", err
		}
		audioURL = u
	}
	if audioURL == "" {
		return "", fmt.Errorf("%w: no audio source", ErrFailed)
	}

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := a.call(ctx, http.MethodPost, "/v2/transcript", "application/json", jsonBody(map[string]string{"audio_url": audioURL}), &created); err != nil {
		return "", err
	}
	a.logger.Info("transcript queued", zap.String("transcript_id", created.ID))

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	for {
		var t struct {
			Status string `json:"status"`
			Text   string `json:"text"`
			Error  string `json:"error"`
		}
		if err := a.call(ctx, http.MethodGet, "/v2/transcript/"+created.ID, "", nil, &t); err != nil {
			return "", err
		}
		switch t.Status {
		case "completed":
			if strings.TrimSpace(t.Text) == "" {
				return "", fmt.Errorf("%w: empty transcript", ErrFailed)
			}
			return t.Text, nil
		case "error":
			return "", fmt.Errorf("%w: %s", ErrFailed, t.Error)
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (a *AssemblyAI) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := a.call(ctx, http.MethodPost, "/v2/upload", "application/octet-stream", f, &out); err != nil {
		return "", err
	}
	return out.UploadURL, nil
}

func (a *AssemblyAI) call(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", a.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return fmt.Errorf("%w: %s", ErrTimeout, path)
		}
		return fmt.Errorf("assemblyai %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		a.logger.Warn("request rejected", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: http %d: %s", ErrFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("assemblyai decode %s: %w", path, err)
	}
	return nil
}

func jsonBody(v any) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}
