// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/marker-api/internal/httputil"
	"github.com/pdiddy/marker-api/pkg/types"
)

const (
	uploadPath       = "/marker/upload"
	defaultTimeout   = 10 * time.Minute
	defaultUserAgent = "marker-api/0.1"
	// maxErrorBody bounds how much of a failed response is echoed in errors.
	maxErrorBody = 512
)

// ServerConverter posts PDFs to a running marker_server and reads the JSON
// it returns.
type ServerConverter struct {
	baseURL    string
	client     *http.Client
	userAgent  string
	apiKey     string
	maxRetries int
}

// markerResponse is the body marker_server returns from /marker/upload.
type markerResponse struct {
	Format   string `json:"format"`
	Output   string `json:"output"`
	Success  *bool  `json:"success"`
	Error    string `json:"error"`
	Metadata struct {
		PageStats []json.RawMessage `json:"page_stats"`
	} `json:"metadata"`
}

// NewServerConverter creates a converter for the marker server at
// cfg.ServerURL. A nil client gets one with cfg.Timeout (default 10m).
func NewServerConverter(cfg types.ConverterConfig, client *http.Client) (*ServerConverter, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server backend requires a server URL")
	}
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid marker server URL %q", cfg.ServerURL)
	}

	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &ServerConverter{
		baseURL:    strings.TrimRight(cfg.ServerURL, "/"),
		client:     client,
		userAgent:  ua,
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Name returns "server".
func (s *ServerConverter) Name() string { return string(types.BackendServer) }

// Load probes the server root. A marker server that is still loading its
// models answers 503, which is retried.
func (s *ServerConverter) Load(ctx context.Context) error {
	req, err := s.newRequest(ctx, http.MethodGet, s.baseURL+"/", nil, "")
	if err != nil {
		return err
	}
	resp, err := httputil.DoWithRetry(ctx, s.client, req, s.maxRetries)
	if err != nil {
		return fmt.Errorf("reaching marker server %s: %w", s.baseURL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("marker server %s returned status %d", s.baseURL, resp.StatusCode)
	}
	return nil
}

// Convert uploads the PDF and returns the Markdown the server produced.
func (s *ServerConverter) Convert(ctx context.Context, pdfPath string) (Document, error) {
	body, contentType, err := multipartPDF(pdfPath)
	if err != nil {
		return Document{}, err
	}

	req, err := s.newRequest(ctx, http.MethodPost, s.baseURL+uploadPath, body, contentType)
	if err != nil {
		return Document{}, err
	}

	resp, err := httputil.DoWithRetry(ctx, s.client, req, s.maxRetries)
	if err != nil {
		return Document{}, fmt.Errorf("converting %s with marker server: %w", filepath.Base(pdfPath), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Document{}, fmt.Errorf("reading marker server response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("marker server returned status %d: %s",
			resp.StatusCode, truncate(strings.TrimSpace(string(data)), maxErrorBody))
	}

	var mr markerResponse
	if err := json.Unmarshal(data, &mr); err != nil {
		return Document{}, fmt.Errorf("decoding marker server response: %w", err)
	}
	if mr.Success != nil && !*mr.Success {
		if mr.Error == "" {
			mr.Error = "unknown error"
		}
		return Document{}, fmt.Errorf("marker server failed on %s: %s", filepath.Base(pdfPath), mr.Error)
	}
	if strings.TrimSpace(mr.Output) == "" {
		return Document{}, ErrEmptyOutput
	}

	return Document{Markdown: mr.Output, Pages: len(mr.Metadata.PageStats)}, nil
}

func (s *ServerConverter) newRequest(ctx context.Context, method, target string, body []byte, contentType string) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	return req, nil
}

// multipartPDF buffers the upload form in memory so it can be replayed on
// retry.
func multipartPDF(pdfPath string) ([]byte, string, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, "", fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("output_format", "markdown"); err != nil {
		return nil, "", err
	}
	part, err := mw.CreateFormFile("file", filepath.Base(pdfPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("reading PDF %s: %w", pdfPath, err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
