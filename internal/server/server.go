// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the conversion service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/pdiddy/marker-api/internal/convert"
	"github.com/pdiddy/marker-api/internal/history"
	"github.com/pdiddy/marker-api/pkg/types"
)

const (
	// DefaultMaxUploadBytes bounds the request body of POST /convert.
	DefaultMaxUploadBytes int64 = 100 << 20

	fileField = "file"
	usageText = "send a PDF in the 'file' field (multipart/form-data)"
)

// Lister reads conversion history.
type Lister interface {
	List(ctx context.Context, limit int) ([]types.ConversionRecord, error)
}

// Server routes HTTP requests to the conversion service.
type Server struct {
	svc       *convert.Service
	history   Lister
	maxUpload int64
	version   string
	logger    *slog.Logger
}

// Config carries the optional parts of a Server.
type Config struct {
	// History backs GET /conversions. Nil answers 503.
	History Lister
	// MaxUploadBytes defaults to DefaultMaxUploadBytes.
	MaxUploadBytes int64
	Version        string
	Logger         *slog.Logger
}

// New creates a Server around svc.
func New(svc *convert.Service, cfg Config) *Server {
	s := &Server{
		svc:       svc,
		history:   cfg.History,
		maxUpload: cfg.MaxUploadBytes,
		version:   cfg.Version,
		logger:    cfg.Logger,
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUploadBytes
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.version == "" {
		s.version = "dev"
	}
	return s
}

// Handler returns the routed handler wrapped in the standard middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /convert", s.handleConvert)
	mux.HandleFunc("GET /conversions", s.handleConversions)

	return requestID(logRequests(s.logger, recoverPanics(s.logger, mux)))
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":     "Marker PDF to Markdown API",
		"version":     s.version,
		"description": "Scanned PDF to structured Markdown via Marker",
		"endpoints": map[string]string{
			"/convert":     "POST - convert a PDF to structured Markdown",
			"/health":      "GET - service status",
			"/conversions": "GET - recent conversion history",
		},
		"note": "the first call can be slow while Marker loads its models",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"engine":        types.SourceMarker,
		"models_loaded": s.svc.Loader().Loaded(),
	})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	mr, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "no file provided", Usage: usageText})
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "no file provided", Usage: usageText})
			return
		}
		if err != nil {
			s.writeBodyError(w, err)
			return
		}

		if part.FormName() != fileField || !isFilePart(part.Header.Get("Content-Disposition")) {
			part.Close()
			continue
		}
		filename := part.FileName()
		if filename == "" {
			part.Close()
			writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "empty filename"})
			return
		}

		result, err := s.svc.ConvertUpload(r.Context(), convert.Upload{Filename: filename, Body: part})
		part.Close()
		if err != nil {
			s.writeBodyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}
}

// writeBodyError maps an oversized body to 413 and everything else to 500.
func (s *Server) writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, types.ErrorResponse{
			Error: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, types.ErrorResponse{Error: err.Error()})
}

func (s *Server) handleConversions(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, types.ErrorResponse{Error: history.ErrDisabled.Error()})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	records, err := s.history.List(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, types.ErrorResponse{Error: err.Error()})
		return
	}
	if records == nil {
		records = []types.ConversionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversions": records})
}

// isFilePart reports whether a Content-Disposition header carries a
// filename parameter, even an empty one. Plain form fields have none.
func isFilePart(disposition string) bool {
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return false
	}
	_, ok := params["filename"]
	return ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts down
// gracefully, giving in-flight conversions up to shutdownTimeout.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, shutdownTimeout time.Duration, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %s: %w", addr, err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
