// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/marker-api/pkg/types"
)

// Recorder persists the outcome of each upload conversion.
type Recorder interface {
	Record(ctx context.Context, rec types.ConversionRecord) error
}

// Upload is one PDF received over HTTP.
type Upload struct {
	Filename string
	Body     io.Reader
}

// Service stages uploads in temp files, runs them through a Converter, and
// builds the response body. It is safe for concurrent use.
type Service struct {
	conv       Converter
	loader     *Loader
	sem        *semaphore.Weighted
	tempDir    string
	recorder   Recorder
	logger     *slog.Logger
	countPages func(path string) (int, error)
}

// Option configures a Service.
type Option func(*Service)

// WithWorkers sets how many conversions may run at once. Values below 1
// are treated as 1.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n < 1 {
			n = 1
		}
		s.sem = semaphore.NewWeighted(int64(n))
	}
}

// WithTempDir stages uploads under dir instead of the OS temp dir.
func WithTempDir(dir string) Option {
	return func(s *Service) { s.tempDir = dir }
}

// WithRecorder stores every conversion outcome through r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithLogger sets the logger used by the service and its loader.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService builds a Service around conv. By default one conversion runs
// at a time.
func NewService(conv Converter, opts ...Option) *Service {
	s := &Service{
		conv:       conv,
		sem:        semaphore.NewWeighted(1),
		logger:     slog.Default(),
		countPages: CountPages,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.loader = NewLoader(conv, s.logger)
	return s
}

// Loader exposes the load gate so callers can preload or report state.
func (s *Service) Loader() *Loader { return s.loader }

// ConvertUpload writes the upload to a temp file, converts it, and returns
// the response body. The temp file is removed on every path, including a
// panic inside the converter.
func (s *Service) ConvertUpload(ctx context.Context, up Upload) (types.ConversionResult, error) {
	tmp, err := os.CreateTemp(s.tempDir, "upload-*.pdf")
	if err != nil {
		return types.ConversionResult{}, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("removing temp file", "path", tmpPath, "error", err)
		}
	}()

	h := sha256.New()
	_, copyErr := io.Copy(io.MultiWriter(tmp, h), up.Body)
	closeErr := tmp.Close()
	if copyErr != nil {
		return types.ConversionResult{}, fmt.Errorf("saving upload %s: %w", up.Filename, copyErr)
	}
	if closeErr != nil {
		return types.ConversionResult{}, fmt.Errorf("saving upload %s: %w", up.Filename, closeErr)
	}

	rec := types.ConversionRecord{
		ID:       uuid.NewString(),
		Filename: up.Filename,
		SHA256:   hex.EncodeToString(h.Sum(nil)),
		Backend:  s.conv.Name(),
	}
	log := s.logger.With("conversion_id", rec.ID, "filename", up.Filename)

	rec.CreatedAt = time.Now().UTC()
	result, elapsed, err := s.convert(ctx, tmpPath)
	result.ProcessingTimeMS = elapsed.Milliseconds()

	rec.ProcessingTimeMS = result.ProcessingTimeMS
	if err != nil {
		rec.Error = err.Error()
		log.Error("conversion failed", "error", err, "elapsed", elapsed)
	} else {
		rec.Success = true
		rec.PagesCount = result.PagesCount
		rec.StructureStats = result.StructureStats
		log.Info("conversion finished", "pages", derefOr(result.PagesCount, -1),
			"headings", result.StructureStats.Total(), "elapsed", elapsed)
	}
	s.record(ctx, rec)

	if err != nil {
		return types.ConversionResult{}, err
	}
	return result, nil
}

// convert waits for a worker slot, then loads and converts. The returned
// duration starts once the slot is held: queueing behind other uploads is
// not processing time, but a lazy load is, as the first request pays for it.
func (s *Service) convert(ctx context.Context, pdfPath string) (types.ConversionResult, time.Duration, error) {
	doc, elapsed, err := s.runSlot(ctx, pdfPath)
	if err != nil {
		return types.ConversionResult{}, elapsed, err
	}

	stats := Summarize(doc.Markdown)
	result := types.ConversionResult{
		Success:        true,
		Markdown:       doc.Markdown,
		Source:         types.SourceMarker,
		HasStructure:   HasStructure(stats),
		StructureStats: stats,
	}

	pages := doc.Pages
	if pages <= 0 && s.countPages != nil {
		n, err := s.countPages(pdfPath)
		if err != nil {
			s.logger.Debug("page count unavailable", "error", err)
		}
		pages = n
	}
	if pages > 0 {
		result.PagesCount = &pages
	}
	return result, elapsed, nil
}

// runSlot holds a worker slot for the load and the Convert call, timing
// both.
func (s *Service) runSlot(ctx context.Context, pdfPath string) (Document, time.Duration, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return Document{}, 0, fmt.Errorf("waiting for a conversion slot: %w", err)
	}
	defer s.sem.Release(1)

	start := time.Now()
	if err := s.loader.Ensure(ctx); err != nil {
		return Document{}, time.Since(start), fmt.Errorf("loading marker: %w", err)
	}
	doc, err := s.conv.Convert(ctx, pdfPath)
	return doc, time.Since(start), err
}

func (s *Service) record(ctx context.Context, rec types.ConversionRecord) {
	if s.recorder == nil {
		return
	}
	// The client may already be gone; the record should still land.
	if err := s.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("recording conversion", "conversion_id", rec.ID, "error", err)
	}
}

func derefOr(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return *p
}
