// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader loads a Converter at most once. Callers that arrive while a load
// is running wait for it and share its result. A failed load is not
// remembered, so the next call tries again.
type Loader struct {
	conv   Converter
	logger *slog.Logger
	group  singleflight.Group
	loaded atomic.Bool
}

// NewLoader wraps conv. A nil logger uses slog.Default().
func NewLoader(conv Converter, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{conv: conv, logger: logger}
}

// Loaded reports whether a load has completed successfully.
func (l *Loader) Loaded() bool {
	return l.loaded.Load()
}

// Ensure loads the converter if it is not loaded yet. The load itself is
// detached from ctx so one impatient caller cannot fail it for everyone
// else; ctx only bounds how long this caller waits.
func (l *Loader) Ensure(ctx context.Context) error {
	if l.loaded.Load() {
		return nil
	}

	ch := l.group.DoChan("load", func() (_ any, err error) {
		if l.loaded.Load() {
			return nil, nil
		}
		// DoChan re-panics on its own goroutine, where nothing can recover.
		defer func() {
			if v := recover(); v != nil {
				err = fmt.Errorf("panic while loading: %v", v)
				l.logger.Error("loading marker converter failed", "backend", l.conv.Name(), "error", err)
			}
		}()

		start := time.Now()
		l.logger.Info("loading marker converter", "backend", l.conv.Name())
		if err := l.conv.Load(context.WithoutCancel(ctx)); err != nil {
			l.logger.Error("loading marker converter failed", "backend", l.conv.Name(), "error", err)
			return nil, err
		}
		l.loaded.Store(true)
		l.logger.Info("marker converter loaded", "backend", l.conv.Name(),
			"elapsed", time.Since(start).Round(100*time.Millisecond))
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}
