//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Serve builds the binary and runs the HTTP service with the environment
// passed through (PORT, PRELOAD_MODELS, MARKER_API_*).
func Serve() error {
	mg.Deps(Init, Build)
	return sh.RunWithV(nil, filepath.Join(binDir, binName), "serve")
}

// Preload is Serve with PRELOAD_MODELS=true, so Marker is loaded before the
// listener starts.
func Preload() error {
	mg.Deps(Init, Build)
	return sh.RunWithV(map[string]string{"PRELOAD_MODELS": "true"}, filepath.Join(binDir, binName), "serve")
}
