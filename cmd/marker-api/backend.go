package main

import (
	"context"
	"fmt"

	"github.com/pdiddy/marker-api/internal/container"
	"github.com/pdiddy/marker-api/internal/convert"
	"github.com/pdiddy/marker-api/internal/secrets"
	"github.com/pdiddy/marker-api/pkg/types"
)

// newConverter builds the Marker backend selected in c.
func newConverter(ctx context.Context, c types.Config) (convert.Converter, error) {
	switch c.Converter.Backend {
	case types.BackendContainer:
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			return nil, err
		}
		return convert.NewContainerConverter(rt, c.Converter, c.Server.TempDir), nil
	case types.BackendCommand:
		return convert.NewCommandConverter(c.Converter, c.Server.TempDir), nil
	case types.BackendServer:
		cc := c.Converter
		cc.APIKey = loadedSecrets.Default(secrets.MarkerAPIKey, cc.APIKey)
		return convert.NewServerConverter(cc, nil)
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Converter.Backend)
	}
}
