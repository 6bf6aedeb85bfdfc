package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/questgrid/internal/ctxlog"
	"github.com/specialistvlad/questgrid/internal/suite"
)

func loadSuite(ctx context.Context, path string) (*suite.Suite, error) {
	logger := ctxlog.FromContext(ctx)
	if path == "" {
		logger.Debug("No suite path configured, using an empty suite.")
		return suite.Empty(), nil
	}
	logger.Debug("Loading suite...", "suite_path", path)
	s, err := suite.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load suite: %w", err)
	}
	logger.Info("Suite loaded successfully.", "files", len(s.Files))
	return s, nil
}
