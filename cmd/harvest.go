package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/stepstone-harvester/internal/app"
	"github.com/JakeFAU/stepstone-harvester/internal/config"
	"github.com/JakeFAU/stepstone-harvester/internal/listing"
)

// harvester is the part of *app.App the command drives.
type harvester interface {
	Run(ctx context.Context) (listing.Summary, error)
	Close()
}

// newHarvester is swapped in tests.
var newHarvester = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (harvester, error) {
	return app.New(ctx, cfg, logger)
}

func newHarvestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "harvest",
		Short: "Run one harvest over the listing index",
		Long: `Walks the listing index page by page. Each page's job links are extracted
concurrently, one remote browser session per in-flight job, and every
completed record is appended to the configured sinks. The walk stops at the
last index page, at the first page without job links, or when an index page
cannot be fetched.`,
		Args: cobra.NoArgs,
		RunE: runHarvest,
	}
}

func runHarvest(cmd *cobra.Command, _ []string) error {
	rt, err := envFrom(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		// Sync errors on stderr/stdout are expected and not actionable.
		_ = rt.logger.Sync()
	}()

	h, err := newHarvester(cmd.Context(), rt.cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("initialize harvester: %w", err)
	}
	defer h.Close()

	summary, err := h.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("harvest after %d page(s): %w", summary.Pages, err)
	}
	cmd.Printf("harvested %d of %d job links from %d page(s)\n",
		summary.Batches.Succeeded, summary.Links, summary.Pages)
	return nil
}
