package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/approvals/internal/application/service"
	"github.com/garyjia/approvals/internal/config"
	"github.com/garyjia/approvals/internal/container"
	"github.com/garyjia/approvals/pkg/utils"
)

// StatisticsReader is the part of the statistics service the CLI reads
type StatisticsReader interface {
	GetStatistics(ctx context.Context, subjectType string) (*service.Statistics, error)
	GetAllStatistics(ctx context.Context) (map[string]*service.Statistics, error)
	SubjectTypes() []string
}

// opener builds a StatisticsReader from a config file. The returned func
// releases it.
type opener func(ctx context.Context, configPath string, verbose bool) (StatisticsReader, func() error, error)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd(open opener) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "approvalctl",
		Short:         "Inspect approval workflow state",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "configs/config.yaml", "path to the configuration file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log initialization details to stderr")

	root.AddCommand(newStatusCmd(opts, open))
	return root
}

// openContainer starts the full container against the configured database
func openContainer(ctx context.Context, configPath string, verbose bool) (StatisticsReader, func() error, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewCLILogger(verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := c.Start(ctx); err != nil {
		return nil, nil, err
	}

	closer := func() error {
		defer func() { _ = logger.Sync() }()
		return c.Close()
	}
	return c.Services().Statistics, closer, nil
}
