package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/ironsheep/grounding-detect/internal/config"
	"github.com/ironsheep/grounding-detect/internal/server"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve detection as an MCP tool over stdio",
		Long: "Run a Model Context Protocol server on stdin/stdout exposing the detect_objects\n" +
			"and read_results tools. The flags below are the defaults for each tool call.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, cfg, opts)
		},
	}

	f := cmd.Flags()
	addModelFlags(f, opts)
	addBackendFlags(f, &opts.backendOptions, cfg)
	return cmd
}

func serve(cmd *cobra.Command, cfg *config.Config, opts *options) error {
	runner, log, err := newRunner(cmd, cfg, &opts.backendOptions, nil)
	if err != nil {
		return err
	}

	log.WithField("version", Version).Info("serving MCP on stdio")
	srv := server.New(&server.PipelineDetector{Runner: *runner}, opts.request(), Version, log)
	err = srv.Run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	if errors.Is(err, context.Canceled) {
		log.Info("shutting down")
		return nil
	}
	return err
}
