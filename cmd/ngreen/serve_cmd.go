package main

import (
	"github.com/spf13/cobra"

	"github.com/artpar/ngreen/internal/shell/api"
	"github.com/artpar/ngreen/internal/shell/probe"
)

type serveOpts struct {
	*rootOpts
}

func newServe(parent *rootOpts) *serveOpts {
	return &serveOpts{rootOpts: parent}
}

func (opts *serveOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the deployment state over HTTP (read-only)",
		Long: "Routes:\n" +
			"  GET /healthz\n" +
			"  GET /api/v1/state\n" +
			"  GET /api/v1/slots\n" +
			"  GET /api/v1/slots/{port}/health\n" +
			"  GET /api/v1/operations?limit=N&offset=M",
		RunE: opts.RunE,
	}
	cmd.Flags().Int("listen-port", 0, "port the status API listens on")
	return cmd
}

func (opts *serveOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	a, err := opts.open()
	if err != nil {
		return err
	}
	defer a.Close()

	handler := api.NewHandler(a.state, a.journal, probe.NewHTTPProbe(a.logger), api.Config{
		ProjectName:  a.cfg.ProjectName,
		Pool:         a.pool,
		HealthHost:   a.cfg.Health.Host,
		HealthPath:   a.cfg.Health.Path,
		ProbeTimeout: a.cfg.Health.Timeout,
	}, a.logger)

	return NewServer(a.cfg.Server, handler.Routes(), a.logger).Start(cmd.Context())
}
