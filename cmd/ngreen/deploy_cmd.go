package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/ngreen/internal/core/deployment"
	"github.com/artpar/ngreen/internal/shell/orchestrator"
)

type deployOpts struct {
	*rootOpts
	version        string
	expectedStatus string
}

func newDeploy(parent *rootOpts) *deployOpts {
	return &deployOpts{rootOpts: parent}
}

func (opts *deployOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a version into the next slot and make it live",
		Example: makeExample(
			"ngreen deploy --project-name shop --port-pool 5000,5001,5002 --version v2 --expected-status 200",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVar(&opts.version, "version", "", "version to deploy")
	cmd.Flags().StringVar(&opts.expectedStatus, "expected-status", "", "HTTP status the new slot must answer, e.g. 200")
	return cmd
}

func (opts *deployOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	return runDeploy(cmd, opts.rootOpts, opts.version, opts.expectedStatus)
}

// runDeploy is shared by "deploy" and "--action deploy".
func runDeploy(cmd *cobra.Command, opts *rootOpts, version, expectedStatus string) error {
	a, err := opts.open()
	if err != nil {
		return err
	}
	defer a.Close()

	req := deployment.DeployRequest{
		ProjectName:    a.cfg.ProjectName,
		Pool:           a.pool,
		Version:        version,
		ExpectedStatus: expectedStatus,
	}
	if err := req.Validate(); err != nil {
		return err
	}

	release, err := a.lock()
	if err != nil {
		return err
	}
	defer release()

	controller, err := a.controller(cmd.Context())
	if err != nil {
		return err
	}
	result, err := a.orchestrator(controller).Deploy(cmd.Context(), version, expectedStatus)
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), result)
	return nil
}

// printResult writes the one line summary of a committed operation.
func printResult(w io.Writer, r *orchestrator.Result) {
	previous := "none"
	if r.PreviousLivePort != nil {
		previous = fmt.Sprint(*r.PreviousLivePort)
	}
	fmt.Fprintf(w, "%s %s: port %d is live (previous live port: %s, health %s, took %s)\n",
		r.Action, r.Version, r.Port, previous, r.Observed, r.Duration.Round(time.Millisecond))
}
