package main

import (
	"github.com/spf13/cobra"

	"github.com/artpar/ngreen/internal/core/deployment"
)

type rollbackOpts struct {
	*rootOpts
	targetVersion string
}

func newRollback(parent *rootOpts) *rollbackOpts {
	return &rollbackOpts{rootOpts: parent}
}

func (opts *rollbackOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Make an already deployed slot live again",
		Long: "Moves the live pointer to the previously live slot, or to the slot still\n" +
			"running --rollback-target-version. The target must pass the health probe;\n" +
			"no container is started or stopped.",
		Example: makeExample(
			"ngreen rollback",
			"ngreen rollback --rollback-target-version v1",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVar(&opts.targetVersion, "rollback-target-version", "", "version to roll back to; empty means the previously live slot")
	return cmd
}

func (opts *rollbackOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	return runRollback(cmd, opts.rootOpts, opts.targetVersion)
}

// runRollback is shared by "rollback" and "--action rollback".
func runRollback(cmd *cobra.Command, opts *rootOpts, targetVersion string) error {
	a, err := opts.open()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := (deployment.RollbackRequest{
		ProjectName:   a.cfg.ProjectName,
		Pool:          a.pool,
		TargetVersion: targetVersion,
	}).Validate(); err != nil {
		return err
	}

	release, err := a.lock()
	if err != nil {
		return err
	}
	defer release()

	result, err := a.orchestrator(nil).Rollback(cmd.Context(), targetVersion)
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), result)
	return nil
}
