package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type versionOpts struct {
	*rootOpts
}

func newVersion(parent *rootOpts) *versionOpts {
	return &versionOpts{rootOpts: parent}
}

func (opts *versionOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return errorWantedNoArgs
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ngreen %s (built %s)\n", Version, BuildTime)
			return nil
		},
	}
}
