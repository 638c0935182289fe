package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/ngreen/internal/core/deployment"
	"github.com/artpar/ngreen/internal/shell/probe"
)

type statusOpts struct {
	*rootOpts
	check bool
}

func newStatus(parent *rootOpts) *statusOpts {
	return &statusOpts{rootOpts: parent}
}

func (opts *statusOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the live slot, the next slot and the version on every slot",
		Example: makeExample(
			"ngreen status",
			"ngreen status --check",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().BoolVar(&opts.check, "check", false, "probe every slot and show the observed status")
	return cmd
}

func (opts *statusOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	a, err := opts.open()
	if err != nil {
		return err
	}
	defer a.Close()

	state, err := a.state.Load(cmd.Context())
	if err != nil {
		return err
	}
	if err := state.CheckPool(a.pool); err != nil {
		return err
	}

	var p *probe.HTTPProbe
	if opts.check {
		p = probe.NewHTTPProbe(a.logger)
	}

	out := newTabwriter(cmd.OutOrStdout())
	fmt.Fprintf(out, "PROJECT:\t%s\n", a.cfg.ProjectName)
	if live, ok := state.LiveVersion(a.pool); ok {
		fmt.Fprintf(out, "LIVE:\t%s\n", live)
	} else {
		fmt.Fprintf(out, "LIVE:\t(none)\n")
	}
	fmt.Fprintln(out)

	header := "SLOT\tPORT\tPROJECT HANDLE\tVERSION\tROLE"
	if opts.check {
		header += "\tHEALTH"
	}
	fmt.Fprintln(out, header)
	for _, slot := range deployment.DescribeSlots(state, a.pool, a.cfg.ProjectName) {
		version := slot.Version
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(out, "%d\t%d\t%s\t%s\t%s", slot.Index, slot.Port, slot.Handle, version, role(slot))
		if p != nil {
			url := deployment.HealthURL(a.cfg.Health.Host, slot.Port, a.cfg.Health.Path)
			fmt.Fprintf(out, "\t%s", p.Check(cmd.Context(), url, a.cfg.Health.Timeout))
		}
		fmt.Fprintln(out)
	}
	return out.Flush()
}

func role(slot deployment.SlotView) string {
	switch {
	case slot.Live && slot.Next:
		return "live,next"
	case slot.Live:
		return "live"
	case slot.Next:
		return "next"
	default:
		return "standby"
	}
}
