package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/ngreen/internal/shell/store"
)

type historyOpts struct {
	*rootOpts
	limit  int
	all    bool
	failed bool
}

func newHistory(parent *rootOpts) *historyOpts {
	return &historyOpts{rootOpts: parent}
}

func (opts *historyOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past deploy and rollback operations",
		Long: "Lists journal entries, newest first. Needs a journal: the sqlite state\n" +
			"backend or --journal-dsn.",
		Example: makeExample(
			"ngreen history --limit 10",
			"ngreen history --failed",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "number of operations to show")
	cmd.Flags().BoolVar(&opts.all, "all-projects", false, "show operations of every project in the journal")
	cmd.Flags().BoolVar(&opts.failed, "failed", false, "only show operations that ended without committing")
	return cmd
}

func (opts *historyOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	a, err := opts.open()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.journal == nil {
		return fmt.Errorf("%w: no journal configured (use the sqlite state backend or --journal-dsn)", errInvalidConfig)
	}

	project := a.cfg.ProjectName
	if opts.all {
		project = ""
	}
	ops, err := a.journal.ListOperations(cmd.Context(), project, store.ListOptions{Limit: opts.limit}.Normalize())
	if err != nil {
		return err
	}

	out := newTabwriter(cmd.OutOrStdout())
	fmt.Fprintln(out, "STARTED\tPROJECT\tACTION\tVERSION\tPORT\tPHASE\tHEALTH\tERROR")
	for _, op := range ops {
		if opts.failed && (op.Succeeded() || !op.Phase.Terminal()) {
			continue
		}
		health := string(op.Observed)
		if health == "" {
			health = "-"
		}
		msg := op.Error
		if op.CleanupFailed {
			msg += " [cleanup failed, slot may still be running]"
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			op.StartedAt.Local().Format(time.RFC3339), op.Project, op.Action, op.Version,
			op.Port, op.Phase, health, oneLine(msg))
	}
	return out.Flush()
}

func oneLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
