package main

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/artpar/ngreen/internal/core/deployment"
)

type rootOpts struct {
	configPath string
	cfg        *Config
	logger     *slog.Logger

	// Single-command form: ngreen --action deploy --version v2 ...
	action                string
	version               string
	expectedStatus        string
	rollbackTargetVersion string
}

func newRoot() *rootOpts {
	return &rootOpts{}
}

var rootLongHelp = strings.TrimSpace(`
ngreen rolls a docker compose project across a fixed pool of ports.

Each deploy starts the new version in the next slot, health-checks it and only
then marks it live; the previously live slot keeps running, so a rollback is a
pointer move plus a health check.

Workflow:
  ngreen deploy --version v2 --expected-status 200   # Start v2 in the next slot and promote it.
  ngreen status                                      # Which slot is live, which is next?
  ngreen rollback                                    # Go back to the previously live slot.
  ngreen rollback --rollback-target-version v1       # Go back to the slot still running v1.
  ngreen history                                     # Past operations (needs a journal).
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "ngreen",
		Short:             "N-slot rolling deployments for docker compose projects",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.PersistentPreRunE,
		RunE:              opts.RunE,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	pf.String("project-name", "", "base name of the slot projects, e.g. nginx_workflow")
	pf.String("port-pool", "", "comma separated slot ports, e.g. 5000,5001,5002")
	pf.String("state-backend", "", "where state lives: file or sqlite")
	pf.String("state-file", "", "path of the JSON state file")
	pf.String("state-dsn", "", "SQLite database for the sqlite state backend")
	pf.String("journal-dsn", "", "SQLite database recording every operation")
	pf.String("driver", "", "service controller: compose or docker")
	pf.String("compose-file", "", "compose template rendered for each slot")
	pf.String("ingress-service", "", "service whose first port is bound to the slot port")
	pf.String("docker-host", "", "Docker daemon address")
	pf.String("health-host", "", "host the health probe connects to")
	pf.String("health-path", "", "path the health probe requests")
	pf.Duration("settle-delay", 0, "wait between starting a slot and probing it")
	pf.Duration("probe-timeout", 0, "timeout of a single health probe")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("log-format", "", "text or json")
	cmd.SetGlobalNormalizationFunc(legacyFlagNames)

	f := cmd.Flags()
	f.StringVar(&opts.action, "action", "", "deploy or rollback (single-command form)")
	f.StringVar(&opts.version, "version", "", "version to deploy (with --action deploy)")
	f.StringVar(&opts.expectedStatus, "expected-status", "", "HTTP status the new slot must answer (with --action deploy)")
	f.StringVar(&opts.rollbackTargetVersion, "rollback-target-version", "", "version to roll back to; empty means the previously live slot")

	cmd.AddCommand(
		newDeploy(opts).Command(),
		newRollback(opts).Command(),
		newStatus(opts).Command(),
		newHistory(opts).Command(),
		newServe(opts).Command(),
		newVersion(opts).Command(),
	)

	return cmd
}

// legacyFlagNames accepts flag spellings from older deploy scripts.
func legacyFlagNames(f *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "port-pool-str":
		name = "port-pool"
	}
	return pflag.NormalizedName(name)
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(opts.configPath, cmd.Flags())
	if err != nil {
		return err
	}
	opts.cfg = cfg
	opts.logger = SetupLogger(cfg, cmd.ErrOrStderr())
	return nil
}

func (opts *rootOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	if opts.action == "" {
		return cmd.Help()
	}

	action, err := deployment.ParseAction(opts.action)
	if err != nil {
		return err
	}
	switch action {
	case deployment.ActionDeploy:
		return runDeploy(cmd, opts, opts.version, opts.expectedStatus)
	default:
		return runRollback(cmd, opts, opts.rollbackTargetVersion)
	}
}

// open validates the loaded config and opens the stores.
func (opts *rootOpts) open() (*app, error) {
	return openApp(opts.cfg, opts.logger)
}
