// Package commands defines all Cobra CLI commands for the coach binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/prepwise/coach-go/internal/audit"
	"github.com/prepwise/coach-go/internal/config"
	"github.com/prepwise/coach-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coach",
		Short: "AI mock-interview coach backend",
		Long: `Coach runs mock technical interviews grounded in a candidate's resume.

Given a job description and a resume it extracts the topics an interviewer
would probe, generates one personalised question per topic using retrieved
resume excerpts, and evaluates the candidate's answers into a written report
with per-dimension scores.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.coach/config.yaml).
See 'coach --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.coach/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
