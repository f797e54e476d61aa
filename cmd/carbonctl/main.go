/*
main.go - carbonctl, the command-line front end to the engine

PURPOSE:
  Runs the projection engine on input files without a server. Used by
  analysts to inspect a project and by CI to check fixtures.

COMMANDS:
  compute <file>                     Summary table and returns
  export  <file> --statement <name>  One statement as CSV
  sweep   <file>                     Sensitivity grid
  check   <fixture>...               Strict invariant check, exit 1 on failure

INPUT FILES:
  JSON or YAML UIInputs (percent units), or engine_inputs.json fixtures in
  canonical units. See factory.LoadEngineInputs.

SEE ALSO:
  - engine/: the calculation
  - export/: CSV schemas
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/carbon-engine/engine"
	"github.com/warp/carbon-engine/factory"
	"github.com/warp/carbon-engine/logging"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by subcommands.
type app struct {
	logger   *zap.Logger
	factory  *factory.InputFactory
	verbose  bool
	strict   bool
	logLevel string
}

func newRootCmd() *cobra.Command {
	a := &app{factory: factory.NewInputFactory(), logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "carbonctl",
		Short: "Carbon project financial projections",
		Long: `carbonctl runs the carbon project projection engine on input files.

Input files are JSON or YAML project inputs in percent units, or
engine_inputs.json fixtures in canonical units.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := a.logLevel
			if a.verbose {
				level = "debug"
			}
			logger, err := logging.New(level, "console")
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level")
	root.PersistentFlags().BoolVar(&a.strict, "strict", false, "fail on any accounting invariant violation")

	root.AddCommand(
		newComputeCmd(a),
		newExportCmd(a),
		newSweepCmd(a),
		newCheckCmd(a),
	)
	return root
}

func (a *app) policy() engine.InvariantPolicy {
	if a.strict {
		return engine.PolicyStrict
	}
	return engine.PolicyWarn
}

// load reads an input file in either supported shape.
func (a *app) load(path string) (engine.EngineInputs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.EngineInputs{}, err
	}
	in, err := a.factory.LoadEngineInputs(data, factory.FormatFromPath(path))
	if err != nil {
		return engine.EngineInputs{}, fmt.Errorf("%s: %w", path, err)
	}
	return in, nil
}

// run loads and computes a file, logging violations.
func (a *app) run(path string, policy engine.InvariantPolicy) (*engine.Model, error) {
	in, err := a.load(path)
	if err != nil {
		return nil, err
	}
	m, err := engine.Run(in, engine.WithPolicy(policy))
	if m != nil {
		for _, v := range m.Violations {
			a.logger.Warn("invariant violation",
				zap.String("file", path),
				zap.String("check", v.Check),
				zap.Int("year", v.Year),
				zap.String("delta", v.Delta))
		}
	}
	if err != nil {
		return m, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
