package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/warp/carbon-engine/engine"
	"github.com/warp/carbon-engine/export"
	"github.com/warp/carbon-engine/sweep"
	"go.uber.org/zap"
)

// =============================================================================
// COMPUTE
// =============================================================================

func newComputeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compute <file>",
		Short: "Compute a projection and print a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.run(args[0], a.policy())
			if err != nil {
				return err
			}
			return writeSummary(cmd, m)
		},
	}
}

func writeSummary(cmd *cobra.Command, m *engine.Model) error {
	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "year\trevenue\tnet income\tcash\tdebt\tDSCR\tFCFE\t")
	for i, year := range m.Years {
		is := m.IncomeStatements[i]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			year,
			is.TotalRevenue.StringFixed(2),
			is.NetIncome.StringFixed(2),
			m.BalanceSheets[i].Cash.StringFixed(2),
			m.DebtSchedule[i].EndingBalance.StringFixed(2),
			m.DebtSchedule[i].DSCR.String(),
			m.Returns.FCFToEquity[i].StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	r := m.Returns
	fmt.Fprintln(out)
	fmt.Fprintf(out, "NPV @ %s%%:  %s\n", r.DiscountRate.Mul(decimal.NewFromInt(100)).String(), r.NPV.StringFixed(2))
	fmt.Fprintf(out, "IRR:          %s\n", r.IRR.String())
	fmt.Fprintf(out, "Payback:      %s\n", r.PaybackPeriod.String())
	if len(m.Violations) > 0 {
		fmt.Fprintf(out, "Violations:   %d\n", len(m.Violations))
	}
	return nil
}

// =============================================================================
// EXPORT
// =============================================================================

func newExportCmd(a *app) *cobra.Command {
	var statement, output string

	names := make([]string, 0, len(export.Statements()))
	for _, s := range export.Statements() {
		names = append(names, string(s))
	}

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write one statement as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := export.ParseStatement(statement)
			if err != nil {
				return err
			}
			m, err := a.run(args[0], a.policy())
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				return export.WriteCSV(cmd.OutOrStdout(), m, st)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := export.WriteCSV(f, m, st); err != nil {
				f.Close()
				return err
			}
			a.logger.Info("statement written", zap.String("statement", string(st)), zap.String("path", output))
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&statement, "statement", "s", string(export.StatementIncome),
		"statement to export: "+strings.Join(names, ", "))
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

// =============================================================================
// SWEEP
// =============================================================================

func newSweepCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sweep <file>",
		Short: "Run the standard sensitivity grid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := a.load(args[0])
			if err != nil {
				return err
			}
			results, err := sweep.Run(cmd.Context(), in, sweep.Standard(), limit, engine.WithPolicy(a.policy()))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "variation\tNPV\tIRR\tpayback\t")
			for _, r := range results {
				if !r.OK() {
					fmt.Fprintf(tw, "%s\terror: %s\t\t\t\n", r.Variation.Label(), r.Error)
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", r.Variation.Label(), r.NPV.StringFixed(2), r.IRR.String(), r.Payback.String())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", sweep.DefaultLimit, "concurrent engine runs")
	return cmd
}

// =============================================================================
// CHECK
// =============================================================================

// errCheckFailed is returned when any fixture fails, so the process exits 1.
var errCheckFailed = errors.New("invariant check failed")

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <fixture>...",
		Short: "Verify accounting invariants hold for each fixture",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				m, err := a.run(path, engine.PolicyStrict)
				switch {
				case err == nil:
					fmt.Fprintf(out, "ok    %s (%d years)\n", path, len(m.Years))
				case engine.IsInvariant(err):
					failed++
					fmt.Fprintf(out, "FAIL  %s\n", path)
					for _, v := range m.Violations {
						fmt.Fprintf(out, "      %s\n", v)
					}
				default:
					failed++
					fmt.Fprintf(out, "ERROR %s: %v\n", path, err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", errCheckFailed, failed, len(args))
			}
			return nil
		},
	}
}
