package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/valuegrid/internal/render"
	"github.com/sells-group/valuegrid/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect saved grid runs",
	Long:  "Commands for listing, viewing, and deleting saved grid runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		mode, _ := cmd.Flags().GetString("mode")
		limit, _ := cmd.Flags().GetInt("limit")
		filter := store.RunFilter{Limit: limit}
		if mode != "" {
			m, err := render.ParseMode(mode)
			if err != nil {
				return err
			}
			filter.Mode = string(m)
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		if legendOnly, _ := cmd.Flags().GetBool("legend"); legendOnly {
			formatLegend(os.Stdout, render.Legend(run.Result.Breakpoints, run.Result.Palette))
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs delete --

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a saved run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteRun(ctx, args[0]); err != nil {
			return eris.Wrap(err, "runs delete")
		}
		fmt.Fprintf(os.Stderr, "Deleted run %s\n", args[0])
		return nil
	},
}

func formatRunsList(w io.Writer, runs []store.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMODE\tCELL (M)\tCLASSES\tZONES\tDROPPED\tCREATED")
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		name := r.Name
		if r.Degenerate {
			name += " (degenerate)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\t%d\t%d\t%d\t%s\n",
			id, name, r.Mode, r.CellSize, r.Classes, r.ZoneCount, r.DroppedCount,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = tw.Flush()
}

func formatLegend(w io.Writer, entries []render.LegendEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLASS\tCOLOR\tLABEL")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", e.Class, e.Color, e.Label)
	}
	_ = tw.Flush()
}

func init() {
	runsListCmd.Flags().String("mode", "", "filter by mode")
	runsListCmd.Flags().Int("limit", 20, "max runs to show")
	runsShowCmd.Flags().Bool("legend", false, "print only the class legend")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)
	rootCmd.AddCommand(runsCmd)
}
