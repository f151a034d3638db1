package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/valuegrid/internal/transit"
)

var (
	transitInput string
	transitAll   bool
)

var transitCmd = &cobra.Command{
	Use:   "transit",
	Short: "List rail stations from a GTFS or YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		stations, skipped, err := loadStations(transitInput)
		if err != nil {
			return err
		}
		if !transitAll {
			filter, err := cfg.TransitFilter()
			if err != nil {
				return err
			}
			stations = filter.Apply(stations)
		}

		if len(stations) == 0 {
			fmt.Fprintln(os.Stderr, "No stations found.")
			return nil
		}
		formatStations(os.Stdout, stations)
		fmt.Fprintf(os.Stderr, "%d stations (%d rows skipped)\n", len(stations), skipped)
		return nil
	},
}

func init() {
	transitCmd.Flags().StringVar(&transitInput, "input", "", "stations file (GTFS stops.txt or YAML)")
	transitCmd.Flags().BoolVar(&transitAll, "all", false, "skip the configured municipality and category filter")
	_ = transitCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(transitCmd)
}

func formatStations(w io.Writer, stations []transit.Station) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tMUNICIPALITY\tLON\tLAT")
	for _, s := range stations {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.5f\t%.5f\n",
			s.ID, s.Name, s.Category.Title(), s.Municipality, s.Lon, s.Lat)
	}
	_ = tw.Flush()

	counts := transit.CountByCategory(stations)
	for _, c := range transit.Categories {
		if n := counts[c]; n > 0 {
			fmt.Fprintf(w, "%s: %d\n", c.Title(), n)
		}
	}
}
