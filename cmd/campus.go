package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/valuegrid/internal/campus"
	"github.com/sells-group/valuegrid/internal/classify"
)

var (
	campusInput string
	campusCity  string
	campusTop   int
)

var campusCmd = &cobra.Command{
	Use:   "campus",
	Short: "List colleges and universities with enrollment",
	Long:  "Lists institutions from a YAML file, or the built-in Greater Boston list, largest first, followed by summary statistics.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		list, err := loadCampuses(campusInput)
		if err != nil {
			return err
		}
		if campusCity != "" {
			list = campus.InCity(list, campusCity)
		}
		list = campus.Largest(list, campusTop)

		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No institutions found.")
			return nil
		}
		formatCampuses(os.Stdout, list)
		return nil
	},
}

func init() {
	campusCmd.Flags().StringVar(&campusInput, "input", "", "institutions YAML (default built-in Boston list)")
	campusCmd.Flags().StringVar(&campusCity, "city", "", "only institutions in this city")
	campusCmd.Flags().IntVar(&campusTop, "top", 0, "only the N largest (0 for all)")
	rootCmd.AddCommand(campusCmd)
}

func formatCampuses(w io.Writer, list []campus.Institution) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tENROLLMENT\tTYPE\tCITY\tFOUNDED")
	for i, inst := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n",
			i+1, inst.Name, classify.FormatCount(inst.Enrollment), inst.Type.Title(), inst.City, inst.Founded)
	}
	_ = tw.Flush()

	s := campus.Summarize(list)
	fmt.Fprintf(w, "Institutions: %d (%d public, %d private)\n", s.Institutions, s.Public, s.Private)
	fmt.Fprintf(w, "Total enrollment: %s\n", classify.FormatCount(s.TotalEnrollment))
	fmt.Fprintf(w, "Average enrollment: %s\n", classify.FormatCount(int(s.AverageEnrollment+0.5)))
	if s.OldestFounded > 0 {
		fmt.Fprintf(w, "Founded: %d to %d\n", s.OldestFounded, s.NewestFounded)
	}
}
