package render

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/valuegrid/internal/engine"
)

// Sheet names written by XLSX.
const (
	SheetZones  = "Zones"
	SheetLegend = "Legend"
)

var zoneHeader = []string{"cell", "row", "col", "count", "median", "mean", "min", "max", "class", "color", "label"}

// XLSX writes the zone table and legend as a workbook.
func XLSX(w io.Writer, res *engine.Result) error {
	if res == nil {
		return eris.New("render: nil result")
	}
	f := xlsx.NewFile()

	zones, err := f.AddSheet(SheetZones)
	if err != nil {
		return eris.Wrap(err, "render: add zones sheet")
	}
	addStrings(zones.AddRow(), zoneHeader...)
	for _, z := range res.Zones {
		row := zones.AddRow()
		row.AddCell().SetString(z.Cell.String())
		row.AddCell().SetInt(z.Cell.Row)
		row.AddCell().SetInt(z.Cell.Col)
		row.AddCell().SetInt(z.Aggregate.Count)
		row.AddCell().SetFloat(z.Aggregate.Median)
		row.AddCell().SetFloat(z.Aggregate.Mean)
		row.AddCell().SetFloat(z.Aggregate.Min)
		row.AddCell().SetFloat(z.Aggregate.Max)
		row.AddCell().SetInt(z.Class + 1)
		row.AddCell().SetString(z.Color)
		row.AddCell().SetString(z.Label)
	}

	legend, err := f.AddSheet(SheetLegend)
	if err != nil {
		return eris.Wrap(err, "render: add legend sheet")
	}
	addStrings(legend.AddRow(), "class", "color", "label", "lower", "upper")
	for _, e := range Legend(res.Breakpoints, res.Palette) {
		row := legend.AddRow()
		row.AddCell().SetInt(e.Class + 1)
		row.AddCell().SetString(e.Color)
		row.AddCell().SetString(e.Label)
		row.AddCell().SetFloat(e.Lower)
		row.AddCell().SetFloat(e.Upper)
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "render: write xlsx")
	}
	return nil
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
