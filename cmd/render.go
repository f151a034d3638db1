package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/valuegrid/internal/campus"
	"github.com/sells-group/valuegrid/internal/config"
	"github.com/sells-group/valuegrid/internal/engine"
	"github.com/sells-group/valuegrid/internal/parcel"
	"github.com/sells-group/valuegrid/internal/render"
	"github.com/sells-group/valuegrid/internal/store"
	"github.com/sells-group/valuegrid/internal/transit"
	"github.com/sells-group/valuegrid/internal/zone"
)

type renderFlags struct {
	input     string
	mode      string
	out       string
	format    string
	transit   string
	campus    string
	top       int
	cellSize  float64
	classes   int
	statistic string
	minCount  int
	workers   int
	cities    []string
	size      int
	save      bool
	name      string
}

var renderOpts renderFlags

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Build a value map from a parcel file",
	Long:  "Loads parcels from a shapefile, GeoJSON or CSV file, runs the selected mode, and writes GeoJSON, PNG or XLSX output.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runRender(cmd.Context(), cfg, renderOpts)
	},
}

func init() {
	f := renderCmd.Flags()
	f.StringVar(&renderOpts.input, "input", "", "parcel file (.shp, .geojson, .json, .csv)")
	f.StringVar(&renderOpts.mode, "mode", string(render.GridZones), "choropleth, quartile-heat, multi-tier-heat, grid-zones, grid-transit or grid-campus")
	f.StringVar(&renderOpts.out, "out", "", "output file (default stdout)")
	f.StringVar(&renderOpts.format, "format", "", "geojson, png or xlsx (default from --out extension)")
	f.StringVar(&renderOpts.transit, "transit", "", "stations file (GTFS stops.txt or YAML) for grid-transit")
	f.StringVar(&renderOpts.campus, "campus", "", "institutions YAML for grid-campus (default built-in Boston list)")
	f.IntVar(&renderOpts.top, "top", 0, "only the N largest institutions for grid-campus (0 for all)")
	f.Float64Var(&renderOpts.cellSize, "cell-size", 0, "cell size in meters (default from config)")
	f.IntVar(&renderOpts.classes, "classes", 0, "number of classes (default from config)")
	f.StringVar(&renderOpts.statistic, "statistic", "", "median or mean (default from config)")
	f.IntVar(&renderOpts.minCount, "min-count", -1, "minimum properties per zone (default from config)")
	f.IntVar(&renderOpts.workers, "workers", 0, "aggregation workers (default from config)")
	f.StringSliceVar(&renderOpts.cities, "cities", nil, "keep only parcels in these cities")
	f.IntVar(&renderOpts.size, "size", 1200, "PNG size in pixels along the longer side")
	f.BoolVar(&renderOpts.save, "save", false, "save the grid run to the store")
	f.StringVar(&renderOpts.name, "name", "", "run name when saving (default input file name)")
	_ = renderCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(renderCmd)
}

func runRender(ctx context.Context, c *config.Config, fl renderFlags) error {
	log := zap.L().With(zap.String("component", "render"))

	mode, err := render.ParseMode(fl.mode)
	if err != nil {
		return err
	}
	format, err := outputFormat(fl.format, fl.out)
	if err != nil {
		return err
	}
	if !mode.UsesGrid() && format != "geojson" {
		return eris.Errorf("render: mode %s only supports geojson output", mode)
	}
	if mode.UsesTransit() && fl.transit == "" {
		return eris.New("render: grid-transit needs --transit")
	}
	if fl.save && !mode.UsesGrid() {
		return eris.New("render: --save is only supported for grid modes")
	}

	records, err := loadRecords(fl.input)
	if err != nil {
		return err
	}
	records = parcel.FilterCities(records, fl.cities)
	log.Info("loaded parcels", zap.String("input", fl.input), zap.Int("records", len(records)))

	var buf bytes.Buffer
	if !mode.UsesGrid() {
		pr, err := classifyProperties(c, mode, fl, records)
		if err != nil {
			return err
		}
		logWarnings(log, pr.Warnings)
		log.Info("classified properties",
			zap.Int("properties", len(pr.Properties)),
			zap.Int("dropped", pr.Dropped.Total),
		)
		fc, err := render.PropertiesGeoJSON(pr, mode)
		if err != nil {
			return err
		}
		if err := render.WriteGeoJSON(&buf, fc); err != nil {
			return err
		}
		return writeOutput(fl.out, buf.Bytes())
	}

	opts, err := gridOptions(c, fl)
	if err != nil {
		return err
	}
	res, err := engine.Run(records, opts)
	if err != nil {
		return err
	}
	logWarnings(log, res.Warnings)
	log.Info("grid built",
		zap.Int("rows", res.Grid.Rows),
		zap.Int("cols", res.Grid.Cols),
		zap.Int("zones", len(res.Zones)),
		zap.Int("dropped", res.Dropped.Total),
	)

	var ov render.Overlay
	if mode.UsesTransit() {
		ov.Stations, err = overlayStations(c, fl.transit, res)
		if err != nil {
			return err
		}
		log.Info("transit overlay", zap.Int("stations", len(ov.Stations)))
	}
	if mode.UsesCampus() {
		ov.Campuses, err = overlayCampuses(fl.campus, fl.top, res)
		if err != nil {
			return err
		}
		log.Info("campus overlay", zap.Int("institutions", len(ov.Campuses)))
	}

	switch format {
	case "png":
		err = render.PNG(&buf, res, ov, fl.size)
	case "xlsx":
		err = render.XLSX(&buf, res)
	default:
		fc, ferr := render.ZonesGeoJSON(res, ov)
		if ferr != nil {
			return ferr
		}
		err = render.WriteGeoJSON(&buf, fc)
	}
	if err != nil {
		return err
	}
	if err := writeOutput(fl.out, buf.Bytes()); err != nil {
		return err
	}

	if fl.save {
		return saveRun(ctx, mode, fl, res)
	}
	return nil
}

func gridOptions(c *config.Config, fl renderFlags) (engine.Options, error) {
	opts := c.GridOptions()
	if fl.cellSize > 0 {
		opts.CellSizeMeters = fl.cellSize
	}
	if fl.classes > 0 {
		opts.Classes = fl.classes
		if len(opts.Palette) != opts.Classes {
			opts.Palette = nil
		}
	}
	if fl.statistic != "" {
		s, err := zone.ParseStatistic(fl.statistic)
		if err != nil {
			return engine.Options{}, err
		}
		opts.Statistic = s
	}
	if fl.minCount >= 0 {
		opts.MinCount = fl.minCount
	}
	if fl.workers > 0 {
		opts.Workers = fl.workers
	}
	return opts, opts.Validate()
}

func classifyProperties(c *config.Config, mode render.Mode, fl renderFlags, records []parcel.Record) (*engine.PropertyResult, error) {
	switch mode {
	case render.MultiTierHeat:
		return engine.MultiTier(records, c.Classify.TierPercentiles)
	case render.QuartileHeat:
		n := c.HeatOptions().Classes
		if fl.classes > 0 {
			n = fl.classes
		}
		return engine.ClassifyProperties(records, n)
	default:
		n := c.Classify.GridClasses
		if fl.classes > 0 {
			n = fl.classes
		}
		return engine.ClassifyProperties(records, n)
	}
}

func overlayStations(c *config.Config, path string, res *engine.Result) ([]transit.Station, error) {
	stations, skipped, err := loadStations(path)
	if err != nil {
		return nil, err
	}
	filter, err := c.TransitFilter()
	if err != nil {
		return nil, err
	}
	proj, err := res.Projector()
	if err != nil {
		return nil, err
	}
	idx := transit.Project(filter.Apply(stations), proj)
	zap.L().Debug("stations loaded",
		zap.Int("skipped", skipped),
		zap.Int("unprojectable", idx.Dropped()),
	)
	return idx.Within(res.Grid), nil
}

func overlayCampuses(path string, top int, res *engine.Result) ([]campus.Institution, error) {
	list, err := loadCampuses(path)
	if err != nil {
		return nil, err
	}
	proj, err := res.Projector()
	if err != nil {
		return nil, err
	}
	inside, dropped := campus.Project(list, proj, res.Grid)
	zap.L().Debug("institutions placed",
		zap.Int("inside", len(inside)),
		zap.Int("unprojectable", dropped),
	)
	return campus.Largest(inside, top), nil
}

func loadCampuses(path string) ([]campus.Institution, error) {
	if path == "" {
		return campus.Boston(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "campus: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	list, _, err := campus.LoadYAML(f)
	return list, err
}

func saveRun(ctx context.Context, mode render.Mode, fl renderFlags, res *engine.Result) error {
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	name := fl.name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(fl.input), filepath.Ext(fl.input))
	}
	run, err := st.SaveRun(ctx, store.RunInput{Name: name, Source: fl.input, Mode: string(mode), Result: res})
	if err != nil {
		return eris.Wrap(err, "render: save run")
	}
	fmt.Fprintf(os.Stderr, "Saved run %s (%d zones)\n", run.ID, run.ZoneCount)
	return nil
}

func loadRecords(path string) ([]parcel.Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return parcel.LoadShapefile(path, parcel.DefaultFields())
	case ".geojson", ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "render: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return parcel.LoadGeoJSON(f, parcel.DefaultFields())
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "render: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return parcel.LoadCSV(f)
	default:
		return nil, eris.Errorf("render: unsupported input %s", path)
	}
}

func loadStations(path string) ([]transit.Station, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "transit: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return transit.LoadYAML(f)
	default:
		return transit.LoadGTFS(f)
	}
}

func outputFormat(format, out string) (string, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(out)) {
		case ".png":
			return "png", nil
		case ".xlsx":
			return "xlsx", nil
		default:
			return "geojson", nil
		}
	}
	switch f := strings.ToLower(format); f {
	case "geojson", "png", "xlsx":
		return f, nil
	default:
		return "", eris.Errorf("render: unknown format %q", format)
	}
}

// writeOutput replaces path with data through a temp file in the same
// directory, so a failed write leaves the previous file intact.
func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return eris.Wrap(err, "render: write stdout")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return eris.Wrapf(err, "render: create %s", path)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "render: chmod %s", path)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "render: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "render: write %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "render: replace %s", path)
	}
	return nil
}

func logWarnings(log *zap.Logger, warnings []string) {
	for _, w := range warnings {
		log.Warn(w)
	}
}
