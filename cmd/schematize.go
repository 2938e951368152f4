package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/flo2d-schematizer/internal/dem"
	"github.com/sells-group/flo2d-schematizer/internal/elevation"
	"github.com/sells-group/flo2d-schematizer/internal/export"
	"github.com/sells-group/flo2d-schematizer/internal/pipeline"
	"github.com/sells-group/flo2d-schematizer/internal/project"
	"github.com/sells-group/flo2d-schematizer/internal/report"
)

var schematizeCmd = &cobra.Command{
	Use:   "schematize",
	Short: "Schematize a project into the derived tables",
	Long:  "Loads the user layers from a YAML project or a shapefile directory, runs the channel, levee and floodplain passes, commits the derived tables and optionally writes FLO-2D data files and an XLSX report.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if raster, _ := cmd.Flags().GetString("raster"); raster != "" {
			cfg.Raster.Path = raster
		}
		if sg, _ := cmd.Flags().GetBool("sample-grid"); sg {
			cfg.Raster.SampleGrid = true
		}
		if err := cfg.Validate("schematize"); err != nil {
			return err
		}

		projPath, _ := cmd.Flags().GetString("project")
		shpDir, _ := cmd.Flags().GetString("shapefiles")
		proj, err := loadProject(ctx, projPath, shpDir)
		if err != nil {
			return err
		}

		names, _ := cmd.Flags().GetStringSlice("stage")
		var stages []pipeline.Stage
		for _, n := range names {
			st, err := pipeline.ParseStage(n)
			if err != nil {
				return err
			}
			stages = append(stages, st)
		}

		opts := pipeline.Options{
			DefaultManning: cfg.Schema.Manning,
			Progress: func(pct float64, msg string) {
				zap.L().Debug("schematize: progress", zap.Float64("percent", pct), zap.String("message", msg))
			},
		}
		if opts.Sampler, err = schematizeSampler(proj); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p := pipeline.New(st, opts)
		p.OnCommit(func(_ context.Context, out *pipeline.Outcome) {
			zap.L().Info("schematize: tables committed",
				zap.String("run_id", out.RunID),
				zap.String("store", cfg.Store.Driver))
		})

		out, runErr := p.Run(ctx, proj, stages...)

		// The report is written for failed runs too; it lists the error.
		if path, _ := cmd.Flags().GetString("report"); path != "" && out.Report != nil {
			if err := report.Save(path, out, report.Units(cfg.Schema.Units())); err != nil {
				return err
			}
		}
		if runErr != nil {
			return eris.Wrap(runErr, "schematize")
		}

		if dir, _ := cmd.Flags().GetString("dat"); dir != "" {
			topo, _ := cmd.Flags().GetBool("topo")
			files, err := export.WriteDAT(dir, proj, out, export.DATOptions{
				ISED:     cfg.Schema.ISED == 1,
				NXPRT:    cfg.Schema.NXPRT,
				RaiseLev: cfg.Schema.RaiseLev,
				Topo:     topo,
			})
			if err != nil {
				return err
			}
			zap.L().Info("schematize: data files written", zap.Strings("files", files))
		}

		printOutcome(cmd.OutOrStdout(), out)
		return nil
	},
}

func loadProject(ctx context.Context, projPath, shpDir string) (*project.Project, error) {
	switch {
	case projPath != "" && shpDir != "":
		return nil, eris.New("schematize: --project and --shapefiles are mutually exclusive")
	case projPath != "":
		return project.LoadYAML(projPath)
	case shpDir != "":
		return project.LoadShapefiles(ctx, shpDir, cfg.Schema.CellSize)
	}
	return nil, eris.New("schematize: one of --project or --shapefiles is required")
}

// schematizeSampler picks the elevation source for a run: the configured
// raster, the grid cells when raster.sample_grid is set, or none.
func schematizeSampler(proj *project.Project) (elevation.Sampler, error) {
	switch {
	case cfg.Raster.Path != "":
		return rasterSampler(proj)
	case cfg.Raster.SampleGrid:
		return elevation.GridSampler{Grid: proj.Grid}, nil
	}
	return nil, nil
}

// rasterSampler samples the configured raster and falls back to the grid
// elevation where the raster has no value.
func rasterSampler(proj *project.Project) (elevation.Sampler, error) {
	r, err := dem.Open(cfg.Raster.Path)
	if err != nil {
		return nil, err
	}
	interp, err := elevation.ParseInterpolation(cfg.Raster.Interpolation)
	if err != nil {
		return nil, err
	}
	rs, err := elevation.NewRasterSampler(r, interp, cfg.Raster.SourceProj, cfg.Raster.RasterProj)
	if err != nil {
		return nil, err
	}
	return elevation.Fallback{Primary: rs, Secondary: elevation.GridSampler{Grid: proj.Grid}}, nil
}

func printOutcome(w io.Writer, out *pipeline.Outcome) {
	r := out.Report
	fmt.Fprintf(w, "run %s (%s): ok=%v skipped=%d warnings=%d\n", out.RunID, r.Kind, r.OK, r.Skipped, len(r.Warnings))
	for _, fe := range r.Errors {
		fmt.Fprintf(w, "  error   %s\n", fe.Error())
	}
	for _, fe := range r.Warnings {
		fmt.Fprintf(w, "  warning %s\n", fe.Error())
	}
}

func init() {
	schematizeCmd.Flags().String("project", "", "YAML project document")
	schematizeCmd.Flags().String("shapefiles", "", "directory of user-layer shapefiles")
	schematizeCmd.Flags().StringSlice("stage", nil, "stages to run: channel, levee, fpxs (default: every stage with input)")
	schematizeCmd.Flags().String("raster", "", "elevation raster (overrides raster.path)")
	schematizeCmd.Flags().Bool("sample-grid", false, "sample cell elevations when no raster is set")
	schematizeCmd.Flags().String("dat", "", "directory for FLO-2D data files")
	schematizeCmd.Flags().Bool("topo", false, "also write TOPO.DAT")
	schematizeCmd.Flags().String("report", "", "path of the XLSX run report")
	rootCmd.AddCommand(schematizeCmd)
}
