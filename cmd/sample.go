package main

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/flo2d-schematizer/internal/dem"
	"github.com/sells-group/flo2d-schematizer/internal/elevation"
	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/project"
)

var sampleCmd = &cobra.Command{
	Use:   "sample <x> <y> [<x> <y>...]",
	Short: "Print the elevation at points",
	Long:  "Samples the configured raster at each point, falling back to the grid of --project when given.",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 || len(args)%2 != 0 {
			return eris.New("sample: expected x y pairs")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		pts, err := parsePoints(args)
		if err != nil {
			return err
		}
		if raster, _ := cmd.Flags().GetString("raster"); raster != "" {
			cfg.Raster.Path = raster
		}

		var s elevation.Sampler
		if cfg.Raster.Path != "" {
			r, err := dem.Open(cfg.Raster.Path)
			if err != nil {
				return err
			}
			interp, err := elevation.ParseInterpolation(cfg.Raster.Interpolation)
			if err != nil {
				return err
			}
			if s, err = elevation.NewRasterSampler(r, interp, cfg.Raster.SourceProj, cfg.Raster.RasterProj); err != nil {
				return err
			}
		}
		if path, _ := cmd.Flags().GetString("project"); path != "" {
			proj, err := project.LoadYAML(path)
			if err != nil {
				return err
			}
			gs := elevation.GridSampler{Grid: proj.Grid}
			if s == nil {
				s = gs
			} else {
				s = elevation.Fallback{Primary: s, Secondary: gs}
			}
		}
		if s == nil {
			return eris.New("sample: set raster.path, --raster or --project")
		}

		w := cmd.OutOrStdout()
		for _, p := range pts {
			if v, ok := s.Sample(p); ok {
				fmt.Fprintf(w, "%g %g %.4f\n", p.X, p.Y, v)
			} else {
				fmt.Fprintf(w, "%g %g nodata\n", p.X, p.Y)
			}
		}
		return nil
	},
}

func parsePoints(args []string) ([]geometry.Point, error) {
	out := make([]geometry.Point, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		x, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "sample: x %q", args[i])
		}
		y, err := strconv.ParseFloat(args[i+1], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "sample: y %q", args[i+1])
		}
		out = append(out, geometry.Pt(x, y))
	}
	return out, nil
}

func init() {
	sampleCmd.Flags().String("raster", "", "elevation raster (overrides raster.path)")
	sampleCmd.Flags().String("project", "", "YAML project whose grid is the fallback")
	rootCmd.AddCommand(sampleCmd)
}
