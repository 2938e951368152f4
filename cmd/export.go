package main

import (
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/flo2d-schematizer/internal/db"
	"github.com/sells-group/flo2d-schematizer/internal/export"
	"github.com/sells-group/flo2d-schematizer/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export committed derived tables",
	Long:  "Copies the derived tables of the last committed run out of the store, as shapefiles or into PostGIS.",
}

var exportShpCmd = &cobra.Command{
	Use:   "shp",
	Short: "Write shapefiles of the tables that carry geometry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("export"); err != nil {
			return err
		}
		tables, err := exportTables(cmd, export.GeometryTables())
		if err != nil {
			return err
		}
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = cfg.Export.OutDir
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		counts, err := export.Shapefiles(ctx, st, dir, tables)
		if err != nil {
			return eris.Wrap(err, "export shp")
		}
		printCounts(cmd, counts)
		return nil
	},
}

var exportPostGISCmd = &cobra.Command{
	Use:   "postgis",
	Short: "Copy the derived tables into PostGIS",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if url, _ := cmd.Flags().GetString("url"); url != "" {
			cfg.Export.PostGISURL = url
		}
		if err := cfg.Validate("export"); err != nil {
			return err
		}
		if cfg.Export.PostGISURL == "" {
			return eris.New("export postgis: export.postgis_url is required")
		}
		tables, err := exportTables(cmd, store.Tables())
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pool, err := db.Connect(ctx, cfg.Export.PostGISURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		ex := &db.Exporter{Pool: pool, Schema: cfg.Export.PostGISSchema, SRID: cfg.Export.SRID}
		n, err := ex.Export(ctx, st, tables)
		if err != nil {
			return eris.Wrap(err, "export postgis")
		}
		counts := make(map[string]int, len(n))
		for table, c := range n {
			counts[table] = int(c)
		}
		printCounts(cmd, counts)
		return nil
	},
}

// exportTables validates --table values, defaulting to all.
func exportTables(cmd *cobra.Command, all []string) ([]string, error) {
	names, _ := cmd.Flags().GetStringSlice("table")
	if len(names) == 0 {
		return all, nil
	}
	known := make(map[string]bool, len(all))
	for _, t := range all {
		known[t] = true
	}
	for _, n := range names {
		if !known[n] {
			return nil, eris.Errorf("export: table %q cannot be exported here", n)
		}
	}
	return names, nil
}

func printCounts(cmd *cobra.Command, counts map[string]int) {
	if cfg.Store.Driver == "memory" {
		zap.L().Warn("export: the memory store starts empty in every process")
	}
	tables := make([]string, 0, len(counts))
	for t := range counts {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	w := cmd.OutOrStdout()
	for _, t := range tables {
		fmt.Fprintf(w, "%-20s %d\n", t, counts[t])
	}
}

func init() {
	exportCmd.PersistentFlags().StringSlice("table", nil, "tables to export (default: all)")
	exportShpCmd.Flags().String("dir", "", "output directory (default: export.out_dir)")
	exportPostGISCmd.Flags().String("url", "", "PostGIS connection string (default: export.postgis_url)")
	exportCmd.AddCommand(exportShpCmd, exportPostGISCmd)
	rootCmd.AddCommand(exportCmd)
}
