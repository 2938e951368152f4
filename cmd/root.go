package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/flo2d-schematizer/internal/config"
	"github.com/sells-group/flo2d-schematizer/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "flo2d-schematizer",
	Short: "FLO-2D channel, levee and floodplain schematizer",
	Long:  "Turns user-drawn channel banks, cross-sections, levee lines and floodplain cross-sections into FLO-2D grid-aligned records and data files.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// initStore opens the configured derived-table store and migrates it.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	switch cfg.Store.Driver {
	case "memory":
		st = store.NewMemory()
	default:
		s, err := store.NewSQLite(cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		st = s
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
