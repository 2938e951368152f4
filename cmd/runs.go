package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/flo2d-schematizer/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the schematization run log",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List committed runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.Query(ctx, store.TableRuns, nil)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		formatRunsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the counts of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.Query(ctx, store.TableRuns, store.Filter{"id": args[0]})
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		if len(runs) == 0 {
			return eris.Errorf("runs show: run %s not found", args[0])
		}
		return formatRun(cmd.OutOrStdout(), runs[0])
	},
}

// formatRunsList writes one line per run, newest last.
func formatRunsList(w io.Writer, runs []store.Row) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tOK\tSKIPPED\tSTARTED\tFINISHED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%v\t%v\t%v\t%v\t%v\t%v\n",
			r["id"], r["kind"], r["ok"], r["skipped"], r["started_at"], r["finished_at"])
	}
	tw.Flush() //nolint:errcheck
}

func formatRun(w io.Writer, run store.Row) error {
	fmt.Fprintf(w, "Run:       %v\n", run["id"])
	fmt.Fprintf(w, "Kind:      %v\n", run["kind"])
	fmt.Fprintf(w, "OK:        %v\n", run["ok"])
	fmt.Fprintf(w, "Cancelled: %v\n", run["cancelled"])
	fmt.Fprintf(w, "Skipped:   %v\n", run["skipped"])
	fmt.Fprintf(w, "Started:   %v\n", run["started_at"])
	fmt.Fprintf(w, "Finished:  %v\n", run["finished_at"])

	raw, _ := run["counts"].(string)
	if raw == "" {
		return nil
	}
	var counts map[string]int
	if err := json.Unmarshal([]byte(raw), &counts); err != nil {
		return eris.Wrap(err, "runs show: decode counts")
	}
	b, err := json.MarshalIndent(counts, "", "  ")
	if err != nil {
		return eris.Wrap(err, "runs show: encode counts")
	}
	fmt.Fprintf(w, "Counts:\n%s\n", b)
	return nil
}

func init() {
	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
