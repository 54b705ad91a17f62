package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/stayguide/guide-cli/internal/model"
	"github.com/stayguide/guide-cli/internal/pipeline"
	"github.com/stayguide/guide-cli/internal/report"
	"github.com/stayguide/guide-cli/internal/store"
	"github.com/stayguide/guide-cli/pkg/describe"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect import run history",
	Long:  "Commands for listing, viewing, resuming, and exporting import runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List import runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		owner, _ := cmd.Flags().GetString("owner")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			OwnerID: owner,
			Status:  model.RunStatus(status),
			Limit:   limit,
		})
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
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		items, err := st.ListItems(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show items")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Run   *model.Run      `json:"run"`
			Items []model.RunItem `json:"items"`
		}{run, items})
	},
}

// -- runs resume --

var runsResumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume an interrupted import run",
	Long:  "Continues processing the pending items of a run that was interrupted mid-import. Completed items keep their recorded outcome.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		run, err := e.store.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs resume")
		}
		if run.Status != model.RunStatusImporting {
			return eris.Errorf("run %s is %s, only interrupted runs can resume", run.ID, run.Status)
		}

		items, err := e.store.ListItems(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs resume items")
		}

		pending := 0
		for _, it := range items {
			if it.Status == model.ItemStatusPending {
				pending++
			}
		}
		if pending == 0 {
			fmt.Fprintln(os.Stderr, "Nothing pending; marking run complete.")
		}

		describeEnabled, _ := cmd.Flags().GetBool("describe")
		executor := pipeline.NewExecutor(pipeline.ExecutorConfig{
			Client:      e.placesAPI,
			Resolver:    pipeline.NewCategoryResolver(e.store, e.catalog, run.OwnerID),
			Inventory:   e.store,
			Runs:        e.store,
			Describer:   resumeDescriber(e, describeEnabled),
			OwnerID:     run.OwnerID,
			MaxPhotos:   cfg.Places.MaxPhotos,
			Concurrency: cfg.Import.Concurrency,
		})

		progress := pipeline.NewProgress(len(items), len(items)-pending)
		outcome, err := executor.Resume(ctx, run, items, progress)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Run %s finished: %d imported, %d duplicates skipped, %d errors.\n",
			run.ID, outcome.Imported, outcome.SkippedDuplicates, len(outcome.Errors))
		return nil
	},
}

// -- runs export --

var runsExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a run's outcome to an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs export")
		}
		items, err := st.ListItems(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs export items")
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = fmt.Sprintf("run-%s.xlsx", run.ID)
		}

		f, err := os.Create(out)
		if err != nil {
			return eris.Wrap(err, "runs export create file")
		}
		defer f.Close() //nolint:errcheck

		if err := report.WriteRunXLSX(f, run, items); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Wrote %s\n", out)
		return nil
	},
}

func resumeDescriber(e *env, enabled bool) describe.Generator {
	if !enabled {
		return nil
	}
	return e.describer
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tOWNER\tSTATUS\tIMPORTED\tSKIPPED\tERRORS\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t--------\t-------\t------\t-------\t--------")

	for _, r := range runs {
		imported, skipped, errs := "-", "-", "-"
		if r.Outcome != nil {
			imported = fmt.Sprintf("%d", r.Outcome.Imported)
			skipped = fmt.Sprintf("%d", r.Outcome.SkippedDuplicates)
			errs = fmt.Sprintf("%d", len(r.Outcome.Errors))
		}
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.OwnerID, r.Status, imported, skipped, errs,
			r.CreatedAt.Format("2006-01-02 15:04"), dur)
	}
	_ = w.Flush()
}

func init() {
	runsListCmd.Flags().String("owner", "", "filter by owner id")
	runsListCmd.Flags().String("status", "", "filter by status (importing, complete, failed)")
	runsListCmd.Flags().Int("limit", 20, "maximum rows")
	runsResumeCmd.Flags().Bool("describe", false, "generate descriptions from reviews")
	runsExportCmd.Flags().String("out", "", "output path (default run-<id>.xlsx)")

	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsResumeCmd, runsExportCmd)
	rootCmd.AddCommand(runsCmd)
}
