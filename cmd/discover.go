package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stayguide/guide-cli/internal/model"
	"github.com/stayguide/guide-cli/internal/pipeline"
)

var (
	discoverOwner      string
	discoverAddress    string
	discoverLat        float64
	discoverLng        float64
	discoverRadius     int
	discoverCategories []string
	discoverDescribe   bool
	discoverDryRun     bool
	discoverSelectAll  bool
	discoverMinRating  float64
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Search nearby places and import the selection",
	Long:  "Runs the full discovery workflow: searches the configured categories around an origin, flags duplicates against the existing guide, auto-selects the rest, and imports them. With --dry-run the preview is printed and nothing is written.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if discoverOwner == "" {
			return eris.New("--owner is required")
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		m := e.newMachine(discoverOwner, discoverDescribe)

		origin := model.Coordinates{Lat: discoverLat, Lng: discoverLng}
		if origin.IsZero() {
			if discoverAddress == "" {
				return eris.New("either --address or --lat/--lng is required")
			}
			origin, err = m.ResolveOrigin(ctx, discoverAddress)
			if err != nil {
				return err
			}
			zap.L().Info("resolved origin",
				zap.String("address", discoverAddress),
				zap.Float64("lat", origin.Lat),
				zap.Float64("lng", origin.Lng))
		}

		radius := discoverRadius
		if radius <= 0 {
			radius = cfg.Search.RadiusMeters
		}
		criteria := model.Criteria{
			Origin:       origin,
			RadiusMeters: radius,
			Categories:   discoverTags(e.catalog),
		}
		if err := m.SetCriteria(criteria); err != nil {
			return err
		}

		if err := m.Search(ctx); err != nil {
			return err
		}
		for _, failed := range m.FailedCategories() {
			fmt.Fprintf(os.Stderr, "warning: %s search failed: %s\n", failed.Category, failed.Reason)
		}

		applyCuration(m.Curation())

		candidates := m.Curation().Candidates()
		formatPreview(os.Stdout, candidates)

		if discoverDryRun {
			fmt.Fprintln(os.Stdout, "\nDry run: nothing imported.")
			return m.Cancel()
		}

		if err := m.Confirm(); err != nil {
			return err
		}

		outcome, err := m.Import(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "\nRun %s finished: %d imported, %d duplicates skipped, %d errors.\n",
			outcome.RunID, outcome.Imported, outcome.SkippedDuplicates, len(outcome.Errors))
		for _, itemErr := range outcome.Errors {
			fmt.Fprintf(os.Stderr, "  %s (%s): %s\n", itemErr.ExternalID, itemErr.Stage, itemErr.Reason)
		}
		return nil
	},
}

// discoverTags resolves the requested categories, falling back to the
// catalog's default selection.
func discoverTags(catalog model.Catalog) []model.CategoryTag {
	if len(discoverCategories) == 0 && len(cfg.Search.Categories) > 0 {
		discoverCategories = cfg.Search.Categories
	}
	if len(discoverCategories) == 0 {
		return catalog.DefaultTags()
	}
	tags := make([]model.CategoryTag, 0, len(discoverCategories))
	for _, c := range discoverCategories {
		tags = append(tags, model.CategoryTag(c))
	}
	return tags
}

// applyCuration performs the non-interactive selection pass: everything
// non-duplicate is selected unless a minimum rating filters it out.
func applyCuration(cur *pipeline.Curation) {
	if discoverSelectAll {
		cur.SelectAll()
	}
	if discoverMinRating > 0 {
		for _, cand := range cur.Candidates() {
			if cand.Selected && cand.Rating < discoverMinRating {
				cur.ToggleSelection(cand.ExternalID)
			}
		}
	}
}

func formatPreview(out io.Writer, candidates []model.Candidate) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SEL\tNAME\tCATEGORY\tDIST(m)\tRATING\tDUP")
	_, _ = fmt.Fprintln(w, "---\t----\t--------\t-------\t------\t---")
	for _, c := range candidates {
		sel := " "
		if c.Selected {
			sel = "x"
		}
		dup := ""
		if c.IsDuplicate {
			dup = "dup"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%.1f\t%s\n",
			sel, c.Name, c.EffectiveCategory(), c.DistanceMeters, c.Rating, dup)
	}
	_ = w.Flush()
}

func init() {
	discoverCmd.Flags().StringVar(&discoverOwner, "owner", "", "owner id the entries belong to")
	discoverCmd.Flags().StringVar(&discoverAddress, "address", "", "origin address (geocoded)")
	discoverCmd.Flags().Float64Var(&discoverLat, "lat", 0, "origin latitude")
	discoverCmd.Flags().Float64Var(&discoverLng, "lng", 0, "origin longitude")
	discoverCmd.Flags().IntVar(&discoverRadius, "radius", 0, "search radius in meters (default from config)")
	discoverCmd.Flags().StringSliceVar(&discoverCategories, "categories", nil, "category tags to search")
	discoverCmd.Flags().BoolVar(&discoverDescribe, "describe", false, "generate descriptions from reviews")
	discoverCmd.Flags().BoolVar(&discoverDryRun, "dry-run", false, "print the preview without importing")
	discoverCmd.Flags().BoolVar(&discoverSelectAll, "select-all", false, "select every non-duplicate candidate")
	discoverCmd.Flags().Float64Var(&discoverMinRating, "min-rating", 0, "deselect candidates below this rating")
	rootCmd.AddCommand(discoverCmd)
}
