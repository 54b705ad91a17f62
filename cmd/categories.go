package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stayguide/guide-cli/internal/model"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the searchable category catalog",
	Long:  "Prints the category tags, labels, and icons the discover command searches with, including any overrides from the configured catalog file.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		formatCatalog(os.Stdout, catalog)
		return nil
	},
}

func formatCatalog(out io.Writer, catalog model.Catalog) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TAG\tLABEL\tICON\tDEFAULT")
	_, _ = fmt.Fprintln(w, "---\t-----\t----\t-------")
	for _, e := range catalog {
		def := ""
		if e.DefaultSelected {
			def = "x"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Tag, e.Label, e.Icon, def)
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
}
