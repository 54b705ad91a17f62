// Package report renders import run outcomes for the operator.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/stayguide/guide-cli/internal/model"
)

// WriteRunXLSX writes a two-sheet workbook for a finished run: a summary
// sheet with the outcome counts and an items sheet with one row per
// processed place.
func WriteRunXLSX(w io.Writer, run *model.Run, items []model.RunItem) error {
	f := xlsx.NewFile()

	if err := addSummarySheet(f, run); err != nil {
		return err
	}
	if err := addItemsSheet(f, items); err != nil {
		return err
	}

	return eris.Wrap(f.Write(w), "report: write workbook")
}

func addSummarySheet(f *xlsx.File, run *model.Run) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}

	addKV := func(key, value string) {
		row := sheet.AddRow()
		row.AddCell().SetString(key)
		row.AddCell().SetString(value)
	}

	addKV("Run ID", run.ID)
	addKV("Owner", run.OwnerID)
	addKV("Status", string(run.Status))
	addKV("Created", run.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	addKV("Origin", fmt.Sprintf("%.5f, %.5f", run.Criteria.Origin.Lat, run.Criteria.Origin.Lng))
	addKV("Radius (m)", strconv.Itoa(run.Criteria.RadiusMeters))

	categories := ""
	for i, tag := range run.Criteria.Categories {
		if i > 0 {
			categories += ", "
		}
		categories += string(tag)
	}
	addKV("Categories", categories)

	if run.Outcome != nil {
		addKV("Imported", strconv.Itoa(run.Outcome.Imported))
		addKV("Skipped duplicates", strconv.Itoa(run.Outcome.SkippedDuplicates))
		addKV("Errors", strconv.Itoa(len(run.Outcome.Errors)))
		addKV("Total", strconv.Itoa(run.Outcome.Total()))
	}
	return nil
}

var itemHeaders = []string{
	"Index", "Name", "Address", "Category", "Distance (m)",
	"Rating", "Status", "Entry ID", "Error",
}

func addItemsSheet(f *xlsx.File, items []model.RunItem) error {
	sheet, err := f.AddSheet("Items")
	if err != nil {
		return eris.Wrap(err, "report: add items sheet")
	}

	header := sheet.AddRow()
	for _, h := range itemHeaders {
		header.AddCell().SetString(h)
	}

	for _, it := range items {
		row := sheet.AddRow()
		row.AddCell().SetInt(it.Index)
		row.AddCell().SetString(it.Candidate.Name)
		row.AddCell().SetString(it.Candidate.Address)
		row.AddCell().SetString(string(it.Candidate.EffectiveCategory()))
		row.AddCell().SetFloatWithFormat(it.Candidate.DistanceMeters, "0")
		row.AddCell().SetFloat(it.Candidate.Rating)
		row.AddCell().SetString(string(it.Status))
		row.AddCell().SetString(it.EntryID)
		row.AddCell().SetString(it.Error)
	}
	return nil
}
