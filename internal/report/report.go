// Package report writes a per-project insight workbook once a run's output
// has been persisted, so the results can be reviewed outside the product UI.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ImperatorDravidor/inflio-sub007/internal/types"
)

// Writer emits one .xlsx workbook per project into Dir.
type Writer struct {
	Dir string
}

// Write builds the workbook for the given project. The file is overwritten on
// re-runs so it always reflects the latest persisted output.
func (w *Writer) Write(projectID string, transcript types.Transcript, analysis types.ContentAnalysis) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure report directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Summary"); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}
	summaryRows := [][]any{
		{"Project", projectID},
		{"Language", transcript.LanguageCode},
		{"Duration (s)", transcript.DurationSeconds},
		{"Degraded output", transcript.IsFallback || analysis.IsFallback},
		{"Sentiment", string(analysis.Sentiment)},
		{"Summary", analysis.Summary},
		{"Keywords", strings.Join(analysis.Keywords, ", ")},
		{"Topics", strings.Join(analysis.Topics, ", ")},
		{"Insight", insight(analysis)},
	}
	for i, row := range summaryRows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Summary", cell, &row); err != nil {
			return "", fmt.Errorf("write summary row: %w", err)
		}
	}

	if _, err := f.NewSheet("Segments"); err != nil {
		return "", fmt.Errorf("create segments sheet: %w", err)
	}
	header := []any{"Start (s)", "End (s)", "Text", "Confidence"}
	if err := f.SetSheetRow("Segments", "A1", &header); err != nil {
		return "", fmt.Errorf("write segments header: %w", err)
	}
	for i, seg := range transcript.Segments {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{seg.Start, seg.End, seg.Text, seg.Confidence}
		if err := f.SetSheetRow("Segments", cell, &row); err != nil {
			return "", fmt.Errorf("write segment row: %w", err)
		}
	}

	if _, err := f.NewSheet("Key Moments"); err != nil {
		return "", fmt.Errorf("create key moments sheet: %w", err)
	}
	kmHeader := []any{"Timestamp (s)", "Description"}
	if err := f.SetSheetRow("Key Moments", "A1", &kmHeader); err != nil {
		return "", fmt.Errorf("write key moments header: %w", err)
	}
	for i, km := range analysis.KeyMoments {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{km.TimestampSeconds, km.Description}
		if err := f.SetSheetRow("Key Moments", cell, &row); err != nil {
			return "", fmt.Errorf("write key moment row: %w", err)
		}
	}

	path := filepath.Join(w.Dir, fmt.Sprintf("%s.xlsx", projectID))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

// insight condenses the analysis into a single reviewable line.
func insight(analysis types.ContentAnalysis) string {
	if analysis.IsFallback {
		return "Placeholder insights: re-run processing once external services recover"
	}
	if len(analysis.Topics) == 0 {
		return "No dominant topic detected"
	}
	return fmt.Sprintf("Dominant topic %q with %s sentiment", analysis.Topics[0], analysis.Sentiment)
}
