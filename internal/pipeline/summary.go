package pipeline

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"repoharness/pkg/models"
)

// PrintSummary renders the batch outcome table.
func PrintSummary(w io.Writer, summary Summary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Repository", "Clone", "History", "Install", "Build", "Patch", "Error"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	for _, outcome := range summary.Outcomes {
		name := outcome.Folder
		if name == "" {
			name = outcome.URL
		}
		table.Append([]string{
			name,
			cloneCell(outcome.Clone),
			boolCell(outcome.History),
			installCell(outcome.Install),
			buildCell(outcome.Build),
			boolCell(outcome.Patched),
			outcome.Err,
		})
	}
	table.Render()

	failed := 0
	for _, outcome := range summary.Outcomes {
		if outcome.Err != "" {
			failed++
		}
	}
	fmt.Fprintf(w, "\n%d repositories processed, %d failed\n", len(summary.Outcomes), failed)
}

func cloneCell(status models.CloneStatus) string {
	switch status {
	case models.CloneSuccess:
		return color.GreenString(string(status))
	case models.CloneExists:
		return color.YellowString(string(status))
	default:
		return color.RedString(string(status))
	}
}

func buildCell(status models.BuildStatus) string {
	switch status {
	case models.BuildSuccess:
		return color.GreenString(string(status))
	case models.BuildNoBuildCommand, models.BuildCancelled:
		return color.YellowString(string(status))
	case "":
		return "-"
	default:
		return color.RedString(string(status))
	}
}

func installCell(results []models.InstallResult) string {
	if len(results) == 0 {
		return "-"
	}
	ok := 0
	for _, r := range results {
		if r.Success || r.Skipped {
			ok++
		}
	}
	cell := fmt.Sprintf("%d/%d", ok, len(results))
	if ok == len(results) {
		return color.GreenString(cell)
	}
	return color.RedString(cell)
}

func boolCell(done bool) string {
	if done {
		return color.GreenString("yes")
	}
	return "-"
}
