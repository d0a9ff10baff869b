package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	apperrors "repoharness/pkg/errors"
)

var supportsColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

func init() {
	if !supportsColor {
		color.NoColor = true
	}
}

// ShowHeader displays a boxed section title.
func ShowHeader(title string) {
	width := 50
	if len(title)+4 > width {
		width = len(title) + 4
	}
	padding := (width - len(title) - 2) / 2

	fmt.Println("\n+" + strings.Repeat("-", width-2) + "+")
	fmt.Printf("|%s%s%s|\n",
		strings.Repeat(" ", padding),
		color.New(color.Bold).Sprint(title),
		strings.Repeat(" ", width-2-padding-len(title)),
	)
	fmt.Println("+" + strings.Repeat("-", width-2) + "+")
}

// ShowError displays an error with any suggestions it carries.
func ShowError(err error) {
	fmt.Printf("\n%s %s\n", color.RedString("ERROR:"), err.Error())

	if appErr, ok := err.(*apperrors.AppError); ok {
		for _, suggestion := range appErr.Suggestions {
			fmt.Printf("  %s %s\n", color.CyanString("TIP:"), suggestion)
		}
	}
}

// ShowSuccess displays a success message.
func ShowSuccess(message string) {
	fmt.Printf("%s %s\n", color.GreenString("SUCCESS:"), message)
}

// ShowWarning displays a warning message.
func ShowWarning(message string) {
	fmt.Printf("%s %s\n", color.YellowString("WARNING:"), message)
}

// ShowInfo displays an informational message.
func ShowInfo(message string) {
	fmt.Printf("%s %s\n", color.CyanString("INFO:"), message)
}
