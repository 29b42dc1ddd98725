// Package ui provides the small set of colorized terminal output helpers
// the CLI commands share: section headers, labels, dimmed paths, counters,
// and warning/info lines. Color is auto-detected from the output stream and
// can be forced off (NO_COLOR, --no-color) via InitColors.
package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	subHeadColor = color.New(color.Bold)
	labelColor   = color.New(color.FgBlue)
	dimColor     = color.New(color.FgHiBlack)
	warnColor    = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgGreen)
	countColor   = color.New(color.Bold)
)

// InitColors decides whether color output is enabled for this process. It
// should be called once at CLI startup after global flags are parsed.
// Precedence: an explicit --no-color flag always wins; otherwise color is
// enabled only when stdout is a real terminal and NO_COLOR is unset.
func InitColors(noColorFlag bool) {
	enabled := !noColorFlag && isatty.IsTerminal(os.Stdout.Fd()) && os.Getenv("NO_COLOR") == ""
	color.NoColor = !enabled
}

// Header prints a bold, cyan section title line.
func Header(title string) {
	headerColor.Println(title)
}

// SubHeader prints a bold subsection title.
func SubHeader(title string) {
	subHeadColor.Println(title)
}

// Label renders text as a field label (e.g. "Project ID:"); callers
// interpolate the value themselves so column alignment stays in their
// control.
func Label(text string) string {
	return labelColor.Sprint(text)
}

// DimText renders text de-emphasized, for secondary information like file
// paths.
func DimText(text string) string {
	return dimColor.Sprint(text)
}

// CountText renders an integer count in bold, for summary statistics.
func CountText(n int) string {
	return countColor.Sprint(n)
}

// Warning prints a yellow warning line to stderr.
func Warning(message string) {
	warnColor.Fprint(os.Stderr, "warning: ")
	fmt.Fprintln(os.Stderr, message)
}

// Warningf formats and prints a warning line to stderr.
func Warningf(format string, args ...interface{}) {
	Warning(fmt.Sprintf(format, args...))
}

// Info prints a green informational line to stderr.
func Info(message string) {
	infoColor.Fprint(os.Stderr, "info: ")
	fmt.Fprintln(os.Stderr, message)
}

// ProgressEnabled reports whether the current stdout is a real terminal,
// the same check InitColors uses — a daemon redirected to a log file or
// running under a supervisor gets no bar.
func ProgressEnabled() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// NewProgressBar builds a bar for a phase of known size, styled to match
// the rest of the CLI's terminal output.
func NewProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(65*time.Millisecond),
	)
}
