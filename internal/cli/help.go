package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

// Custom help styles
var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#0087AF")).
			MarginBottom(1)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Italic(true).
			MarginBottom(1)

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FFA500")).
				MarginTop(1)

	helpFlagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AA5F")).
			Bold(true)

	helpArgStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AAAA")).
			Bold(true)

	helpDefaultStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#888888")).
				Italic(true)
)

// helpEntry is one rendered flag or argument line: a styled left column and
// an explanation.
type helpEntry struct {
	left    string
	help    string
	trailer string
}

// StyledHelpPrinter creates a custom help printer with Lipgloss styling.
// Flags carrying a kong group tag render under their own section so the
// macro dials stay visually separate from the advanced per-stage dials.
func StyledHelpPrinter(options kong.HelpOptions) func(options kong.HelpOptions, ctx *kong.Context) error {
	return func(options kong.HelpOptions, ctx *kong.Context) error {
		var sb strings.Builder

		sb.WriteString(helpTitleStyle.Render("Voicemend 🎙"))
		sb.WriteString("\n")
		sb.WriteString(helpDescStyle.Render("Speech restoration for spoken-voice recordings"))
		sb.WriteString("\n")

		sb.WriteString(helpSectionStyle.Render("Usage:"))
		sb.WriteString(fmt.Sprintf("\n  %s [flags] <files> ...\n", ctx.Model.Name))

		if args := argumentEntries(ctx); len(args) > 0 {
			writeSection(&sb, "Arguments:", args, helpArgStyle)
		}

		titles, groups := flagSections(ctx)
		for _, title := range titles {
			writeSection(&sb, title, groups[title], helpFlagStyle)
		}

		sb.WriteString("\n")
		fmt.Fprint(ctx.Stdout, sb.String())
		return nil
	}
}

// writeSection renders one titled block with the left column aligned.
func writeSection(sb *strings.Builder, title string, entries []helpEntry, leftStyle lipgloss.Style) {
	width := 0
	for _, e := range entries {
		if len(e.left) > width {
			width = len(e.left)
		}
	}

	sb.WriteString("\n")
	sb.WriteString(helpSectionStyle.Render(title))
	sb.WriteString("\n")
	for _, e := range entries {
		pad := strings.Repeat(" ", width-len(e.left))
		sb.WriteString("  ")
		sb.WriteString(leftStyle.Render(e.left))
		if e.help != "" {
			sb.WriteString(pad)
			sb.WriteString("  ")
			sb.WriteString(e.help)
		}
		if e.trailer != "" {
			sb.WriteString(" ")
			sb.WriteString(helpDefaultStyle.Render(e.trailer))
		}
		sb.WriteString("\n")
	}
}

func argumentEntries(ctx *kong.Context) []helpEntry {
	var args []helpEntry
	for _, arg := range ctx.Model.Node.Positional {
		args = append(args, helpEntry{left: arg.Summary(), help: arg.Help})
	}
	return args
}

// flagSections buckets the flags by group tag, preserving declaration order
// of both groups and flags. Ungrouped flags come first under a plain title.
func flagSections(ctx *kong.Context) ([]string, map[string][]helpEntry) {
	const ungrouped = "Flags:"

	titles := []string{ungrouped}
	groups := map[string][]helpEntry{
		ungrouped: {{left: "-h, --help", help: "Show context-sensitive help."}},
	}

	for _, f := range ctx.Model.Node.Flags {
		if f.Name == "help" {
			continue
		}

		title := ungrouped
		if f.Group != nil {
			title = f.Group.Title
			if title == "" {
				title = f.Group.Key
			}
			title += ":"
		}
		if _, seen := groups[title]; !seen {
			titles = append(titles, title)
		}

		entry := helpEntry{left: flagSummary(f), help: f.Help}
		if def := f.FormatPlaceHolder(); def != "" {
			entry.trailer = "(default: " + def + ")"
		}
		groups[title] = append(groups[title], entry)
	}

	return titles, groups
}

// flagSummary renders the left column for one flag.
func flagSummary(f *kong.Flag) string {
	summary := "--" + f.Name
	if f.Short != 0 {
		summary = fmt.Sprintf("-%c, --%s", f.Short, f.Name)
	}
	if !f.IsBool() && f.PlaceHolder != "" {
		summary += "=" + strings.ToUpper(f.PlaceHolder)
	}
	return summary
}
