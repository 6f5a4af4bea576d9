// Package render formats registry and dispatch results for terminal output.
// Both the cobra commands and the interactive shell draw through it.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/arsenal-framework/arsenal/internal/dispatch"
	"github.com/arsenal-framework/arsenal/internal/modules"
	"github.com/arsenal-framework/arsenal/internal/options"
	"github.com/arsenal-framework/arsenal/internal/registry"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// Result renders a dispatch result into user-facing text.
func Result(res dispatch.Result) string {
	switch res.Kind {
	case dispatch.KindListing:
		if len(res.Descriptors) == 0 {
			return dimStyle.Render(fmt.Sprintf("no modules under %q", res.Query))
		}
		title := "Modules"
		if res.Query != "" {
			title = fmt.Sprintf("Modules under %s", res.Query)
		}
		return Listing(title, res.Descriptors)
	case dispatch.KindSearch:
		if len(res.Descriptors) == 0 {
			return dimStyle.Render(fmt.Sprintf("no modules matching %q", res.Query))
		}
		return Listing(fmt.Sprintf("Search results for %q", res.Query), res.Descriptors)
	case dispatch.KindLoaded:
		var b strings.Builder
		fmt.Fprintf(&b, "%s %s\n", okStyle.Render("loaded:"), titleStyle.Render(res.Descriptor.ID))
		b.WriteString(dimStyle.Render(res.Descriptor.Description))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("next: show options, set <opt> <val>, run"))
		return b.String()
	case dispatch.KindOptionSet:
		return okStyle.Render(res.Message)
	case dispatch.KindSnapshot:
		return OptionsTable(res.Snapshot)
	case dispatch.KindInfo:
		return Info(res.Descriptor, res.State, res.Snapshot)
	case dispatch.KindOutcome:
		return Outcome(res.Outcome)
	case dispatch.KindMessage, dispatch.KindHelp:
		return res.Message
	default:
		return ""
	}
}

// Error renders a dispatch failure.
func Error(err error) string {
	return errStyle.Render("error: ") + err.Error()
}

// Listing renders descriptors as a table.
func Listing(title string, descs []modules.Descriptor) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	tw := tablewriter.NewWriter(&b)
	tw.SetHeader([]string{"ID", "Name", "CVE", "Description"})
	tw.SetBorder(false)
	tw.SetAutoWrapText(false)
	for _, d := range descs {
		cve := d.CVE
		if cve == "" {
			cve = "-"
		}
		tw.Append([]string{d.ID, d.Name, cve, truncate(d.Description, 60)})
	}
	tw.Render()
	return b.String()
}

// OptionsTable renders an option snapshot, masking sensitive values.
func OptionsTable(entries []options.Entry) string {
	var b strings.Builder
	tw := tablewriter.NewWriter(&b)
	tw.SetHeader([]string{"Option", "Value", "Required", "Type", "Description"})
	tw.SetBorder(false)
	tw.SetAutoWrapText(false)
	for _, e := range entries {
		required := "no"
		if e.Required {
			required = "yes"
		}
		tw.Append([]string{e.Name, e.DisplayValue(), required, string(e.Type), truncate(e.Description, 50)})
	}
	tw.Render()
	return b.String()
}

// Info renders a descriptor with lifecycle state and option snapshot.
func Info(d modules.Descriptor, state modules.State, entries []options.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s\n\n", titleStyle.Render(d.Name), d.Description)
	fmt.Fprintf(&b, "  id:       %s\n", d.ID)
	if d.CVE != "" {
		fmt.Fprintf(&b, "  cve:      %s\n", d.CVE)
	}
	fmt.Fprintf(&b, "  category: %s\n", d.Category)
	fmt.Fprintf(&b, "  author:   %s\n", d.Author)
	fmt.Fprintf(&b, "  state:    %s\n\n", state)
	if len(entries) > 0 {
		b.WriteString(OptionsTable(entries))
	} else {
		b.WriteString(dimStyle.Render("no configurable options"))
	}
	return b.String()
}

// Outcome renders a module execution outcome.
func Outcome(out modules.Outcome) string {
	var b strings.Builder
	if out.Success {
		b.WriteString(okStyle.Render("module executed successfully"))
	} else {
		b.WriteString(errStyle.Render("module completed without success"))
	}
	if out.Summary != "" {
		b.WriteString("\n" + out.Summary)
	}
	if len(out.Data) > 0 {
		keys := make([]string, 0, len(out.Data))
		for k := range out.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %v\n", k, out.Data[k])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// StatsText renders registry statistics for the info command.
func StatsText(s registry.Stats) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Registry statistics"))
	fmt.Fprintf(&b, "\n  total modules: %d\n  cve modules:   %d\n\n", s.Total, s.CVEs)
	cats := make([]string, 0, len(s.ByCategory))
	for c := range s.ByCategory {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		fmt.Fprintf(&b, "  %-14s %d\n", c, s.ByCategory[c])
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
