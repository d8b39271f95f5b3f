package tui

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/keyscope/keyscope/internal/domain"
	"github.com/keyscope/keyscope/internal/domain/diff"
)

// ── warm palette ──
var (
	accent  = lipgloss.Color("#D97706") // amber
	fg      = lipgloss.Color("#E8E6E3") // warm light gray
	dim     = lipgloss.Color("#6B7280") // muted gray
	faint   = lipgloss.Color("#3F3F46") // very dim
	success = lipgloss.Color("#22C55E") // green
	danger  = lipgloss.Color("#EF4444") // red
	warning = lipgloss.Color("#F59E0B") // amber-yellow
	info    = lipgloss.Color("#8B949E") // soft blue-gray
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Align(lipgloss.Center)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 4).
			Align(lipgloss.Center).
			Width(68)

	dimStyle      = lipgloss.NewStyle().Foreground(dim)
	faintStyle    = lipgloss.NewStyle().Foreground(faint)
	passStyle     = lipgloss.NewStyle().Foreground(success)
	failStyle     = lipgloss.NewStyle().Foreground(danger)
	warnStyle     = lipgloss.NewStyle().Foreground(warning)
	errorTagStyle = lipgloss.NewStyle().Foreground(danger).Bold(true)
	warnTagStyle  = lipgloss.NewStyle().Foreground(warning).Bold(true)
	infoTagStyle  = lipgloss.NewStyle().Foreground(info)
	fileStyle     = lipgloss.NewStyle().Foreground(dim)
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(fg)
	metricStyle   = lipgloss.NewStyle().Bold(true).Foreground(fg)
	separatorLine = faintStyle.Render(strings.Repeat("─", 64))
)

// maxListed caps per-section item lists in the scan summary.
const maxListed = 10

// RenderScan formats a scan summary for terminal output.
func RenderScan(r *domain.ScanResult) string {
	var b strings.Builder
	m := r.Metrics

	title := headerStyle.Render("keyscope")
	subtitle := dimStyle.Render("Automation Key Coverage")
	keysLine := lipgloss.NewStyle().
		Bold(true).
		Foreground(percentColor(m.WidgetCoverage)).
		Render(fmt.Sprintf("%d keys", len(r.KeyUsages)))
	scope := dimStyle.Render(fmt.Sprintf("%s · %d/%d files · %dms", scopeName(r.Scope), m.ScannedFiles, m.TotalFiles, m.ScanDurationMs))

	b.WriteString(boxStyle.Render(title + "\n" + subtitle + "\n\n" + keysLine + "\n" + scope))
	b.WriteString("\n\n")

	renderCoverage(&b, "Files with keys", m.FileCoverage, m.FilesWithKeys, m.ScannedFiles)
	renderCoverage(&b, "Widgets with keys", m.WidgetCoverage, m.WidgetsWithKeys, m.WidgetsTotal)
	renderCoverage(&b, "Handlers with keys", m.HandlerCoverage, m.HandlersWithKeys, m.HandlersTotal)

	if m.IncrementalScan {
		line := "incremental since " + m.IncrementalBase
		if m.BaselineFiles > 0 {
			line += fmt.Sprintf(" (%d unchanged files from baseline)", m.BaselineFiles)
		}
		fmt.Fprintf(&b, "\n  %s\n", dimStyle.Render(line))
	}
	if m.CacheHits+m.CacheMisses > 0 {
		fmt.Fprintf(&b, "  %s\n", dimStyle.Render(fmt.Sprintf("dependency cache: %d hits, %d misses", m.CacheHits, m.CacheMisses)))
	}

	if len(m.DetectorHits) > 0 {
		b.WriteString("\n")
		b.WriteString("  " + titleStyle.Render("Detectors") + "\n")
		for _, name := range sortedNames(m.DetectorHits) {
			fmt.Fprintf(&b, "    %s %s\n", padRight(name, 24), dimStyle.Render(fmt.Sprintf("%d", m.DetectorHits[name])))
		}
	}

	b.WriteString("\n")
	b.WriteString("  " + separatorLine)
	b.WriteString("\n\n")

	if len(r.BlindSpots) > 0 || len(m.Errors) > 0 {
		b.WriteString("  " + titleStyle.Render("Issues") + "\n\n")
		for i, bs := range r.BlindSpots {
			if i == maxListed {
				fmt.Fprintf(&b, "    %s\n", faintStyle.Render(fmt.Sprintf("… %d more", len(r.BlindSpots)-maxListed)))
				break
			}
			renderIssue(&b, bs.Severity, bs.Location, bs.Message)
		}
		for i, e := range m.Errors {
			if i == maxListed {
				fmt.Fprintf(&b, "    %s\n", faintStyle.Render(fmt.Sprintf("… %d more errors", len(m.Errors)-maxListed)))
				break
			}
			renderIssue(&b, domain.SeverityError, e.File, e.Type+": "+e.Message)
		}
	} else {
		b.WriteString("  " + passStyle.Render("No blind spots found.") + "\n")
	}

	b.WriteString("\n")
	return b.String()
}

func renderCoverage(b *strings.Builder, name string, pct float64, covered, total int) {
	fmt.Fprintf(b, "  %s %s  %s %s\n",
		metricStyle.Render(padRight(name, 20)),
		coloredBar(pct, 20),
		lipgloss.NewStyle().Bold(true).Foreground(percentColor(pct)).Render(fmt.Sprintf("%5.1f%%", pct)),
		dimStyle.Render(fmt.Sprintf("%d/%d", covered, total)),
	)
}

// RenderDiff formats a baseline comparison.
func RenderDiff(d *domain.DiffResult) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("  " + titleStyle.Render("Key Changes") + "  ")
	b.WriteString(dimStyle.Render(fmt.Sprintf("drift %.1f%%", d.DriftPercentage())))
	b.WriteString("\n")
	b.WriteString("  " + separatorLine + "\n\n")

	if !d.HasChanges() {
		b.WriteString("  " + passStyle.Render(fmt.Sprintf("No changes (%d keys unchanged).", len(d.Unchanged))) + "\n\n")
		return b.String()
	}

	for _, k := range d.Added {
		fmt.Fprintf(&b, "    %s %s\n", passStyle.Render("+"), k)
	}
	for _, k := range d.Removed {
		fmt.Fprintf(&b, "    %s %s\n", failStyle.Render("-"), k)
	}
	for _, pair := range diff.SortedRenames(d) {
		fmt.Fprintf(&b, "    %s %s %s %s\n", warnStyle.Render("~"), pair[0], faintStyle.Render("→"), pair[1])
	}

	fmt.Fprintf(&b, "\n  %s\n\n", dimStyle.Render(fmt.Sprintf("%d added, %d removed, %d renamed, %d unchanged",
		len(d.Added), len(d.Removed), len(d.Renamed), len(d.Unchanged))))
	return b.String()
}

// RenderValidation formats a policy verdict.
func RenderValidation(v *domain.ValidationResult) string {
	var b strings.Builder

	verdict := passStyle.Bold(true).Render("PASSED")
	if !v.Passed() {
		verdict = failStyle.Bold(true).Render("FAILED")
	}
	s := v.Summary
	counts := dimStyle.Render(fmt.Sprintf("%d keys · %d lost · %d added · %d renamed · drift %.1f%%",
		s.TotalKeys, s.Lost, s.Added, s.Renamed, s.DriftPercentage))
	b.WriteString(boxStyle.Render(headerStyle.Render("keyscope validate") + "\n\n" + verdict + "\n" + counts))
	b.WriteString("\n\n")

	if len(v.Violations) > 0 {
		b.WriteString("  " + titleStyle.Render("Violations") + "  ")
		b.WriteString(errorTagStyle.Render(fmt.Sprintf("%d errors", len(v.Violations))))
		b.WriteString("\n\n")
		for _, vi := range v.Violations {
			where := ""
			if vi.Key != nil && vi.Key.LastSeen != nil {
				where = fmt.Sprintf("%s:%d", shortenPath(vi.Key.LastSeen.File), vi.Key.LastSeen.Line)
			}
			renderIssue(&b, vi.Severity, where, vi.Message)
			if vi.Remediation != "" {
				fmt.Fprintf(&b, "         %s\n", faintStyle.Render(vi.Remediation))
			}
		}
		b.WriteString("\n")
	}

	if len(v.Warnings) > 0 {
		b.WriteString("  " + titleStyle.Render("Warnings") + "\n\n")
		for _, w := range v.Warnings {
			renderIssue(&b, domain.SeverityWarning, "", w)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func renderIssue(b *strings.Builder, severity, file, message string) {
	tag := severityTag(severity)
	if file != "" {
		fmt.Fprintf(b, "    %s %s\n", tag, fileStyle.Render(shortenPath(file)))
		fmt.Fprintf(b, "         %s\n", dimStyle.Render(message))
	} else {
		fmt.Fprintf(b, "    %s %s\n", tag, dimStyle.Render(message))
	}
}

func severityTag(severity string) string {
	switch severity {
	case domain.SeverityError:
		return errorTagStyle.Render("error")
	case domain.SeverityWarning:
		return warnTagStyle.Render("warn ")
	default:
		return infoTagStyle.Render("info ")
	}
}

func coloredBar(pct float64, width int) string {
	filled := max(0, min(int(pct)*width/100, width))
	empty := width - filled

	color := percentColor(pct)
	filledStr := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled))
	emptyStr := lipgloss.NewStyle().Foreground(faint).Render(strings.Repeat("░", empty))
	return filledStr + emptyStr
}

func percentColor(pct float64) lipgloss.Color {
	switch {
	case pct >= 80:
		return success
	case pct >= 60:
		return lipgloss.Color("#A3E635") // lime
	case pct >= 40:
		return warning
	default:
		return danger
	}
}

func scopeName(s domain.Scope) string {
	if s == "" {
		return string(domain.ScopeWorkspace)
	}
	return string(s)
}

func sortedNames(m map[string]int) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func shortenPath(path string) string {
	if idx := strings.Index(path, "lib/"); idx >= 0 {
		return path[idx:]
	}
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) > 3 {
		return strings.Join(parts[len(parts)-3:], "/")
	}
	return path
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
