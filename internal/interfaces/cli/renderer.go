// Package cli renders aoactl's output, adapted from the teacher's
// interfaces/cli renderer: lipgloss styles over plain structured data
// instead of tool-call/approval prompts.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/aoa-dev/aoa/sdk/aoaclient"
)

var (
	colorCyan   = lipgloss.Color("#00D7FF")
	colorGray   = lipgloss.Color("#6C6C6C")
	colorWhite  = lipgloss.Color("#FFFFFF")
	colorGreen  = lipgloss.Color("#00FF87")
	colorYellow = lipgloss.Color("#FFD75F")
	colorRed    = lipgloss.Color("#FF5F5F")
)

// Renderer formats aoactl command output for a terminal.
type Renderer struct {
	markdown *glamour.TermRenderer
}

// NewRenderer builds a Renderer, following the teacher's glamour setup for
// the one command (`domains report`) that renders a composed markdown
// document rather than a single structured value.
func NewRenderer() *Renderer {
	md, _ := glamour.NewTermRenderer(glamour.WithAutoStyle())
	return &Renderer{markdown: md}
}

// RenderReport builds and prints a markdown summary of the current domain
// learning state, the way a human operator would want before deciding
// whether to run `domains add`/`domains tune`.
func (r *Renderer) RenderReport(stats aoaclient.DomainsStats, orphans []string, metrics aoaclient.Metrics) {
	var b strings.Builder
	fmt.Fprintf(&b, "# AOA Observatory report\n\n")
	fmt.Fprintf(&b, "- **hit@5**: %.1f%% over %d evaluated predictions\n", metrics.HitAt5Pct*100, metrics.Evaluated)
	fmt.Fprintf(&b, "- **learning pending**: %v\n", stats.LearningPending)
	fmt.Fprintf(&b, "- **tuning pending**: %v\n", stats.TuningPending)
	fmt.Fprintf(&b, "- **tune count**: %d\n\n", stats.TuneCount)

	fmt.Fprintf(&b, "## Active domains (%d)\n\n", len(stats.Domains))
	for _, d := range stats.Domains {
		fmt.Fprintf(&b, "- `%s`: %s\n", d.Name, strings.Join(d.Terms, ", "))
	}

	fmt.Fprintf(&b, "\n## Orphan tags (%d)\n\n", len(orphans))
	for _, o := range orphans {
		fmt.Fprintf(&b, "- %s\n", o)
	}

	fmt.Println(r.render(b.String()))
}

func (r *Renderer) render(md string) string {
	if r.markdown == nil {
		return md
	}
	out, err := r.markdown.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}

// RenderError prints a one-line error in red.
func (r *Renderer) RenderError(msg string) {
	style := lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	fmt.Println(style.Render("✗ " + msg))
}

// RenderMetrics prints the tracker's rolling hit@5 summary.
func (r *Renderer) RenderMetrics(m aoaclient.Metrics) {
	labelStyle := lipgloss.NewStyle().Foreground(colorGray)
	valueStyle := lipgloss.NewStyle().Foreground(colorWhite).Bold(true)

	status := lipgloss.NewStyle().Foreground(colorGreen).Render("ready")
	if m.Calibrating {
		status = lipgloss.NewStyle().Foreground(colorYellow).Render("calibrating")
	}

	fmt.Printf("%s %s\n", labelStyle.Render("status      "), status)
	fmt.Printf("%s %s\n", labelStyle.Render("hit@5       "), valueStyle.Render(fmt.Sprintf("%.1f%%", m.HitAt5Pct*100)))
	fmt.Printf("%s %s\n", labelStyle.Render("evaluated   "), valueStyle.Render(fmt.Sprintf("%d", m.Evaluated)))
}

// RenderPredictions prints ranked candidates from /predict.
func (r *Renderer) RenderPredictions(files []aoaclient.PredictedFile) {
	if len(files) == 0 {
		fmt.Println(lipgloss.NewStyle().Foreground(colorGray).Render("no candidates"))
		return
	}

	pathStyle := lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	confStyle := lipgloss.NewStyle().Foreground(colorGreen)
	snippetStyle := lipgloss.NewStyle().Foreground(colorGray)

	for i, f := range files {
		fmt.Printf("%d. %s %s\n", i+1, pathStyle.Render(f.Path), confStyle.Render(fmt.Sprintf("(%.0f%%)", f.Confidence*100)))
		if f.Snippet != "" {
			for _, line := range strings.Split(f.Snippet, "\n") {
				fmt.Println(snippetStyle.Render("   " + line))
			}
		}
	}
}

// RenderDomains prints the active domain list.
func (r *Renderer) RenderDomains(domains []aoaclient.Domain) {
	if len(domains) == 0 {
		fmt.Println(lipgloss.NewStyle().Foreground(colorGray).Render("no active domains"))
		return
	}

	nameStyle := lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	termStyle := lipgloss.NewStyle().Foreground(colorWhite)
	staleStyle := lipgloss.NewStyle().Foreground(colorYellow)

	for _, d := range domains {
		line := fmt.Sprintf("%s %s", nameStyle.Render(d.Name), termStyle.Render(strings.Join(d.Terms, ", ")))
		if d.StaleCycles > 0 {
			line += " " + staleStyle.Render(fmt.Sprintf("(stale x%d)", d.StaleCycles))
		}
		fmt.Println(line)
		if !d.LastTouched.IsZero() {
			fmt.Println(lipgloss.NewStyle().Foreground(colorGray).Render("   last touched " + formatAge(d.LastTouched)))
		}
	}
}

// RenderTuneResult prints the outcome of a math-only tuning pass.
func (r *Renderer) RenderTuneResult(t aoaclient.TuneResult) {
	labelStyle := lipgloss.NewStyle().Foreground(colorGray)
	valueStyle := lipgloss.NewStyle().Foreground(colorWhite).Bold(true)

	status := lipgloss.NewStyle().Foreground(colorGreen).Render("ok")
	if !t.Success {
		status = lipgloss.NewStyle().Foreground(colorRed).Render("no-op")
	}

	fmt.Printf("%s %s\n", labelStyle.Render("result             "), status)
	fmt.Printf("%s %s\n", labelStyle.Render("terms pruned       "), valueStyle.Render(fmt.Sprintf("%d", t.TermsPruned)))
	fmt.Printf("%s %s\n", labelStyle.Render("domains active     "), valueStyle.Render(fmt.Sprintf("%d", t.DomainsActive)))
	fmt.Printf("%s %s\n", labelStyle.Render("domains flagged    "), valueStyle.Render(fmt.Sprintf("%d", t.DomainsFlaggedStale)))
	fmt.Printf("%s %s\n", labelStyle.Render("domains deprecated "), valueStyle.Render(fmt.Sprintf("%d", t.DomainsDeprecated)))
}

func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
