package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/diffusim/internal/storage"
)

// Report renders the run header, one row per parameter and the fit
// diagnostics.
func Report(meta *storage.RunMetadata) string {
	var b strings.Builder

	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%s  %s", meta.ID, meta.Model)))
	b.WriteString("\n")
	b.WriteString(field("kind", meta.Kind))
	b.WriteString(field("seed", fmt.Sprint(meta.Seed)))
	if meta.Temperature > 0 {
		b.WriteString(field("temperature", fmt.Sprintf("%g K", meta.Temperature)))
	}
	if meta.Source != "" {
		b.WriteString(field("source", meta.Source))
	}
	if !meta.Timestamp.IsZero() {
		b.WriteString(field("created", meta.Timestamp.Format("2006-01-02 15:04:05")))
	}
	if meta.Curve != nil && len(meta.Curve.Mean) > 1 {
		b.WriteString(field("msd", Sparkline(meta.Curve.Mean, 30)))
	}

	if len(meta.Params) > 0 {
		b.WriteString("\n")
		b.WriteString(Panel.Render(paramTable(meta.Params)))
		b.WriteString("\n")
	}

	if len(meta.Metrics) > 0 {
		b.WriteString("\n")
		keys := make([]string, 0, len(meta.Metrics))
		for k := range meta.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := fmt.Sprintf("%.4g", meta.Metrics[k])
			if k == "retries" && meta.Metrics[k] > 0 {
				v = Warn.Render(v)
			}
			b.WriteString(field(k, v))
		}
	}
	return b.String()
}

func field(label, value string) string {
	return fmt.Sprintf("%s %s\n", MetricLabel.Render(fmt.Sprintf("%-20s", label)), MetricValue.Render(value))
}

func paramTable(params []storage.ParamSummary) string {
	header := []string{"param", "unit", "max-lik", "median", "2.5%", "97.5%"}
	rows := [][]string{header}
	for _, p := range params {
		rows = append(rows, []string{
			p.Name,
			p.Unit,
			fmt.Sprintf("%.5g", p.MaxLikelihood),
			fmt.Sprintf("%.5g", p.Median),
			fmt.Sprintf("%.5g", p.Lower),
			fmt.Sprintf("%.5g", p.Upper),
		})
	}

	widths := make([]int, len(header))
	for _, r := range rows {
		for i, cell := range r {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	lines := make([]string, len(rows))
	for i, r := range rows {
		cells := make([]string, len(r))
		for j, cell := range r {
			cells[j] = fmt.Sprintf("%-*s", widths[j], cell)
		}
		line := strings.Join(cells, "  ")
		if i == 0 {
			line = Title.Render(line)
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}
