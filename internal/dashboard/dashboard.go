// Package dashboard renders the console view of the swarm: aggregate
// metrics, the agent roster, and the recent decision trail. It is a passive
// renderer — callers pull state from the store and hand it in; nothing here
// mutates anything.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"overmind/internal/types"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BC34A")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#2196F3"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9E9E9E"))

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2a3850")).
			Padding(0, 1)
)

// Render produces the full dashboard for one pull of system state.
func Render(metrics types.SystemMetrics, agents []types.Agent, recent []types.DecisionRecord) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("overmind swarm"))
	sb.WriteString("\n")
	sb.WriteString(boxStyle.Render(renderMetrics(metrics)))
	sb.WriteString("\n")
	sb.WriteString(boxStyle.Render(renderAgents(agents)))
	sb.WriteString("\n")
	sb.WriteString(boxStyle.Render(renderDecisions(recent)))
	sb.WriteString("\n")
	return sb.String()
}

func renderMetrics(m types.SystemMetrics) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render("metrics"))
	sb.WriteString("\n")

	line := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("%-18s", label)))
		sb.WriteString(value)
		sb.WriteString("\n")
	}
	line("agents created", fmt.Sprintf("%d (%d active)", m.TotalAgentsCreated, m.ActiveAgents))
	line("decisions", fmt.Sprintf("%d (%d ok / %d failed)", m.TotalDecisions, m.SuccessfulActions, m.FailedActions))
	line("ledger ops", fmt.Sprintf("%d", m.TotalLedgerOps))
	line("avg cycle", fmt.Sprintf("%.0f ms", m.AverageCycleTimeMs))
	line("evolution score", fmt.Sprintf("%.2f", m.EvolutionScore))
	line("uptime", (time.Duration(m.UptimeSeconds) * time.Second).String())
	return strings.TrimRight(sb.String(), "\n")
}

func renderAgents(agents []types.Agent) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("agents (%d)", len(agents))))
	sb.WriteString("\n")

	if len(agents) == 0 {
		sb.WriteString(labelStyle.Render("none yet"))
		return sb.String()
	}

	table := newTable("ID", "ROLE", "STATUS", "PROGRESS", "OK/FAIL", "TASK")
	for i := range agents {
		a := &agents[i]
		task := a.Metadata.CurrentTask
		if task == "" {
			task = "-"
		}
		table.addRow(
			a.ID,
			string(a.Role),
			string(a.Status),
			fmt.Sprintf("%d%%", a.Metadata.Progress),
			fmt.Sprintf("%d/%d", a.Metadata.SuccessCount, a.Metadata.FailureCount),
			task,
		)
	}
	sb.WriteString(table.render())
	return strings.TrimRight(sb.String(), "\n")
}

func renderDecisions(recent []types.DecisionRecord) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("recent decisions (%d)", len(recent))))
	sb.WriteString("\n")

	if len(recent) == 0 {
		sb.WriteString(labelStyle.Render("none yet"))
		return sb.String()
	}

	for i := range recent {
		rec := &recent[i]
		marker := okStyle.Render("✓")
		if !rec.Result.Success {
			marker = failStyle.Render("✗")
		}
		sb.WriteString(fmt.Sprintf("%s %s %-20s %s\n",
			marker,
			rec.Decision.Timestamp.Format("15:04:05"),
			rec.Decision.Type,
			truncate(rec.Result.Outcome, 60)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderEvent formats one cycle event as a single status line, the shape the
// run command prints in verbose mode.
func RenderEvent(ev types.CycleEvent) string {
	var sb strings.Builder
	sb.WriteString(labelStyle.Render(fmt.Sprintf("cycle %d", ev.Cycle)))
	sb.WriteString(fmt.Sprintf(" %-8s", ev.Phase))
	if ev.Decision != nil {
		sb.WriteString(" " + string(ev.Decision.Type))
	}
	if ev.Result != nil {
		if ev.Result.Success {
			sb.WriteString(" " + okStyle.Render("ok"))
		} else {
			sb.WriteString(" " + failStyle.Render("failed"))
		}
	}
	if ev.Err != "" {
		sb.WriteString(" " + failStyle.Render(ev.Err))
	}
	return sb.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

// table is a minimal fixed-width text table.
type table struct {
	headers []string
	rows    [][]string
}

func newTable(headers ...string) *table {
	return &table{headers: headers}
}

func (t *table) addRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) render() string {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	var sb strings.Builder
	for i, h := range t.headers {
		sb.WriteString(labelStyle.Render(pad(h, widths[i])))
		sb.WriteString("  ")
	}
	sb.WriteString("\n")
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				sb.WriteString(pad(cell, widths[i]))
				sb.WriteString("  ")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func pad(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}
