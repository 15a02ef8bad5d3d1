package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/scout/internal/state"
)

// renderHeader renders the status bar: source, stats, last change and
// connection state.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < wideLayout
	f := m.frame

	parts := []string{bg.Render("scout", styles.Logo)}

	source := string(f.Source)
	if source == "" {
		source = string(state.SourceLive)
	}
	parts = append(parts, styles.StatusStyle(source).Render(strings.ToUpper(source)))

	if f.Subject != "" {
		limit := 36
		if compact {
			limit = 16
		}
		parts = append(parts, bg.Render(truncateMiddle(f.Subject, limit), styles.Text))
	}

	if f.Source == state.SourceReplay && f.ReplayStatus != "" {
		parts = append(parts, styles.StatusStyle(f.ReplayStatus).Render(f.ReplayStatus))
	}

	if !f.HasView {
		if f.LastError != nil {
			parts = append(parts, bg.Render("Backend unreachable", styles.DangerText))
			parts = append(parts, bg.Render("Retrying...", styles.WarningText.Bold(true)))
		} else {
			parts = append(parts, bg.Render("Waiting for data...", styles.WarningText.Bold(true)))
		}
		return styles.Header.Width(m.width).MaxHeight(1).Render(bg.Join(parts, "  "))
	}

	stats := f.View.Stats
	parts = append(parts,
		bg.Render("Pages:", styles.MutedText)+bg.Spaces(1)+bg.Render(fmt.Sprintf("%d", stats.PageCount), styles.Text),
		bg.Render("Requests:", styles.MutedText)+bg.Spaces(1)+bg.Render(fmt.Sprintf("%d", stats.ExchangeCount), styles.Text),
	)

	if !f.LastChanged.IsZero() && !compact {
		ago := humanizeDuration(m.now().Sub(f.LastChanged))
		change := fmt.Sprintf("+%d %s +%d %s", f.LastDeltaPages, plural(f.LastDeltaPages, "page", "pages"),
			f.LastDeltaExchanges, plural(f.LastDeltaExchanges, "request", "requests"))
		parts = append(parts, bg.Render(change, styles.SuccessText)+bg.Spaces(1)+bg.Render(ago, styles.FaintText))
	}

	switch {
	case f.IsOffline():
		parts = append(parts, styles.StatusStyle("offline").Render("OFFLINE"))
	case f.LastError != nil:
		parts = append(parts, bg.Render("poll failed", styles.WarningText))
	}

	if !f.LastUpdated.IsZero() && !compact {
		parts = append(parts, bg.Render(f.LastUpdated.Format("15:04:05"), styles.MutedText))
	}

	return styles.Header.Width(m.width).MaxHeight(1).Render(bg.Join(parts, "  "))
}

// renderCommandBar renders the key hints for the current source.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	commands := []cmd{{"j/k", "Scroll"}, {"Tab", "Pane"}}
	if m.frame.Source == state.SourceReplay {
		toggle := "Stop"
		if m.frame.ReplayStatus != "running" {
			toggle = "Start"
		}
		commands = append(commands, cmd{"s", toggle}, cmd{"R", "Restart"})
	} else {
		commands = append(commands, cmd{"r", "Poll"})
	}
	followLabel := "Follow"
	if m.follow[m.focus] {
		followLabel = "Pause"
	}
	commands = append(commands, cmd{"Space", followLabel}, cmd{"T", m.theme.Name}, cmd{"?", "Help"}, cmd{"q", "Quit"})

	// Hints that do not fit are dropped from the end.
	colon := bg.Sep(":")
	segments := make([]string, 0, len(commands))
	used := 1
	for _, c := range commands {
		plain := len([]rune(c.key)) + 1 + len([]rune(c.desc))
		if len(segments) > 0 {
			plain += 2
		}
		if used+plain > m.width {
			break
		}
		used += plain
		segments = append(segments, bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}
	return bg.FillLine(" "+bg.Join(segments, "  "), m.width)
}

func (m Model) renderBody() string {
	treeW, treeH, actW, actH := m.paneSizes()
	treeBox := m.renderBox(m.treeTitle(), m.tree.View(), treeW, treeH, m.focus == PaneTree)
	actBox := m.renderBox("Activity", m.activity.View(), actW, actH, m.focus == PaneActivity)
	if m.width >= wideLayout {
		return lipgloss.JoinHorizontal(lipgloss.Top, treeBox, actBox)
	}
	return lipgloss.JoinVertical(lipgloss.Left, treeBox, actBox)
}

// renderBox draws a bordered pane of the given outer size with a title row.
func (m Model) renderBox(title, content string, width, height int, focused bool) string {
	styles := m.theme.Styles()
	border := m.theme.Border
	body := m.theme.SurfaceAlt
	if focused {
		border = m.theme.BorderFocus
		body = m.theme.FocusBg
	}

	titleStyle := styles.MutedText
	if focused {
		titleStyle = styles.AccentText.Bold(true)
	}
	inner := titleStyle.Render(truncateRight(title, width-2)) + "\n" + content

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(border)).
		Background(lipgloss.Color(body)).
		Width(max(width-2, 1)).
		Height(max(height-2, 1)).
		MaxHeight(max(height, 1)).
		Render(inner)
}

func (m Model) treeTitle() string {
	if !m.frame.HasView {
		return "Site tree"
	}
	stats := m.frame.View.Stats
	return fmt.Sprintf("Site tree (%d %s, %d %s)",
		stats.PageCount, plural(stats.PageCount, "page", "pages"),
		stats.ExchangeCount, plural(stats.ExchangeCount, "request", "requests"))
}

func (m Model) treeContent() string {
	if !m.frame.HasView {
		return "No observations yet."
	}
	lines := make([]string, len(m.frame.View.TreeLines))
	for i, line := range m.frame.View.TreeLines {
		lines[i] = truncateRight(line, m.tree.Width)
	}
	return strings.Join(lines, "\n")
}

func (m Model) activityContent() string {
	if len(m.frame.Activity) == 0 {
		return "No activity yet."
	}
	lines := make([]string, len(m.frame.Activity))
	for i, line := range m.frame.Activity {
		lines[i] = truncateRight(line, m.activity.Width)
	}
	return strings.Join(lines, "\n")
}

// renderHelp renders the help overlay from the key bindings.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()
	titles := []string{"Navigation", "Source", "General"}

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")

	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Warning)).Width(12)
	for i, group := range m.keys.FullHelp() {
		b.WriteString(styles.AccentText.Bold(true).Render(titles[i]))
		b.WriteString("\n")
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(keyStyle.Render(h.Key))
			b.WriteString(styles.Text.Render(h.Desc))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(styles.FaintText.Render("Press any key to close"))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.BorderFocus)).
		Padding(1, 2).
		Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
