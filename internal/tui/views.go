package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/rotation"
	"github.com/mmcdole/marquee/internal/tui/styles"
)

// View renders the preview
func (m Model) View() string {
	width := m.Width
	if width <= 0 {
		width = 80
	}

	frame := m.renderer.Frame()
	snap := m.coord.Snapshot()

	var b strings.Builder
	b.WriteString(m.renderHeader(snap))
	b.WriteString("\n\n")

	switch {
	case m.HomeHidden:
		b.WriteString(styles.DimStyle.Render("Home view hidden. Press a to return."))
	case frame.Active < 0 || frame.Active >= len(frame.Slides):
		b.WriteString(styles.DimStyle.Render(emptyText(snap.State, m.Started)))
	default:
		b.WriteString(renderSlide(frame.Slides[frame.Active], width-4))
		b.WriteString("\n")
		b.WriteString(m.Progress.ViewAs(m.renderer.Fraction()))
		b.WriteString("\n")
		b.WriteString(renderDots(len(frame.Slides), frame.Active))
	}
	b.WriteString("\n\n")

	if m.Filtering {
		b.WriteString(m.renderFilter())
		b.WriteString("\n")
	}

	for _, line := range m.EventLog {
		b.WriteString(styles.DimStyle.Render("· " + line))
		b.WriteString("\n")
	}

	if m.StatusMsg != "" {
		style := styles.SubtitleStyle
		if m.StatusErr {
			style = styles.ErrorStyle
		}
		b.WriteString(style.Render(m.StatusMsg))
		b.WriteString("\n")
	}

	b.WriteString(m.Help.View(Keys))
	return b.String()
}

func (m Model) renderHeader(snap rotation.Snapshot) string {
	parts := []string{styles.TitleStyle.Render("marquee")}
	parts = append(parts, styles.DimBadgeStyle.Render(snap.State.String()))
	if snap.Paused {
		parts = append(parts, styles.PausedBadgeStyle.Render("paused: "+string(snap.PauseSource)))
	}
	if snap.PlannedTotal > 0 {
		parts = append(parts, styles.SubtitleStyle.Render(
			fmt.Sprintf("%d/%d  %.1fs left", snap.Index+1, snap.PlannedTotal, snap.Remaining.Seconds())))
	}
	if snap.CycleExpired {
		parts = append(parts, styles.BadgeStyle.Render("cycle expired"))
	}
	return strings.Join(parts, " ")
}

func emptyText(state rotation.State, started bool) string {
	switch {
	case !started:
		return "Selecting slides..."
	case state == rotation.StateRebuilding || state == rotation.StateSelecting || state == rotation.StateBuilding:
		return "Rebuilding..."
	default:
		return "Nothing to show. The catalog returned no matching items."
	}
}

func renderSlide(it domain.MediaItem, width int) string {
	title := styles.TitleStyle.Render(it.DisplayTitle())

	var meta []string
	if it.Year > 0 {
		meta = append(meta, fmt.Sprintf("%d", it.Year))
	}
	meta = append(meta, it.Type)
	if it.OfficialRating != "" {
		meta = append(meta, it.OfficialRating)
	}
	if it.CommunityRating > 0 {
		meta = append(meta, fmt.Sprintf("★ %.1f", it.CommunityRating))
	}

	body := []string{
		title + " " + renderWatchStatus(it.WatchStatus()),
		styles.SubtitleStyle.Render(strings.Join(meta, " · ")),
	}
	if it.Overview != "" {
		body = append(body, "", styles.OverviewStyle.Render(styles.Wrap(styles.Truncate(it.Overview, 400), max(20, width-6))))
	}
	return styles.SlideStyle.Width(max(20, width)).Render(lipgloss.JoinVertical(lipgloss.Left, body...))
}

func renderWatchStatus(s domain.WatchStatus) string {
	switch s {
	case domain.WatchStatusWatched:
		return styles.PlayedCheck
	case domain.WatchStatusInProgress:
		return styles.InProgressDot
	default:
		return styles.UnplayedDot
	}
}

func renderDots(total, active int) string {
	dots := make([]string, total)
	for i := range dots {
		if i == active {
			dots[i] = styles.DotActive
		} else {
			dots[i] = styles.DotInactive
		}
	}
	return strings.Join(dots, " ")
}

func (m Model) renderFilter() string {
	var b strings.Builder
	b.WriteString(styles.FilterPromptStyle.Render(m.FilterInput.View()))
	for i, match := range m.Matches {
		if i == 5 {
			break
		}
		b.WriteString("\n  ")
		b.WriteString(fmt.Sprintf("%2d ", match.Index+1))
		b.WriteString(highlight(match.Title, match.Matched))
	}
	return b.String()
}

// highlight styles the matched bytes of title
func highlight(title string, matched []int) string {
	if len(matched) == 0 {
		return title
	}
	set := make(map[int]bool, len(matched))
	for _, i := range matched {
		set[i] = true
	}
	var b strings.Builder
	for i, r := range title {
		if set[i] {
			b.WriteString(styles.MatchHighlightStyle.Render(string(r)))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
