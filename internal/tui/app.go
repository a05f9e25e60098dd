// Package tui is a terminal preview of the slide rotation.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/marquee/internal/rotation"
	"github.com/mmcdole/marquee/internal/tui/styles"
)

const (
	frameInterval = 100 * time.Millisecond
	maxEventLog   = 6
)

// Model is the preview application state
type Model struct {
	ctx      context.Context
	coord    *rotation.Coordinator
	renderer *TerminalRenderer
	events   <-chan rotation.Event
	logger   *slog.Logger

	Width  int
	Height int

	Progress    progress.Model
	Help        help.Model
	FilterInput textinput.Model
	Filtering   bool
	Matches     []SlideMatch

	EventLog   []string
	StatusMsg  string
	StatusErr  bool
	HomeHidden bool
	Started    bool
}

// NewModel creates the preview model. events must be fed by a
// ChannelObserver subscribed to the coordinator's bus.
func NewModel(ctx context.Context, coord *rotation.Coordinator, renderer *TerminalRenderer, events <-chan rotation.Event, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "title"
	ti.CharLimit = 64

	return Model{
		ctx:         ctx,
		coord:       coord,
		renderer:    renderer,
		events:      events,
		logger:      logger,
		Progress:    progress.New(progress.WithGradient(string(styles.Accent), string(styles.AccentBlue)), progress.WithoutPercentage()),
		Help:        help.New(),
		FilterInput: ti,
	}
}

// Init starts the rotation and the frame ticker
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		StartCmd(m.ctx, m.coord),
		WaitForEventCmd(m.events),
		TickCmd(frameInterval),
	)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = max(10, msg.Width-8)
		m.Help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case TickMsg:
		return m, TickCmd(frameInterval)

	case StartedMsg:
		m.Started = true
		return m, nil

	case EventMsg:
		m.recordEvent(msg.Event)
		return m, WaitForEventCmd(m.events)

	case ErrMsg:
		m.logger.Error("preview error", "error", msg.Err, "context", msg.Context)
		m.StatusMsg = msg.Error()
		m.StatusErr = true
		return m, ClearStatusCmd(5 * time.Second)

	case ClearStatusMsg:
		m.StatusMsg = ""
		m.StatusErr = false
		return m, nil
	}
	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.Filtering {
		return m.handleFilterKey(msg)
	}

	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, Keys.Pause):
		if m.coord.Snapshot().Paused {
			m.coord.Resume(rotation.SourceAPI)
		} else {
			m.coord.Pause(rotation.SourceAPI)
		}

	case key.Matches(msg, Keys.Next):
		m.coord.Next()

	case key.Matches(msg, Keys.Prev):
		m.coord.Prev()

	case key.Matches(msg, Keys.Rebuild):
		if !m.coord.RequestRebuild(rotation.ReasonManual) {
			m.StatusMsg = "rebuild already in progress"
			return m, ClearStatusCmd(2 * time.Second)
		}

	case key.Matches(msg, Keys.Away):
		m.HomeHidden = !m.HomeHidden
		m.renderer.SetVisible(!m.HomeHidden)
		if m.HomeHidden {
			m.coord.NavigatedAway()
		} else {
			m.coord.NavigatedHome()
		}

	case key.Matches(msg, Keys.Filter):
		m.Filtering = true
		m.FilterInput.SetValue("")
		m.Matches = nil
		cmd := m.FilterInput.Focus()
		return m, cmd

	case key.Matches(msg, Keys.Help):
		m.Help.ShowAll = !m.Help.ShowAll
	}
	return m, nil
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, Keys.Escape):
		m.Filtering = false
		m.FilterInput.Blur()
		m.Matches = nil
		return m, nil

	case key.Matches(msg, Keys.Enter):
		m.Filtering = false
		m.FilterInput.Blur()
		if len(m.Matches) > 0 {
			m.coord.Jump(m.Matches[0].Index)
		}
		m.Matches = nil
		return m, nil
	}

	var cmd tea.Cmd
	m.FilterInput, cmd = m.FilterInput.Update(msg)
	m.Matches = filterSlides(m.FilterInput.Value(), m.renderer.Frame().Slides)
	return m, cmd
}

func (m *Model) recordEvent(e rotation.Event) {
	var line string
	switch ev := e.(type) {
	case rotation.EventSlideEntered:
		line = fmt.Sprintf("slide %d: %s", ev.Index+1, ev.Item.DisplayTitle())
	case rotation.EventSelectionDone:
		line = fmt.Sprintf("selected %d items (%s)", ev.Count, ev.Source)
	case rotation.EventRebuildStarted:
		line = "rebuild: " + ev.Reason
	case rotation.EventRebuildFinished:
		if ev.Err != nil {
			line = "rebuild failed: " + ev.Err.Error()
		} else {
			line = fmt.Sprintf("rebuilt with %d slides", ev.Slides)
		}
	case rotation.EventPaused:
		line = "paused by " + string(ev.Source)
	case rotation.EventResumed:
		line = "resumed by " + string(ev.Source)
	case rotation.EventCycleExpired:
		line = "cycle expired"
	default:
		return
	}
	m.EventLog = append(m.EventLog, line)
	if len(m.EventLog) > maxEventLog {
		m.EventLog = m.EventLog[len(m.EventLog)-maxEventLog:]
	}
}
