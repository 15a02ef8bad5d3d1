package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/scout/internal/prefs"
	"github.com/five82/scout/internal/state"
)

// Controller lets key bindings act on whatever feeds the store. Any method
// may be a no-op for sources that do not support it.
type Controller interface {
	// Refresh asks for an immediate poll.
	Refresh()
	// Toggle starts a stopped replay or stops a running one.
	Toggle()
	// Restart resets the replay to its initial state and starts it.
	Restart()
}

// Pane identifies the focused pane.
type Pane int

const (
	PaneTree Pane = iota
	PaneActivity
)

const (
	defaultTick    = 250 * time.Millisecond
	wideLayout     = 100
	minActivityRow = 5
)

// Options configures the UI.
type Options struct {
	Store     *state.Store
	Control   Controller
	Tick      time.Duration
	ThemeName string
	PrefsPath string
}

// Model is the root Bubble Tea model for the dashboard.
type Model struct {
	store     *state.Store
	control   Controller
	prefsPath string
	tick      time.Duration
	keys      keyMap
	now       func() time.Time

	theme    Theme
	width    int
	height   int
	ready    bool
	focus    Pane
	showHelp bool

	frame  state.Frame
	follow [2]bool

	tree     viewport.Model
	activity viewport.Model
}

// New creates the dashboard model.
func New(opts Options) Model {
	tick := opts.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	themeName := opts.ThemeName
	if themeName == "" {
		themeName = prefs.DefaultTheme()
	}
	return Model{
		store:     opts.Store,
		control:   opts.Control,
		prefsPath: opts.PrefsPath,
		tick:      tick,
		keys:      defaultKeyMap(),
		now:       time.Now,
		theme:     GetTheme(themeName),
		follow:    [2]bool{false, true},
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.tick)}
	if m.store != nil {
		cmds = append(cmds, fetchFrameCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		m.refreshPanes()
		return m, nil

	case tickMsg:
		var cmds []tea.Cmd
		if m.store != nil {
			cmds = append(cmds, fetchFrameCmd(m.store))
		}
		cmds = append(cmds, tickCmd(m.tick))
		return m, tea.Batch(cmds...)

	case frameMsg:
		m.frame = state.Frame(msg)
		m.refreshPanes()
		return m, nil
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderBody())
	return b.String()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		if m.prefsPath != "" {
			_ = prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name})
		}
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		if m.focus == PaneTree {
			m.focus = PaneActivity
		} else {
			m.focus = PaneTree
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		if m.control != nil {
			m.control.Refresh()
		}
		return m, nil

	case key.Matches(msg, m.keys.Toggle):
		if m.control != nil {
			m.control.Toggle()
		}
		return m, nil

	case key.Matches(msg, m.keys.Restart):
		if m.control != nil {
			m.control.Restart()
		}
		return m, nil
	}

	return m.handleScrollKey(msg)
}

func (m Model) handleScrollKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	vp := m.focusedViewport()
	follow := m.follow[m.focus]

	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		follow = !follow
		if follow {
			vp.GotoBottom()
		}
	case key.Matches(msg, m.keys.Top):
		vp.GotoTop()
		follow = false
	case key.Matches(msg, m.keys.Bottom):
		vp.GotoBottom()
		follow = true
	case key.Matches(msg, m.keys.Down):
		vp.ScrollDown(1)
		follow = false
	case key.Matches(msg, m.keys.Up):
		vp.ScrollUp(1)
		follow = false
	case key.Matches(msg, m.keys.HalfPageDown):
		vp.HalfPageDown()
		follow = false
	case key.Matches(msg, m.keys.HalfPageUp):
		vp.HalfPageUp()
		follow = false
	case key.Matches(msg, m.keys.PageDown):
		vp.PageDown()
		follow = false
	case key.Matches(msg, m.keys.PageUp):
		vp.PageUp()
		follow = false
	default:
		return m, nil
	}

	m.follow[m.focus] = follow
	return m, nil
}

func (m *Model) focusedViewport() *viewport.Model {
	if m.focus == PaneActivity {
		return &m.activity
	}
	return &m.tree
}

// paneSizes returns the outer sizes of the tree and activity boxes.
func (m Model) paneSizes() (treeW, treeH, actW, actH int) {
	bodyH := m.height - 2 // header + command bar
	if bodyH < 2 {
		bodyH = 2
	}
	if m.width >= wideLayout {
		treeW = m.width * 3 / 5
		return treeW, bodyH, m.width - treeW, bodyH
	}
	actH = bodyH / 3
	if actH < minActivityRow {
		actH = minActivityRow
	}
	if actH > bodyH-2 {
		actH = bodyH / 2
	}
	return m.width, bodyH - actH, m.width, actH
}

// layout sizes both viewports to the inside of their boxes: two border
// rows plus one title row, two border columns.
func (m *Model) layout() {
	treeW, treeH, actW, actH := m.paneSizes()
	m.tree.Width, m.tree.Height = max(treeW-2, 1), max(treeH-3, 1)
	m.activity.Width, m.activity.Height = max(actW-2, 1), max(actH-3, 1)
}

func (m *Model) refreshPanes() {
	if !m.ready {
		return
	}
	m.tree.SetContent(m.treeContent())
	if m.follow[PaneTree] {
		m.tree.GotoBottom()
	}
	m.activity.SetContent(m.activityContent())
	if m.follow[PaneActivity] {
		m.activity.GotoBottom()
	}
}

// Messages

type tickMsg time.Time

type frameMsg state.Frame

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchFrameCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return frameMsg(store.Frame())
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
