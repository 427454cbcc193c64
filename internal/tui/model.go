// Package tui provides the BubbleTea-based terminal user interface of notiqd.
// It renders presenter frames as a notification stack and hosts the detail
// screens that opened notifications navigate to.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/notiq/internal/display"
	"github.com/jmylchreest/notiq/internal/model"
	"github.com/jmylchreest/notiq/internal/navigation"
)

// Controller is the daemon side of user actions.
type Controller interface {
	Dismiss(id string)
	DismissAll()
	Open(id string) bool
	TogglePopups() (bool, error)
}

// Mode represents the current UI mode.
type Mode int

const (
	ModeStack Mode = iota
	ModeDetails
	ModeHelp
)

// itemLines is the number of rows one stacked notification occupies.
const itemLines = 3

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	priorityStyles = map[model.Priority]lipgloss.Style{
		model.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		model.PriorityNormal: lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
		model.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
)

// Model is the main TUI model.
type Model struct {
	host *Host
	ctrl Controller
	now  func() time.Time

	mode     Mode
	viewport viewport.Model
	help     help.Model
	keys     KeyMap

	frame    display.Frame
	frameSeq uint64
	cursor   int
	route    navigation.Route
	opened   *model.Notification
	width    int
	height   int
	ready    bool

	statusMsg string
	statusErr bool
}

// New creates a new TUI model.
func New(host *Host, ctrl Controller) Model {
	return Model{
		host: host,
		ctrl: ctrl,
		now:  time.Now,
		mode: ModeStack,
		help: help.New(),
		keys: DefaultKeyMap(),
	}
}

// Init picks up the frame rendered before the program started.
func (m Model) Init() tea.Cmd {
	return m.host.latest
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.viewport = viewport.New(msg.Width, max(msg.Height-4, 1))
		if m.mode == ModeDetails {
			m.viewport.SetContent(m.renderDetails())
		}
		if !m.ready {
			m.ready = true
			m.host.markReady()
		}
		return m, nil

	case frameMsg:
		if msg.seq <= m.frameSeq {
			return m, nil
		}
		m.frameSeq = msg.seq
		m.frame = msg.frame
		m.cursor = clamp(m.cursor, 0, len(m.frame.Items)-1)
		return m, nil

	case navigateMsg:
		m.route = navigation.Route{Screen: msg.screen, Params: msg.params}
		m.mode = ModeDetails
		m.viewport.SetContent(m.renderDetails())
		m.viewport.GotoTop()
		return m, nil

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil
	}

	if m.mode == ModeDetails {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		if m.mode == ModeHelp {
			m.mode = ModeStack
		} else {
			m.mode = ModeHelp
		}
		return m, nil
	}

	switch m.mode {
	case ModeStack:
		return m.handleStackKey(msg)
	case ModeDetails:
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeStack
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case ModeHelp:
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeStack
		}
	}
	return m, nil
}

// handleStackKey handles keys on the notification stack. Controller calls run
// as commands so the event loop never waits on the daemon.
func (m Model) handleStackKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.cursor = clamp(m.cursor-1, 0, len(m.frame.Items)-1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.cursor = clamp(m.cursor+1, 0, len(m.frame.Items)-1)
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		n, ok := m.selected()
		if !ok {
			return m, nil
		}
		ctrl := m.ctrl
		return m, func() tea.Msg {
			ctrl.Dismiss(n.ID)
			return statusMsg{text: "Dismissed " + n.Title}
		}

	case key.Matches(msg, m.keys.ClearAll):
		if m.frame.Queued == 0 {
			return m, nil
		}
		ctrl := m.ctrl
		return m, func() tea.Msg {
			ctrl.DismissAll()
			return statusMsg{text: "All notifications dismissed"}
		}

	case key.Matches(msg, m.keys.Open):
		n, ok := m.selected()
		if !ok {
			return m, nil
		}
		if _, routable := navigation.Resolve(n.Data); !routable {
			return m, func() tea.Msg {
				return statusMsg{text: "Nothing to open for " + n.Title, isErr: true}
			}
		}
		m.opened = &n
		ctrl := m.ctrl
		return m, func() tea.Msg {
			if !ctrl.Open(n.ID) {
				return statusMsg{text: "Notification already gone", isErr: true}
			}
			return nil
		}

	case key.Matches(msg, m.keys.TogglePopups):
		ctrl := m.ctrl
		return m, func() tea.Msg {
			enabled, err := ctrl.TogglePopups()
			if err != nil {
				return statusMsg{text: "Failed to save preference: " + err.Error(), isErr: true}
			}
			if enabled {
				return statusMsg{text: "Popups enabled"}
			}
			return statusMsg{text: "Popups disabled"}
		}
	}
	return m, nil
}

func (m Model) selected() (model.Notification, bool) {
	if m.cursor < 0 || m.cursor >= len(m.frame.Items) {
		return model.Notification{}, false
	}
	return m.frame.Items[m.cursor].Notification, true
}

// Mode returns the current UI mode.
func (m Model) Mode() Mode {
	return m.mode
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	switch m.mode {
	case ModeDetails:
		return m.viewDetails()
	case ModeHelp:
		return m.viewHelp()
	default:
		return m.viewStack()
	}
}

// viewStack places every item at its frame offset.
func (m Model) viewStack() string {
	rows := 0
	for _, item := range m.frame.Items {
		rows = max(rows, item.OffsetY+itemLines)
	}
	lines := make([]string, rows)

	for i, item := range m.frame.Items {
		block := m.renderItem(item, i == m.cursor)
		for j, line := range block {
			lines[item.OffsetY+j] = line
		}
	}

	var b strings.Builder
	if len(m.frame.Items) == 0 {
		b.WriteString(dimStyle.Render("No notifications"))
	} else {
		b.WriteString(strings.Join(lines, "\n"))
	}
	b.WriteString("\n\n")
	b.WriteString(m.summaryLine())
	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func (m Model) renderItem(item display.Item, selected bool) []string {
	n := item.Notification
	marker := "  "
	if selected {
		marker = cursorStyle.Render("> ")
	}

	title := titleStyle.Render(n.Title)
	if item.Index == 0 {
		title = headStyle.Render(n.Title)
	}

	meta := []string{priorityStyles[n.Data.Priority].Render(n.Data.Priority.String())}
	if n.Data.Source != "" {
		meta = append(meta, n.Data.Source)
	}
	meta = append(meta, humanize.RelTime(n.Timestamp, m.now(), "ago", "from now"))
	if !item.ExpiresAt.IsZero() {
		meta = append(meta, "hides "+humanize.RelTime(item.ExpiresAt, m.now(), "ago", "from now"))
	}

	width := m.width - 4
	if width < 10 {
		width = 10
	}
	return []string{
		marker + title,
		"  " + n.MessageTruncated(width),
		"  " + dimStyle.Render(strings.Join(meta, " · ")),
	}
}

func (m Model) summaryLine() string {
	parts := []string{fmt.Sprintf("%d queued", m.frame.Queued)}
	if m.frame.Hidden > 0 {
		parts = append(parts, fmt.Sprintf("%d hidden", m.frame.Hidden))
	}
	if m.frame.Suppressed > 0 {
		parts = append(parts, fmt.Sprintf("%d suppressed", m.frame.Suppressed))
	}
	return dimStyle.Render(strings.Join(parts, " · "))
}

func (m Model) footer() string {
	if m.statusMsg != "" {
		if m.statusErr {
			return errorStyle.Render(m.statusMsg)
		}
		return m.statusMsg
	}
	return m.help.View(m.keys)
}

func (m Model) viewDetails() string {
	header := headStyle.Padding(0, 1).Render(screenTitle(m.route.Screen))
	return header + "\n" + m.viewport.View() + "\n" + m.footer()
}

// renderDetails renders the body of a detail screen.
func (m Model) renderDetails() string {
	var b strings.Builder

	keys := make([]string, 0, len(m.route.Params))
	for k := range m.route.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(dimStyle.Render(k+": ") + m.route.Params[k] + "\n")
	}

	if n := m.opened; n != nil {
		b.WriteString("\n" + titleStyle.Render(n.Title) + "\n")
		if n.Message != "" {
			b.WriteString(n.Message + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("Received: ") + humanize.Time(n.Timestamp) + "\n")
		if n.Data.Source != "" {
			b.WriteString(dimStyle.Render("Source: ") + n.Data.Source + "\n")
		}
	}
	return b.String()
}

func screenTitle(screen string) string {
	switch screen {
	case navigation.ScreenProjectDetails:
		return "Project"
	case navigation.ScreenTaskDetails:
		return "Task"
	case navigation.ScreenIssueDetails:
		return "Issue"
	default:
		return screen
	}
}

func (m Model) viewHelp() string {
	title := headStyle.MarginBottom(1).Render("Keyboard Shortcuts")
	full := m.help
	full.ShowAll = true
	return title + "\n\n" + full.View(m.keys) + "\n\n" + dimStyle.Render("Press ? or esc to return")
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}

// RunOptions configures the TUI.
type RunOptions struct {
	Host       *Host
	Controller Controller
	AltScreen  bool
}

// Run starts the TUI and blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts RunOptions) error {
	host := opts.Host
	if host == nil {
		host = NewHost()
	}

	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.AltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}

	p := tea.NewProgram(New(host, opts.Controller), programOpts...)
	host.Attach(p)
	defer host.setSender(nil)

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
