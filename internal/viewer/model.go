// Package viewer runs the main loop as a bubbletea program: every tick drains
// the remote command queue once and re-renders the scene summary.
package viewer

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rbright/molview/internal/command"
	"github.com/rbright/molview/internal/frame"
	"github.com/rbright/molview/internal/scene"
)

// DefaultInterval is the tick period when none is configured.
const DefaultInterval = 16 * time.Millisecond

// maxListedLabels caps the label list so large systems stay readable.
const maxListedLabels = 24

type tickMsg time.Time

// Model is the bubbletea model wrapping one frame.Loop.
type Model struct {
	loop     *frame.Loop
	interval time.Duration
	theme    theme

	handled  int
	width    int
	savePath string
	status   string
}

// NewModel binds loop to a model ticking every interval.
func NewModel(loop *frame.Loop, interval time.Duration) Model {
	if loop == nil {
		loop = frame.NewLoop(nil, nil, nil)
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return Model{loop: loop, interval: interval, theme: defaultTheme()}
}

// WithSavePath enables the save key, writing the trajectory to path.
func (m Model) WithSavePath(path string) Model {
	m.savePath = path
	return m
}

// Init schedules the first tick.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles ticks and keys. It always runs on the program goroutine.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch t := msg.(type) {
	case tickMsg:
		m.handled += m.loop.Tick()
		return m, m.tick()
	case tea.WindowSizeMsg:
		m.width = t.Width
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(t)
	default:
		return m, nil
	}
}

func (m Model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.loop.Scene()
	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "right":
		st.NextFrame()
	case "left":
		st.PrevFrame()
	case "l":
		m.loop.Apply(command.Label{Delete: st.Labels()})
	case "s":
		m.status = m.save(st)
	}
	return m, nil
}

func (m Model) save(st *scene.State) string {
	if m.savePath == "" {
		return "no save path; start with serve --save FILE"
	}
	if err := st.SaveAs(m.savePath); err != nil {
		return "save failed: " + err.Error()
	}
	return fmt.Sprintf("saved %d frame(s) to %s", st.Len(), m.savePath)
}

// Status returns the last key-driven message.
func (m Model) Status() string { return m.status }

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Handled returns how many queued commands the model has dispatched.
func (m Model) Handled() int { return m.handled }

// View renders the scene summary.
func (m Model) View() string {
	return m.render(m.loop.Scene())
}

func (m Model) render(st *scene.State) string {
	th := m.theme
	var b strings.Builder

	if st.Empty() {
		b.WriteString(th.Header.Render("molview"))
		b.WriteString("\n")
		b.WriteString(th.Muted.Render("no molecule loaded; send one with `molview view FILE`"))
	} else {
		sum := st.Summary()
		title := sum.Title
		if strings.TrimSpace(title) == "" {
			title = "untitled"
		}
		b.WriteString(th.Header.Render(title))
		b.WriteString("\n")
		row := func(label, value string) {
			b.WriteString(th.Label.Render(label))
			b.WriteString(th.Value.Render(value))
			b.WriteString("\n")
		}
		row("frame", fmt.Sprintf("%d/%d", sum.Visible+1, sum.Frames))
		row("atoms", fmt.Sprintf("%d", sum.Atoms))
		row("bonds", fmt.Sprintf("%d", sum.Bonds))
		row("focus", fmt.Sprintf("(%.3f, %.3f, %.3f)", sum.Focus[0], sum.Focus[1], sum.Focus[2]))
		if sum.Labels {
			row("labels", th.On.Render("on"))
			b.WriteString(m.renderLabels(st))
		} else {
			row("labels", th.Off.Render("off"))
		}
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(th.Value.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(th.Muted.Render("←/→ frame · l labels · s save · q quit"))

	style := th.Frame
	if m.width > 4 {
		style = style.MaxWidth(m.width)
	}
	return style.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderLabels(st *scene.State) string {
	mol := st.Visible()
	if mol == nil {
		return ""
	}
	parts := make([]string, 0, min(len(mol.Atoms), maxListedLabels))
	for i, atom := range mol.Atoms {
		if i == maxListedLabels {
			parts = append(parts, m.theme.Muted.Render(fmt.Sprintf("… +%d", len(mol.Atoms)-maxListedLabels)))
			break
		}
		parts = append(parts, m.theme.Atom.Render(atom.Symbol)+mol.AtomLabel(i))
	}
	return lipgloss.NewStyle().PaddingLeft(2).Render(strings.Join(parts, " ")) + "\n"
}
