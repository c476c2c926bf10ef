package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"qualflow/internal/driver"
)

// Event is one progress notification from a check run. Exactly one of
// Phase and Method is set.
type Event struct {
	Phase  *driver.PhaseEvent
	Method *driver.MethodEvent
}

// Sink adapts driver observers to an event channel. The channel must stay
// open until the run returns.
type Sink struct {
	Ch chan<- Event
}

// Install sets the phase and method observers of opts.
func (s Sink) Install(opts *driver.Options) {
	opts.PhaseObserver = func(ev driver.PhaseEvent) { s.Ch <- Event{Phase: &ev} }
	opts.MethodObserver = func(ev driver.MethodEvent) { s.Ch <- Event{Method: &ev} }
}

// recentMethods is how many finished methods the view lists.
const recentMethods = 8

type progressModel struct {
	title   string
	events  <-chan Event
	spinner spinner.Model
	prog    progress.Model
	phases  []phaseItem
	index   map[string]int
	recent  []driver.MethodEvent
	done    int
	total   int
	failed  int
	width   int
	closed  bool
}

type phaseItem struct {
	name    string
	status  string
	elapsed time.Duration
}

type eventMsg Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders check progress:
// the driver phases, a bar over analyzed methods and the latest methods.
func NewProgressModel(title string, phases []string, events <-chan Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]phaseItem, 0, len(phases))
	index := make(map[string]int, len(phases))
	for i, name := range phases {
		items = append(items, phaseItem{name: name, status: "queued"})
		index[name] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		phases:  items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.closed = true
		for i := range m.phases {
			if m.phases[i].status == "queued" {
				m.phases[i].status = "skipped"
			}
		}
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		if m.closed {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.total > 0 {
		header = fmt.Sprintf("%s (%d/%d methods)", header, m.done, m.total)
	}
	if m.failed > 0 {
		header = fmt.Sprintf("%s, %d with findings", header, m.failed)
	}
	if m.closed {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	const statusWidth = 12
	nameWidth := max(m.width-statusWidth-16, 20)
	for _, p := range m.phases {
		line := fmt.Sprintf("  %s %s", styleStatus(p.status).Render(fmt.Sprintf("%12s", p.status)), truncate(p.name, nameWidth))
		if p.elapsed > 0 {
			line += fmt.Sprintf(" %.1f ms", toMillis(p.elapsed))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(m.recent) > 0 {
		b.WriteString("\n")
		for _, ev := range m.recent {
			status := "ok"
			switch {
			case ev.Failed:
				status = "failed"
			case ev.Diagnostics > 0:
				status = fmt.Sprintf("%d diags", ev.Diagnostics)
			}
			fmt.Fprintf(&b, "  %s %s\n", styleStatus(status).Render(fmt.Sprintf("%12s", status)), truncate(ev.Name, nameWidth))
		}
	}

	b.WriteString("\n")
	if m.closed {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev Event) tea.Cmd {
	switch {
	case ev.Phase != nil:
		idx, ok := m.index[ev.Phase.Name]
		if !ok {
			m.index[ev.Phase.Name] = len(m.phases)
			m.phases = append(m.phases, phaseItem{name: ev.Phase.Name})
			idx = len(m.phases) - 1
		}
		if ev.Phase.Status == driver.PhaseStart {
			m.phases[idx].status = "running"
		} else {
			m.phases[idx].status = "done"
			m.phases[idx].elapsed = ev.Phase.Elapsed
		}
	case ev.Method != nil:
		mev := *ev.Method
		m.done, m.total = mev.Done, mev.Total
		if mev.Failed || mev.Diagnostics > 0 {
			m.failed++
		}
		m.recent = append(m.recent, mev)
		if len(m.recent) > recentMethods {
			m.recent = m.recent[len(m.recent)-recentMethods:]
		}
		if m.total > 0 {
			return m.prog.SetPercent(float64(m.done) / float64(m.total))
		}
	}
	return nil
}

func styleStatus(status string) lipgloss.Style {
	switch {
	case status == "done" || status == "ok":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case status == "failed":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case strings.HasSuffix(status, "diags"):
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	case status == "running":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
