package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"netpiano"
	"netpiano/prefs"
)

// Terminals report key presses but never key releases, so a release is
// synthesized once no repeat arrived for holdWindow. Holding a key keeps
// extending the deadline through autorepeat.
const (
	holdWindow   = 300 * time.Millisecond
	tickInterval = 50 * time.Millisecond
	volumeStep   = 5
	logTail      = 5
	errsShown    = 3
)

type tickMsg time.Time

type stateMsg netpiano.ConnState

type clientErrMsg struct{ err error }

type resultMsg netpiano.PublishResult

type model struct {
	session *netpiano.Session
	prefs   *prefs.Prefs

	state     netpiano.ConnState
	releaseAt map[string]time.Time // binding -> synthesized release deadline
	errs      []string
	failed    int
	quitting  bool
}

func newModel(session *netpiano.Session, p *prefs.Prefs) model {
	return model{
		session:   session,
		prefs:     p,
		state:     session.Client().State(),
		releaseAt: make(map[string]time.Time),
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func listenStates(c *netpiano.Client) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-c.States()
		if !ok {
			return nil
		}
		return stateMsg(st)
	}
}

func listenErrors(c *netpiano.Client) tea.Cmd {
	return func() tea.Msg {
		err, ok := <-c.Errors()
		if !ok {
			return nil
		}
		return clientErrMsg{err}
	}
}

func listenResults(c *netpiano.Client) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-c.Results()
		if !ok {
			return nil
		}
		return resultMsg(res)
	}
}

func (m model) Init() tea.Cmd {
	c := m.session.Client()
	return tea.Batch(tick(), listenStates(c), listenErrors(c), listenResults(c))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "q", "ctrl+c":
			m.quitting = true
			m.session.ForceClear()
			return m, tea.Quit

		case "+", "=":
			m.setVolume(m.session.Keyboard().Volume() + volumeStep)

		case "-", "_":
			m.setVolume(m.session.Keyboard().Volume() - volumeStep)

		default:
			if _, ok := m.session.Catalog().ByBinding(key); ok {
				m.session.KeyDown(key)
				m.releaseAt[key] = time.Now().Add(holdWindow)
			}
		}

	case tickMsg:
		now := time.Time(msg)
		for binding, deadline := range m.releaseAt {
			if now.After(deadline) {
				m.session.KeyUp(binding)
				delete(m.releaseAt, binding)
			}
		}
		return m, tick()

	case tea.BlurMsg:
		// Releases can no longer be observed once the terminal loses focus.
		m.session.ForceClear()
		m.releaseAt = make(map[string]time.Time)

	case stateMsg:
		m.state = netpiano.ConnState(msg)
		return m, listenStates(m.session.Client())

	case clientErrMsg:
		m.errs = append(m.errs, msg.err.Error())
		if len(m.errs) > errsShown {
			m.errs = m.errs[len(m.errs)-errsShown:]
		}
		return m, listenErrors(m.session.Client())

	case resultMsg:
		if msg.Err != nil {
			m.failed++
		}
		return m, listenResults(m.session.Client())
	}

	return m, nil
}

func (m *model) setVolume(raw int) {
	v := m.session.SetVolume(raw)
	if err := m.prefs.SetVolume(v); err != nil {
		m.errs = append(m.errs, err.Error())
	}
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle        = lipgloss.NewStyle().Faint(true)
	errStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	naturalStyle    = lipgloss.NewStyle().Padding(0, 1)
	accidentalStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("12"))
	heldStyle       = lipgloss.NewStyle().Padding(0, 1).Reverse(true)
)

func (m model) View() string {
	if m.quitting {
		return ""
	}

	c := m.session.Client()
	header := headerStyle.Render(fmt.Sprintf("netpiano  topic:%s  vol:%3d  %s",
		c.Topic(), m.session.Keyboard().Volume(), m.state))

	var bindings, names []string
	for _, n := range m.session.Catalog().All() {
		style := naturalStyle
		if n.Accidental {
			style = accidentalStyle
		}
		if m.session.Keyboard().IsActive(n.ID) {
			style = heldStyle
		}
		bindings = append(bindings, style.Render(n.Binding))
		names = append(names, dimStyle.Render(fmt.Sprintf("%3s", n.DisplayName)))
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(strings.Join(bindings, ""))
	out.WriteString("\n")
	out.WriteString(strings.Join(names, ""))
	out.WriteString("\n\n")

	entries := m.session.Publisher().DebugLog()
	if len(entries) > logTail {
		entries = entries[len(entries)-logTail:]
	}
	for _, e := range entries {
		line := e.Message.String()
		if e.Err != nil {
			line += "  (dropped)"
		}
		out.WriteString(dimStyle.Render(line))
		out.WriteString("\n")
	}
	if m.failed > 0 {
		out.WriteString(errStyle.Render(fmt.Sprintf("%d publishes not acked", m.failed)))
		out.WriteString("\n")
	}
	for _, e := range m.errs {
		out.WriteString(errStyle.Render(e))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(dimStyle.Render("a..' play  +/- volume  q quit"))
	return out.String()
}
