package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/rezrov-go/zmachine/port"
	"github.com/rezrov-go/zmachine/vm"
)

type appState int

const (
	stateRunning appState = iota
	stateWaitingLine
	stateWaitingChar
)

// model is the Bubble Tea program driving a single story, grounded on
// main.go's runStoryModel but with the upper/lower window buffers kept
// as plain strings/rows rather than per-cell styled runs, and with no
// save/restore round trip to the UI (the driver goroutine owns the
// BlobStore directly).
type model struct {
	engine *vm.Engine

	outCh   chan any
	inputCh chan inputResponseMsg

	lowerText string
	upperRows []string

	statusLocation string
	statusScore    int
	statusMoves    int
	statusIsTime   bool

	width, height int
	appState      appState
	inputBox      textinput.Model

	runtimeErr string

	screen *channelScreen

	backgroundStyle lipgloss.Style
	statusBarStyle  lipgloss.Style
}

func newModel(e *vm.Engine, screen *channelScreen, outCh chan any, inputCh chan inputResponseMsg) *model {
	ti := textinput.New()
	ti.Focus()
	ti.Prompt = ""
	ti.CharLimit = 255

	return &model{
		engine:          e,
		outCh:           outCh,
		inputCh:         inputCh,
		screen:          screen,
		appState:        stateRunning,
		inputBox:        ti,
		backgroundStyle: lipgloss.NewStyle(),
		statusBarStyle:  lipgloss.NewStyle().Reverse(true),
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(waitForMessage(m.outCh), tea.WindowSize())
}

func waitForMessage(ch <-chan any) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.screen.setSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.appState {
		case stateWaitingChar:
			m.appState = stateRunning
			r := rune(0)
			switch {
			case len(msg.Runes) > 0:
				r = msg.Runes[0]
			case msg.Type == tea.KeyEnter:
				r = 13
			}
			m.inputCh <- inputResponseMsg{char: r}
			return m, waitForMessage(m.outCh)
		case stateWaitingLine:
			if msg.Type == tea.KeyEnter {
				line := m.inputBox.Value()
				m.lowerText += line + "\n"
				m.inputBox.SetValue("")
				m.appState = stateRunning
				m.inputCh <- inputResponseMsg{line: line}
				return m, waitForMessage(m.outCh)
			}
		}

	case textMsg:
		if msg.window == port.LowerWindow {
			m.lowerText += msg.text
		} else {
			m.appendUpper(msg.text)
		}
		return m, waitForMessage(m.outCh)

	case splitWindowMsg:
		n := msg.upperHeight
		switch {
		case n < len(m.upperRows):
			m.upperRows = m.upperRows[:n]
		default:
			for len(m.upperRows) < n {
				m.upperRows = append(m.upperRows, "")
			}
		}
		return m, waitForMessage(m.outCh)

	case eraseWindowMsg:
		switch msg.window {
		case port.LowerWindow:
			m.lowerText = ""
		case port.UpperWindow:
			for i := range m.upperRows {
				m.upperRows[i] = ""
			}
		}
		return m, waitForMessage(m.outCh)

	case statusBarMsg:
		m.statusLocation = msg.location
		m.statusScore = msg.score
		m.statusMoves = msg.moves
		m.statusIsTime = msg.isTimeGame
		return m, waitForMessage(m.outCh)

	case cursorMsg, eraseLineMsg, textStyleMsg, colorMsg, bufferModeMsg, soundEffectMsg, setWindowMsg:
		return m, waitForMessage(m.outCh)

	case inputRequestMsg:
		if msg.req.Kind == port.InputChar {
			m.appState = stateWaitingChar
		} else {
			m.appState = stateWaitingLine
			m.inputBox.SetValue(msg.req.Prefill)
		}
		return m, nil

	case restartedMsg:
		m.lowerText = ""
		for i := range m.upperRows {
			m.upperRows[i] = ""
		}
		m.appState = stateRunning
		return m, waitForMessage(m.outCh)

	case runtimeErrorMsg:
		m.runtimeErr = msg.err.Error()
		return m, tea.Quit

	case quitMsg:
		return m, tea.Quit
	}

	var cmd tea.Cmd
	if m.appState == stateWaitingLine {
		m.inputBox, cmd = m.inputBox.Update(msg)
	}
	return m, cmd
}

// appendUpper writes text at the cursor the screen last reported,
// growing the row slice as needed; a TERSE stand-in for the teacher's
// full per-cell styled-run tracking (main.go's upperWindowText/
// upperWindowStyle), traded for simplicity since status/location text
// is the only upper-window content most v3 games ever print.
func (m *model) appendUpper(text string) {
	row := m.screen.row
	if row < 0 {
		return
	}
	for len(m.upperRows) <= row {
		m.upperRows = append(m.upperRows, "")
	}
	m.upperRows[row] += text
}

func (m *model) View() string {
	if m.runtimeErr != "" {
		return fmt.Sprintf("Z-machine error: %s\n", m.runtimeErr)
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var b strings.Builder
	lowerHeight := m.height

	if m.statusLocation != "" {
		b.WriteString(m.statusBarStyle.Render(statusLine(m.width, m.statusLocation, m.statusScore, m.statusMoves, m.statusIsTime)))
		b.WriteString("\n")
		lowerHeight -= 2
	} else {
		for _, row := range m.upperRows {
			b.WriteString(row)
			b.WriteString("\n")
		}
		lowerHeight -= len(m.upperRows)
	}

	wrapped := wordwrap.String(m.lowerText, m.width)
	lines := strings.Split(wrapped, "\n")
	if len(lines) > lowerHeight-1 {
		lines = lines[len(lines)-lowerHeight+1:]
	}
	b.WriteString(strings.Join(lines, "\n"))

	if m.appState == stateWaitingLine {
		b.WriteString("\n" + m.inputBox.View())
	}

	return m.backgroundStyle.Width(m.width).Height(m.height).Render(b.String())
}

func statusLine(width int, place string, score, moves int, isTime bool) string {
	rhs := fmt.Sprintf("Score: %d    Moves: %d", score, moves)
	if isTime {
		rhs = fmt.Sprintf("Time: %02d:%02d", score, moves)
	}
	if len(rhs) >= width {
		return rhs[:width]
	}
	if len(place)+len(rhs)+1 >= width {
		return fmt.Sprintf("%s %s", place[:width-len(rhs)-1], rhs)
	}
	pad := width - len(place) - len(rhs)
	return place + strings.Repeat(" ", pad) + rhs
}
