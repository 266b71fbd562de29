package main

import (
	"os/user"
	"sync/atomic"

	"github.com/rezrov-go/zmachine/port"
)

// textMsg is a run of characters the story printed, tagged with which
// window it landed in. The
// driver goroutine sends these over outCh as they happen so the Bubble
// Tea model can append to its window buffers one message at a time,
// the same incremental-update shape as the teacher's textUpdateMessage
// (main.go).
type textMsg struct {
	window port.Window
	text   string
}

type cursorMsg struct {
	row, col int
}

type splitWindowMsg struct{ upperHeight int }
type setWindowMsg struct{ window port.Window }
type eraseWindowMsg struct{ window port.Window }
type eraseLineMsg struct{}
type textStyleMsg struct{ style port.TextStyle }
type colorMsg struct{ fg, bg port.Color }
type statusBarMsg struct {
	location   string
	score      int
	moves      int
	isTimeGame bool
}
type bufferModeMsg struct{ on bool }
type soundEffectMsg struct{ number, effect, volume int }

// channelScreen implements port.Screen by forwarding every call onto a
// message channel read by the Bubble Tea event loop, grounded on the
// teacher's outputChannel protocol (main.go's waitForInterpreter):
// the interpreter (here, the driver goroutine running vm.Engine.Step)
// never touches UI state directly, it only ever sends messages.
//
// ScreenSize and CursorPosition are answered locally rather than
// round-tripped through the channel: the terminal's width/height is
// cached from the last tea.WindowSizeMsg via atomic ints, and the
// cursor position is tracked here exactly as the engine last set it,
// since nothing else ever moves it.
type channelScreen struct {
	out chan<- any

	width, height int64 // updated by setSize from the Bubble Tea WindowSizeMsg handler

	row, col int
}

func newChannelScreen(out chan<- any) *channelScreen {
	return &channelScreen{out: out, width: 80, height: 24}
}

func (s *channelScreen) setSize(w, h int) {
	atomic.StoreInt64(&s.width, int64(w))
	atomic.StoreInt64(&s.height, int64(h))
}

func (s *channelScreen) Print(text string) {
	s.out <- textMsg{window: port.LowerWindow, text: text}
}

func (s *channelScreen) PrintUpper(row, col int, text string) {
	s.row, s.col = row, col
	s.out <- cursorMsg{row: row, col: col}
	s.out <- textMsg{window: port.UpperWindow, text: text}
}

func (s *channelScreen) SplitWindow(upperHeight int) {
	s.out <- splitWindowMsg{upperHeight: upperHeight}
}

func (s *channelScreen) SetWindow(w port.Window) {
	s.out <- setWindowMsg{window: w}
}

func (s *channelScreen) EraseWindow(w port.Window) {
	s.out <- eraseWindowMsg{window: w}
}

func (s *channelScreen) EraseLine() {
	s.out <- eraseLineMsg{}
}

func (s *channelScreen) SetCursor(row, col int) {
	s.row, s.col = row, col
	s.out <- cursorMsg{row: row, col: col}
}

func (s *channelScreen) CursorPosition() (row, col int) {
	return s.row, s.col
}

func (s *channelScreen) SetTextStyle(style port.TextStyle) {
	s.out <- textStyleMsg{style: style}
}

func (s *channelScreen) SetColor(fg, bg port.Color) {
	s.out <- colorMsg{fg: fg, bg: bg}
}

func (s *channelScreen) ShowStatus(location string, score, moves int, isTimeGame bool) {
	s.out <- statusBarMsg{location: location, score: score, moves: moves, isTimeGame: isTimeGame}
}

func (s *channelScreen) SetBufferMode(on bool) {
	s.out <- bufferModeMsg{on: on}
}

func (s *channelScreen) ScreenSize() (rows, cols int) {
	return int(atomic.LoadInt64(&s.height)), int(atomic.LoadInt64(&s.width))
}

func (s *channelScreen) SoundEffect(number, effect, volume int) {
	s.out <- soundEffectMsg{number: number, effect: effect, volume: volume}
}

func (s *channelScreen) PlayerLoginName() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}
