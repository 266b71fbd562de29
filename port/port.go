// Package port defines the narrow interfaces between the interpreter and
// the outside world: a Screen that the vm package draws on, an Input
// reader interface, and a BlobStore that hosts use for save/restore data.
// Keeping these as small interfaces lets cmd/zvm supply a terminal Screen
// while tests supply an in-memory fake, per spec.md section 5.9's ports
// boundary (grounded on the teacher's main.go channel-message union and
// zmachine/savestates.go's SaveRestoreResponse marker-interface idiom).
package port

// Window identifies one of the two Z-machine text windows (spec.md
// section 5.6); v6's multi-window model is out of scope (Non-goals).
type Window int

const (
	LowerWindow Window = 0
	UpperWindow Window = 1
)

// TextStyle bit flags, per spec.md section 5.6.
type TextStyle uint8

const (
	StyleRoman    TextStyle = 0
	StyleReverse  TextStyle = 1 << 0
	StyleBold     TextStyle = 1 << 1
	StyleItalic   TextStyle = 1 << 2
	StyleFixed    TextStyle = 1 << 3
)

// Color is a Z-machine colour number (0-12, see spec.md section 5.6) or
// a 15-bit true colour value when TrueColour is set.
type Color struct {
	Number     uint16
	TrueColour bool
	RGB15      uint16
}

// Screen is the output surface the engine writes through. Every method
// is synchronous from the engine's point of view; a terminal
// implementation is free to batch these into a render loop internally.
type Screen interface {
	Print(s string)
	PrintUpper(row, col int, s string)
	SplitWindow(upperHeight int)
	SetWindow(w Window)
	EraseWindow(w Window)
	EraseLine()
	SetCursor(row, col int)
	CursorPosition() (row, col int)
	SetTextStyle(style TextStyle)
	SetColor(fg, bg Color)
	ShowStatus(location string, score int, moves int, isTimeGame bool)
	SetBufferMode(on bool)
	ScreenSize() (rows, cols int)
	SoundEffect(number, effect, volume int)
	PlayerLoginName() string
}

// InputRequest describes what kind of blocking read the engine needs.
type InputRequest struct {
	Kind        InputKind
	MaxLength   int
	TimeTenths  int // 0 = no timeout
	Prefill     string
}

type InputKind int

const (
	InputLine InputKind = iota
	InputChar
)

// Input is a blocking line/character reader. ReadLine/ReadChar may
// return ErrTimedOut if req.TimeTenths elapses first. vm.Engine does not
// call this interface: it suspends with SuspendInput and is resumed
// through ResumeWithLine/ResumeWithChar, and a host reports an elapsed
// timeout by calling Engine.FireTimeout (spec.md section 5.7).
type Input interface {
	ReadLine(req InputRequest) (string, error)
	ReadChar(req InputRequest) (rune, error)
}

// ErrTimedOut is returned by Input implementations when a timed read's
// deadline elapses before the player supplies input.
var ErrTimedOut = timedOutError{}

type timedOutError struct{}

func (timedOutError) Error() string { return "port: timed input deadline elapsed" }

// BlobStore persists and retrieves named byte blobs: Quetzal save
// files, the transcript stream, and command-log playback, per spec.md
// section 6.
type BlobStore interface {
	Save(name string, data []byte) error
	Load(name string) ([]byte, error)
	Append(name string, data []byte) error
}
