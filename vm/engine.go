package vm

import (
	"fmt"
	"math/rand"

	"github.com/rezrov-go/zmachine/dictionary"
	"github.com/rezrov-go/zmachine/parser"
	"github.com/rezrov-go/zmachine/port"
	"github.com/rezrov-go/zmachine/zcore"
	"github.com/rezrov-go/zmachine/zobject"
	"github.com/rezrov-go/zmachine/zstring"
)

// SuspendReason tags why Step returned control to the caller instead of
// running to completion or a fatal error, per spec.md section 5.7's
// suspend/resume model (REDESIGN FLAGS: an explicit two-call protocol,
// not a blocking channel receive).
type SuspendReason int

const (
	SuspendNone SuspendReason = iota
	SuspendInput
	SuspendSaveGame
	SuspendRestoreGame
	SuspendQuit
	SuspendRestart
)

// StepResult reports what the engine did or needs before it can make
// further progress.
type StepResult struct {
	Suspend  SuspendReason
	InputReq port.InputRequest

	// Warnings carries any non-fatal diagnostics raised while executing
	// this Step (e.g. stack underflow recovered by returning 0). Callers
	// may surface these to the player or a log; the run is not aborted.
	Warnings []string
}

// Engine is the fetch-decode-execute loop plus the suspend points for
// blocking input and save/restore, grounded on the teacher's
// zmachine.ZMachine/StepMachine (the per-opcode switch has been split
// into the opcode tables in opcodes_*.go per spec.md section 5's
// function-pointer dispatch design).
type Engine struct {
	State   *GameState
	Screen  port.Screen
	decoder *Decoder

	pendingInput    *pendingInput
	interruptRoutine uint32 // nonzero while a timed-input interrupt is outstanding
	interruptResult  bool   // not set anywhere; callInterruptRoutine captures the result through GameState.interruptReturnValue

	lastSaveOrRestoreAddr uint32 // address of the paused save/restore instruction, for ResumeAfterSave/ResumeAfterRestore
	undoStack             []Snapshot

	origDynamicMemory []byte // dynamic memory as loaded, before any player action; the RESTART reset target and the Quetzal CMem XOR baseline
	initialPC         uint32
}

const maxUndoDepth = 10

type pendingInput struct {
	inst       Instruction
	req        port.InputRequest
	textBuffer uint32
	parseBuffer uint32
	version    uint8
}

// New builds an Engine over an already-loaded story image.
func New(mem *zcore.Memory, screen port.Screen, seed int64) (*Engine, error) {
	hdr := mem.Header()

	var alphabets *zstring.Alphabets
	if hdr.AlphabetTableAddr != 0 {
		raw, err := mem.Slice(uint32(hdr.AlphabetTableAddr), uint32(hdr.AlphabetTableAddr)+78)
		if err != nil {
			return nil, err
		}
		alphabets = zstring.LoadCustomAlphabets(raw)
	} else {
		alphabets = zstring.DefaultAlphabets(hdr.Version)
	}

	unicodeTable, err := zstring.LoadUnicodeTable(mem, hdr.UnicodeTableAddr)
	if err != nil {
		return nil, err
	}

	tree := zobject.NewTree(mem, hdr.ObjectTableAddr, alphabets, hdr.AbbreviationsAddr)

	var dict *dictionary.Dictionary
	if hdr.DictionaryAddr != 0 {
		dict, err = dictionary.Parse(mem, hdr.DictionaryAddr)
		if err != nil {
			return nil, err
		}
	}

	state := &GameState{
		Mem:             mem,
		Tree:            tree,
		Dict:            dict,
		Alphabets:       alphabets,
		Unicode:         unicodeTable,
		AbbrevTableAddr: hdr.AbbreviationsAddr,
		Stack:           NewCallStack(),
		PC:              uint32(hdr.InitialPC),
		Rng:             rand.New(rand.NewSource(seed)),
		Streams:         StreamState{ScreenActive: true},
	}

	decoder := NewDecoder(mem)
	decoder.SetTextTables(alphabets, hdr.AbbreviationsAddr)

	return &Engine{
		State:             state,
		Screen:            screen,
		decoder:           decoder,
		origDynamicMemory: append([]byte(nil), mem.DynamicMemory()...),
		initialPC:         uint32(hdr.InitialPC),
	}, nil
}

// OriginalDynamicMemory returns dynamic memory exactly as the story file
// declared it, before any player action. The quetzal package XORs
// against this to build/unpack a CMem chunk; Restart resets to it.
func (e *Engine) OriginalDynamicMemory() []byte {
	return e.origDynamicMemory
}

// Restart resets dynamic memory, the call stack and PC to the story's
// initial state, per spec.md section 5.7's RESTART suspend point. The
// Standard requires preserving the transcript-on and fixed-pitch-font
// flags across restart; callers that track those at the port level
// should reapply them after this returns.
func (e *Engine) Restart() error {
	dyn := e.State.Mem.DynamicMemory()
	if len(e.origDynamicMemory) != len(dyn) {
		return fmt.Errorf("vm: restart memory size mismatch: got %d want %d", len(e.origDynamicMemory), len(dyn))
	}
	for i, b := range e.origDynamicMemory {
		if err := e.State.Mem.WriteByteRaw(uint32(i), b); err != nil {
			return err
		}
	}
	e.State.Stack = NewCallStack()
	e.State.PC = e.initialPC
	e.pendingInput = nil
	e.interruptRoutine = 0
	return nil
}

// Step runs instructions until one needs the caller's help (blocking
// input, save, restore, or quit) or a fatal error occurs.
func (e *Engine) Step() (StepResult, error) {
	for {
		inst, err := e.decoder.Decode(e.State.PC)
		if err != nil {
			return StepResult{}, fmt.Errorf("vm: decode at 0x%x: %w", e.State.PC, err)
		}

		result, err := e.dispatch(inst)
		if err != nil {
			return StepResult{}, fmt.Errorf("vm: opcode 0x%x (count=%d num=%d) at 0x%x: %w", inst.Number, inst.Count, inst.Number, inst.Addr, err)
		}
		if result.Suspend != SuspendNone {
			result.Warnings = e.drainWarnings()
			return result, nil
		}
	}
}

// drainWarnings returns and clears any diagnostics accumulated on
// GameState since the last call, for attaching to the StepResult a
// suspend point (or the loop in Step) returns.
func (e *Engine) drainWarnings() []string {
	if len(e.State.Warnings) == 0 {
		return nil
	}
	w := e.State.Warnings
	e.State.Warnings = nil
	return w
}

// ResumeWithLine supplies the player's typed line to a paused sread/aread
// and continues execution.
func (e *Engine) ResumeWithLine(line string) (StepResult, error) {
	if e.pendingInput == nil {
		return StepResult{}, fmt.Errorf("vm: ResumeWithLine with no pending input")
	}
	pi := e.pendingInput
	e.pendingInput = nil

	if err := writeReadResult(e.State, pi, line); err != nil {
		return StepResult{}, err
	}
	if pi.parseBuffer != 0 && e.State.Dict != nil {
		if err := parser.Tokenise(e.State.Mem, pi.textBuffer, pi.parseBuffer, e.State.Dict, pi.version, e.State.Alphabets, false); err != nil {
			return StepResult{}, err
		}
	}
	if pi.inst.HasStore {
		if err := e.State.WriteVariable(pi.inst.StoreVar, 13); err != nil { // terminator: newline
			return StepResult{}, err
		}
	}
	e.State.PC = pi.inst.NextAddr
	return e.Step()
}

// ResumeWithChar supplies a single keystroke to a paused read_char.
func (e *Engine) ResumeWithChar(r rune) (StepResult, error) {
	if e.pendingInput == nil {
		return StepResult{}, fmt.Errorf("vm: ResumeWithChar with no pending input")
	}
	pi := e.pendingInput
	e.pendingInput = nil

	zscii, _ := e.State.Unicode.FromUnicode(r)
	if pi.inst.HasStore {
		if err := e.State.WriteVariable(pi.inst.StoreVar, uint16(zscii)); err != nil {
			return StepResult{}, err
		}
	}
	e.State.PC = pi.inst.NextAddr
	return e.Step()
}

// FireTimeout is the timed-input suspension point (spec.md section 5's
// "internal timer callback for timed input"): a host calls this when
// req.TimeTenths has elapsed with no player input yet. It invokes the
// pending read's interrupt routine as a nested call, then resumes or
// re-issues the read depending on its result (spec.md section 5.7): a
// nonzero return aborts the read with no stored value; zero continues
// waiting for player input, and the caller should start another timer
// for the (possibly unchanged) TimeTenths on the returned StepResult.
func (e *Engine) FireTimeout() (StepResult, error) {
	if e.pendingInput == nil || e.interruptRoutine == 0 {
		return StepResult{}, fmt.Errorf("vm: FireTimeout with no outstanding interrupt")
	}
	pi := e.pendingInput

	aborted, err := e.callInterruptRoutine(e.interruptRoutine)
	if err != nil {
		return StepResult{}, err
	}
	if aborted {
		e.pendingInput = nil
		e.State.PC = pi.inst.NextAddr
		return e.Step()
	}
	return StepResult{Suspend: SuspendInput, InputReq: pi.req}, nil
}

// callInterruptRoutine runs routine to completion on a private nested
// call stack frame and reports whether it returned nonzero (the
// Standard's "routine terminated the input" signal).
func (e *Engine) callInterruptRoutine(routineAddr uint32) (bool, error) {
	savedPC := e.State.PC
	savedDepth := e.State.Stack.Depth()

	frame, entryPC, err := buildCallFrame(e.State.Mem, routineAddr, nil, 0, false)
	if err != nil {
		return false, err
	}
	frame.IsInterrupt = true

	var result uint16
	prevCapture := e.State.interruptReturnValue
	e.State.interruptReturnValue = &result
	defer func() { e.State.interruptReturnValue = prevCapture }()

	e.State.Stack.Push(frame)
	e.State.PC = entryPC

	for e.State.Stack.Depth() > savedDepth {
		inst, err := e.decoder.Decode(e.State.PC)
		if err != nil {
			return false, err
		}
		if _, err := e.dispatch(inst); err != nil {
			return false, err
		}
	}

	e.State.PC = savedPC
	return result != 0, nil
}

func writeReadResult(state *GameState, pi *pendingInput, line string) error {
	if pi.version <= 4 {
		maxLen, err := state.Mem.ReadByte(pi.textBuffer)
		if err != nil {
			return err
		}
		n := len(line)
		if n > int(maxLen) {
			n = int(maxLen)
		}
		for i := 0; i < n; i++ {
			if err := state.Mem.WriteByte(pi.textBuffer+1+uint32(i), line[i]); err != nil {
				return err
			}
		}
		return state.Mem.WriteByte(pi.textBuffer+1+uint32(n), 0)
	}

	maxLen, err := state.Mem.ReadByte(pi.textBuffer)
	if err != nil {
		return err
	}
	n := len(line)
	if n > int(maxLen) {
		n = int(maxLen)
	}
	if err := state.Mem.WriteByte(pi.textBuffer+1, uint8(n)); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := state.Mem.WriteByte(pi.textBuffer+2+uint32(i), line[i]); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot is the subset of engine state a Quetzal save captures or a
// restore overwrites: dynamic memory, the call stack and the resume PC.
type Snapshot struct {
	DynamicMemory []byte
	Stack         *CallStack
	PC            uint32
}

func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		DynamicMemory: append([]byte(nil), e.State.Mem.DynamicMemory()...),
		Stack:         e.State.Stack.Clone(),
		PC:            e.State.PC,
	}
}

// Restore overwrites dynamic memory and the call stack from a snapshot
// (produced by a prior Snapshot or decoded by the quetzal package),
// leaving static/high memory untouched per spec.md section 6.
func (e *Engine) Restore(snap Snapshot) error {
	dyn := e.State.Mem.DynamicMemory()
	if len(snap.DynamicMemory) != len(dyn) {
		return fmt.Errorf("vm: restore memory size mismatch: got %d want %d", len(snap.DynamicMemory), len(dyn))
	}
	for i, b := range snap.DynamicMemory {
		if err := e.State.Mem.WriteByteRaw(uint32(i), b); err != nil {
			return err
		}
	}
	e.State.Stack = snap.Stack
	e.State.PC = snap.PC
	return nil
}
