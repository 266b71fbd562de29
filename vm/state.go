package vm

import (
	"encoding/binary"
	"math/rand"

	"github.com/rezrov-go/zmachine/dictionary"
	"github.com/rezrov-go/zmachine/zcore"
	"github.com/rezrov-go/zmachine/zobject"
	"github.com/rezrov-go/zmachine/zstring"
)

// OutputStream numbers, per spec.md section 5.5.
const (
	StreamScreen  = 1
	StreamTranscript = 2
	StreamMemory  = 3
	StreamCommands = 4
)

// StreamState tracks which output streams are active and the memory
// stream redirection stack (spec.md section 5.5's "nested output
// stream 3" rule), grounded on the teacher's appendText stream
// handling in zmachine/zmachine.go.
type StreamState struct {
	ScreenActive     bool
	TranscriptActive bool
	CommandsActive   bool
	memoryStack      []memoryRedirect
	Buffering        bool
}

type memoryRedirect struct {
	addr   uint32
	length uint16
}

// GameState bundles everything opcode implementations read or mutate:
// memory, the object tree, the dictionary, the text codec tables, the
// call stack, and the program counter. It is the receiver every opcode
// function (opcodeFn) operates on, per spec.md section 5's "fixed
// function-pointer dispatch tables" design.
type GameState struct {
	Mem             *zcore.Memory
	Tree            *zobject.Tree
	Dict            *dictionary.Dictionary
	Alphabets       *zstring.Alphabets
	Unicode         *zstring.UnicodeTable
	AbbrevTableAddr uint16
	Stack           *CallStack
	PC              uint32
	Rng             *rand.Rand
	Streams         StreamState
	decoder         *Decoder

	// Warnings accumulates non-fatal diagnostics raised during the
	// current Step (e.g. popping an empty evaluation stack), drained
	// and attached to the StepResult by Engine.Step rather than
	// aborting the run (spec.md section 7's "pragmatic policy is to
	// warn and return 0" for StackUnderflow).
	Warnings []string

	randomPredictableCountdown uint16 // not read or written; random with a negative operand reseeds Rng instead
	randomPredictableNext      uint16

	interruptReturnValue *uint16 // set by doReturn when the popped frame was an interrupt routine
}

func (g *GameState) globalAddr(index int) uint32 {
	return uint32(g.Mem.Header().GlobalsAddr) + uint32(index)*2
}

func (g *GameState) warn(msg string) {
	g.Warnings = append(g.Warnings, msg)
}

// ReadVariable resolves an operand-style variable reference: 0 pops the
// current frame's evaluation stack, 1-15 reads a local, 16-255 reads a
// global (spec.md section 5.3). Many released games pop the stack one
// too many times; rather than abort, popping an empty stack warns and
// yields 0.
func (g *GameState) ReadVariable(v uint8) (uint16, error) {
	switch {
	case v == 0:
		val, err := g.Stack.Current().pop()
		if err == ErrStackUnderflow {
			g.warn("popped empty evaluation stack, returning 0")
			return 0, nil
		}
		return val, err
	case v <= 15:
		f := g.Stack.Current()
		if int(v) > f.NumLocals {
			return 0, ErrInvalidVariable
		}
		return f.Locals[v-1], nil
	default:
		return g.Mem.ReadWord(g.globalAddr(int(v) - 16))
	}
}

// WriteVariable resolves an instruction's own result-store variable: 0
// pushes onto the evaluation stack, 1-15 writes a local, 16-255 writes
// a global.
func (g *GameState) WriteVariable(v uint8, value uint16) error {
	switch {
	case v == 0:
		g.Stack.Current().push(value)
		return nil
	case v <= 15:
		f := g.Stack.Current()
		if int(v) > f.NumLocals {
			return ErrInvalidVariable
		}
		f.Locals[v-1] = value
		return nil
	default:
		return g.Mem.WriteWord(g.globalAddr(int(v)-16), value)
	}
}

// ReadVariableIndirect resolves a variable given as an *operand value*
// to an opcode like LOAD: per the Standard, such references peek the
// stack rather than popping it.
func (g *GameState) ReadVariableIndirect(v uint8) (uint16, error) {
	if v == 0 {
		val, err := g.Stack.Current().peek()
		if err == ErrStackUnderflow {
			g.warn("peeked empty evaluation stack, returning 0")
			return 0, nil
		}
		return val, err
	}
	return g.ReadVariable(v)
}

// WriteVariableIndirect resolves a variable given as an operand value
// to an opcode like STORE/INC/DEC/PULL: such references replace the
// top of stack in place rather than pushing a new entry.
func (g *GameState) WriteVariableIndirect(v uint8, value uint16) error {
	if v == 0 {
		f := g.Stack.Current()
		if len(f.evalStack) == 0 {
			f.push(value)
			return nil
		}
		f.evalStack[len(f.evalStack)-1] = value
		return nil
	}
	return g.WriteVariable(v, value)
}

// ResolveOperand reads the effective value of a decoded Operand,
// consuming the evaluation stack for Variable-typed operands exactly
// once per occurrence (spec.md section 5.3's "operands are read left to
// right, each stack reference popping independently").
func (g *GameState) ResolveOperand(op Operand) (uint16, error) {
	switch op.Type {
	case OperandLarge, OperandSmall:
		return op.Value, nil
	case OperandVariable:
		return g.ReadVariable(uint8(op.Value))
	default:
		return 0, ErrInvalidVariable
	}
}

func (g *GameState) ResolveOperands(ops []Operand) ([]uint16, error) {
	values := make([]uint16, len(ops))
	for i, op := range ops {
		v, err := g.ResolveOperand(op)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// Branch applies an instruction's branch per spec.md section 5.2: taken
// iff condition == inst.BranchOnTrue, jumping to PC + offset - 2 except
// for the 0/1 special cases meaning "return false"/"return true" from
// the current routine.
func (g *GameState) Branch(inst Instruction, condition bool) error {
	if !inst.HasBranch {
		return nil
	}
	if condition != inst.BranchOnTrue {
		g.PC = inst.NextAddr
		return nil
	}
	switch inst.BranchOffset {
	case 0:
		return g.doReturn(0)
	case 1:
		return g.doReturn(1)
	default:
		g.PC = uint32(int64(inst.NextAddr) + int64(inst.BranchOffset) - 2)
		return nil
	}
}

// doReturn pops the current frame and resumes the caller, storing value
// in the caller's result variable if one was requested. Returning from
// the main routine tries to pop the synthetic bottom frame, which fails
// with ErrCallStackUnderflow; Step reports that as a fatal error.
func (g *GameState) doReturn(value uint16) error {
	f, err := g.Stack.Pop()
	if err != nil {
		return err
	}
	g.PC = f.ReturnPC
	if f.IsInterrupt {
		if g.interruptReturnValue != nil {
			*g.interruptReturnValue = value
		}
		return nil
	}
	if f.HasResult {
		return g.WriteVariable(f.ResultVar, value)
	}
	return nil
}

// BigEndianPut is a small helper kept for parity with the teacher's use
// of encoding/binary throughout its own memory helpers.
func BigEndianPut(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
