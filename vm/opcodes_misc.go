package vm

import (
	"github.com/rezrov-go/zmachine/dictionary"
	"github.com/rezrov-go/zmachine/parser"
	"github.com/rezrov-go/zmachine/port"
	"github.com/rezrov-go/zmachine/zstring"
	"github.com/rezrov-go/zmachine/ztable"
)

func opPutProp(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.Tree.Get(vals[0]).SetProperty(vals[1], vals[2])
}

func opScanTable(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	form := uint8(0x82) // default: word field, stride 2
	if len(vals) > 3 {
		form = uint8(vals[3])
	}
	addr, err := ztable.ScanTable(e.State.Mem, vals[0], uint32(vals[1]), vals[2], form)
	if err != nil {
		return StepResult{}, err
	}
	if err := e.State.WriteVariable(inst.StoreVar, uint16(addr)); err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.Branch(inst, addr != 0)
}

func opCopyTable(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{}, ztable.CopyTable(e.State.Mem, uint32(vals[0]), uint32(vals[1]), int16(vals[2]))
}

func opPrintTable(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	width := vals[1]
	height := uint16(1)
	skip := uint16(0)
	if len(vals) > 2 {
		height = vals[2]
	}
	if len(vals) > 3 {
		skip = vals[3]
	}
	row := 0
	return StepResult{}, ztable.PrintTable(e.State.Mem, uint32(vals[0]), width, height, skip, func(line []byte) error {
		if row > 0 {
			e.writeText("\n")
		}
		row++
		for _, b := range line {
			e.writeChar(uint16(b))
		}
		return nil
	})
}

func opPopOrCatch(e *Engine, inst Instruction) (StepResult, error) {
	if e.State.Mem.Version() >= 5 {
		return StepResult{}, e.State.WriteVariable(inst.StoreVar, uint16(e.State.Stack.Depth()))
	}
	if _, err := e.State.Stack.Current().pop(); err == ErrStackUnderflow {
		e.State.warn("pop from empty evaluation stack")
	} else if err != nil {
		return StepResult{}, err
	}
	return StepResult{}, nil
}

func opVerify(e *Engine, inst Instruction) (StepResult, error) {
	hdr := e.State.Mem.Header()
	length := e.State.Mem.FileLength()
	if length == 0 || length > e.State.Mem.Size() {
		return StepResult{}, e.State.Branch(inst, false)
	}
	data, err := e.State.Mem.Slice(0x40, length)
	if err != nil {
		return StepResult{}, err
	}
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return StepResult{}, e.State.Branch(inst, sum == hdr.Checksum)
}

func opPiracy(e *Engine, inst Instruction) (StepResult, error) {
	return StepResult{}, e.State.Branch(inst, true)
}

func opQuit(e *Engine, inst Instruction) (StepResult, error) {
	return StepResult{Suspend: SuspendQuit}, nil
}

// opRestart only signals the suspend; the caller is expected to invoke
// Engine.Restart and then Step again, same two-call shape as save/restore.
func opRestart(e *Engine, inst Instruction) (StepResult, error) {
	return StepResult{Suspend: SuspendRestart}, nil
}

func opSave(e *Engine, inst Instruction) (StepResult, error) {
	e.lastSaveOrRestoreAddr = inst.Addr
	return StepResult{Suspend: SuspendSaveGame}, nil
}

func opRestore(e *Engine, inst Instruction) (StepResult, error) {
	e.lastSaveOrRestoreAddr = inst.Addr
	return StepResult{Suspend: SuspendRestoreGame}, nil
}

// ResumeAfterSave completes a paused SAVE/save EXT opcode: success
// stores/branches true, failure stores/branches false (spec.md section
// 5.7 redesign: explicit resume call instead of a blocking channel
// receive).
func (e *Engine) ResumeAfterSave(success bool) (StepResult, error) {
	inst, err := e.decoder.Decode(e.lastSaveOrRestoreAddr)
	if err != nil {
		return StepResult{}, err
	}
	if err := e.completeSaveRestoreResult(inst, success); err != nil {
		return StepResult{}, err
	}
	return e.Step()
}

// ResumeAfterRestore completes a paused RESTORE/restore EXT opcode.
// On success the engine's state has already been overwritten via
// Restore(snapshot) by the caller before calling this; PC therefore
// comes from the restored snapshot, not from the paused instruction.
func (e *Engine) ResumeAfterRestore(success bool) (StepResult, error) {
	if success {
		return e.Step()
	}
	inst, err := e.decoder.Decode(e.lastSaveOrRestoreAddr)
	if err != nil {
		return StepResult{}, err
	}
	if err := e.completeSaveRestoreResult(inst, false); err != nil {
		return StepResult{}, err
	}
	return e.Step()
}

func (e *Engine) completeSaveRestoreResult(inst Instruction, success bool) error {
	if inst.HasStore {
		v := uint16(0)
		if success {
			v = 1
		}
		if err := e.State.WriteVariable(inst.StoreVar, v); err != nil {
			return err
		}
		e.State.PC = inst.NextAddr
		return nil
	}
	e.State.PC = inst.NextAddr
	return e.State.Branch(inst, success)
}

func opSaveUndo(e *Engine, inst Instruction) (StepResult, error) {
	e.undoStack = append(e.undoStack, e.Snapshot())
	if len(e.undoStack) > maxUndoDepth {
		e.undoStack = e.undoStack[1:]
	}
	return StepResult{}, e.State.WriteVariable(inst.StoreVar, 1)
}

func opRestoreUndo(e *Engine, inst Instruction) (StepResult, error) {
	if len(e.undoStack) == 0 {
		return StepResult{}, e.State.WriteVariable(inst.StoreVar, 0)
	}
	snap := e.undoStack[len(e.undoStack)-1]
	e.undoStack = e.undoStack[:len(e.undoStack)-1]
	if err := e.Restore(snap); err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.WriteVariable(inst.StoreVar, 2)
}

func opSetFont(e *Engine, inst Instruction) (StepResult, error) {
	// Font switching has no effect on a plain-text terminal Screen; the
	// story can always "succeed" by reporting the previous font was 1
	// (normal), matching the teacher's FontNormal default.
	return StepResult{}, e.State.WriteVariable(inst.StoreVar, 1)
}

func opRead(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	version := e.State.Mem.Version()
	textBuffer := uint32(vals[0])
	var parseBuffer uint32
	if len(vals) > 1 {
		parseBuffer = uint32(vals[1])
	}
	timeTenths := 0
	var interruptRoutine uint16
	if len(vals) > 2 {
		timeTenths = int(vals[2])
	}
	if len(vals) > 3 {
		interruptRoutine = vals[3]
	}

	e.pendingInput = &pendingInput{inst: inst, textBuffer: textBuffer, parseBuffer: parseBuffer, version: version,
		req: port.InputRequest{Kind: port.InputLine, MaxLength: 255, TimeTenths: timeTenths}}
	if interruptRoutine != 0 {
		e.interruptRoutine = e.State.Mem.UnpackRoutineAddr(interruptRoutine)
	} else {
		e.interruptRoutine = 0
	}
	return StepResult{Suspend: SuspendInput, InputReq: e.pendingInput.req}, nil
}

func opReadChar(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	timeTenths := 0
	var interruptRoutine uint16
	if len(vals) > 1 {
		timeTenths = int(vals[1])
	}
	if len(vals) > 2 {
		interruptRoutine = vals[2]
	}
	e.pendingInput = &pendingInput{inst: inst, version: e.State.Mem.Version(),
		req: port.InputRequest{Kind: port.InputChar, TimeTenths: timeTenths}}
	if interruptRoutine != 0 {
		e.interruptRoutine = e.State.Mem.UnpackRoutineAddr(interruptRoutine)
	} else {
		e.interruptRoutine = 0
	}
	return StepResult{Suspend: SuspendInput, InputReq: e.pendingInput.req}, nil
}

func opTokenise(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	dict := e.State.Dict
	if len(vals) > 2 && vals[2] != 0 {
		d, err := dictionary.Parse(e.State.Mem, vals[2])
		if err != nil {
			return StepResult{}, err
		}
		dict = d
	}
	skipUnknown := len(vals) > 3 && vals[3] != 0
	return StepResult{}, parser.Tokenise(e.State.Mem, uint32(vals[0]), uint32(vals[1]), dict, e.State.Mem.Version(), e.State.Alphabets, skipUnknown)
}

func opEncodeText(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	zchars := make([]byte, vals[1])
	for i := range zchars {
		b, err := e.State.Mem.ReadByte(uint32(vals[0]) + uint32(vals[2]) + uint32(i))
		if err != nil {
			return StepResult{}, err
		}
		zchars[i] = b
	}
	wordCount := 3
	if e.State.Mem.Version() <= 3 {
		wordCount = 2
	}
	encoded := zstring.Encode(string(zchars), e.State.Mem.Version(), e.State.Alphabets, wordCount)
	for i, w := range encoded {
		if err := e.State.Mem.WriteWord(uint32(vals[3])+uint32(i*2), w); err != nil {
			return StepResult{}, err
		}
	}
	return StepResult{}, nil
}
