package vm

import (
	"github.com/rezrov-go/zmachine/port"
	"github.com/rezrov-go/zmachine/zstring"
)

// writeText routes decoded text to the active output streams, handling
// the memory-stream (output stream 3) redirection stack per spec.md
// section 5.5: while any memory redirect is active, text is written
// into story memory instead of to the screen, and nested redirects
// stack (innermost receives the text).
func (e *Engine) writeText(s string) {
	st := &e.State.Streams
	if len(st.memoryStack) > 0 {
		top := &st.memoryStack[len(st.memoryStack)-1]
		for i := 0; i < len(s); i++ {
			_ = e.State.Mem.WriteByte(top.addr+uint32(top.length), s[i])
			top.length++
		}
		return
	}
	if st.ScreenActive && e.Screen != nil {
		e.Screen.Print(s)
	}
}

func (e *Engine) writeChar(zscii uint16) {
	e.writeText(string(e.State.Unicode.ToUnicode(uint8(zscii))))
}

func opPrint(e *Engine, inst Instruction) (StepResult, error) {
	e.writeText(inst.Text)
	return StepResult{}, nil
}

func opPrintRet(e *Engine, inst Instruction) (StepResult, error) {
	e.writeText(inst.Text)
	e.writeText("\n")
	return StepResult{}, e.State.doReturn(1)
}

func opPrintAddr(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	s, _, err := zstring.Decode(e.State.Mem, uint32(vals[0]), e.State.Mem.Version(), e.State.Alphabets, e.State.AbbrevTableAddr)
	if err != nil {
		return StepResult{}, err
	}
	e.writeText(s)
	return StepResult{}, nil
}

func opPrintPaddr(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	addr := e.State.Mem.UnpackStringAddr(vals[0])
	s, _, err := zstring.Decode(e.State.Mem, addr, e.State.Mem.Version(), e.State.Alphabets, e.State.AbbrevTableAddr)
	if err != nil {
		return StepResult{}, err
	}
	e.writeText(s)
	return StepResult{}, nil
}

func opPrintChar(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	e.writeChar(vals[0])
	return StepResult{}, nil
}

func opPrintNum(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	e.writeText(itoa(int(s16(vals[0]))))
	return StepResult{}, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func opNewLine(e *Engine, inst Instruction) (StepResult, error) {
	e.writeText("\n")
	return StepResult{}, nil
}

func opPrintUnicode(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	e.writeText(string(rune(vals[0])))
	return StepResult{}, nil
}

func opCheckUnicode(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	_, canInput := e.State.Unicode.FromUnicode(rune(vals[0]))
	result := uint16(0)
	if canInput {
		result |= 1
	}
	result |= 2 // this interpreter can always print any rune it was asked to translate
	return StepResult{}, e.State.WriteVariable(inst.StoreVar, result)
}

func opSplitWindow(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	if e.Screen != nil {
		e.Screen.SplitWindow(int(vals[0]))
	}
	return StepResult{}, nil
}

func opSetWindow(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	if e.Screen != nil {
		e.Screen.SetWindow(port.Window(vals[0]))
	}
	return StepResult{}, nil
}

func opEraseWindow(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	if e.Screen != nil {
		if s16(vals[0]) == -1 || s16(vals[0]) == -2 {
			e.Screen.EraseWindow(port.LowerWindow)
			e.Screen.EraseWindow(port.UpperWindow)
		} else {
			e.Screen.EraseWindow(port.Window(vals[0]))
		}
	}
	return StepResult{}, nil
}

func opEraseLine(e *Engine, inst Instruction) (StepResult, error) {
	if e.Screen != nil {
		e.Screen.EraseLine()
	}
	return StepResult{}, nil
}

func opSetCursor(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	if e.Screen != nil {
		e.Screen.SetCursor(int(vals[0]), int(vals[1]))
	}
	return StepResult{}, nil
}

func opGetCursor(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	row, col := 1, 1
	if e.Screen != nil {
		row, col = e.Screen.CursorPosition()
	}
	if err := e.State.Mem.WriteWord(uint32(vals[0]), uint16(row)); err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.Mem.WriteWord(uint32(vals[0])+2, uint16(col))
}

func opSetTextStyle(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	if e.Screen != nil {
		e.Screen.SetTextStyle(port.TextStyle(vals[0]))
	}
	return StepResult{}, nil
}

func opSetColour(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	if e.Screen != nil {
		e.Screen.SetColor(port.Color{Number: vals[0]}, port.Color{Number: vals[1]})
	}
	return StepResult{}, nil
}

func opSetTrueColour(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	if e.Screen != nil {
		e.Screen.SetColor(port.Color{TrueColour: true, RGB15: vals[0]}, port.Color{TrueColour: true, RGB15: vals[1]})
	}
	return StepResult{}, nil
}

func opBufferMode(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	e.State.Streams.Buffering = vals[0] != 0
	if e.Screen != nil {
		e.Screen.SetBufferMode(vals[0] != 0)
	}
	return StepResult{}, nil
}

func opOutputStream(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	n := s16(vals[0])
	st := &e.State.Streams
	switch {
	case n == 1:
		st.ScreenActive = true
	case n == -1:
		st.ScreenActive = false
	case n == 2:
		st.TranscriptActive = true
	case n == -2:
		st.TranscriptActive = false
	case n == 3:
		if len(vals) < 2 {
			return StepResult{}, nil
		}
		st.memoryStack = append(st.memoryStack, memoryRedirect{addr: uint32(vals[1]) + 2, length: 0})
	case n == -3:
		if len(st.memoryStack) == 0 {
			return StepResult{}, nil
		}
		top := st.memoryStack[len(st.memoryStack)-1]
		st.memoryStack = st.memoryStack[:len(st.memoryStack)-1]
		if err := e.State.Mem.WriteWord(top.addr-2, top.length); err != nil {
			return StepResult{}, err
		}
	case n == 4:
		st.CommandsActive = true
	case n == -4:
		st.CommandsActive = false
	}
	return StepResult{}, nil
}

func opInputStream(e *Engine, inst Instruction) (StepResult, error) {
	// Command-file playback (input stream 1) is out of scope; this
	// interpreter always reads from the live player.
	return StepResult{}, nil
}

func opSoundEffect(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	number := int(vals[0])
	effect, volume := 1, 8
	if len(vals) > 1 {
		effect = int(vals[1])
	}
	if len(vals) > 2 {
		volume = int(vals[2])
	}
	if e.Screen != nil {
		e.Screen.SoundEffect(number, effect, volume)
	}
	return StepResult{}, nil
}

func opShowStatus(e *Engine, inst Instruction) (StepResult, error) {
	if e.Screen == nil {
		return StepResult{}, nil
	}
	globals := e.State.Mem.Header().GlobalsAddr
	locationObj, err := e.State.Mem.ReadWord(uint32(globals))
	if err != nil {
		return StepResult{}, err
	}
	scoreOrHours, err := e.State.Mem.ReadWord(uint32(globals) + 2)
	if err != nil {
		return StepResult{}, err
	}
	movesOrMinutes, err := e.State.Mem.ReadWord(uint32(globals) + 4)
	if err != nil {
		return StepResult{}, err
	}
	name, err := e.State.Tree.Get(locationObj).ShortName()
	if err != nil {
		return StepResult{}, err
	}
	isTimeGame := e.State.Mem.Header().Flags1&0x02 != 0
	e.Screen.ShowStatus(name, int(s16(scoreOrHours)), int(movesOrMinutes), isTimeGame)
	return StepResult{}, nil
}
