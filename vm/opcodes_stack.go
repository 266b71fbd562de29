package vm

func callImpl(e *Engine, inst Instruction, hasResult bool) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	routinePacked := vals[0]
	if routinePacked == 0 {
		if hasResult {
			if err := e.State.WriteVariable(inst.StoreVar, 0); err != nil {
				return StepResult{}, err
			}
		}
		e.State.PC = inst.NextAddr
		return StepResult{}, nil
	}

	addr := e.State.Mem.UnpackRoutineAddr(routinePacked)
	frame, entryPC, err := buildCallFrame(e.State.Mem, addr, vals[1:], inst.StoreVar, hasResult)
	if err != nil {
		return StepResult{}, err
	}
	frame.ReturnPC = inst.NextAddr
	e.State.Stack.Push(frame)
	e.State.PC = entryPC
	return StepResult{}, nil
}

func opCall(e *Engine, inst Instruction) (StepResult, error) {
	return callImpl(e, inst, true)
}

func opCallDiscard(e *Engine, inst Instruction) (StepResult, error) {
	return callImpl(e, inst, false)
}

func opRtrue(e *Engine, inst Instruction) (StepResult, error) {
	return StepResult{}, e.State.doReturn(1)
}

func opRfalse(e *Engine, inst Instruction) (StepResult, error) {
	return StepResult{}, e.State.doReturn(0)
}

func opRet(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.doReturn(vals[0])
}

func opRetPopped(e *Engine, inst Instruction) (StepResult, error) {
	v, err := e.State.Stack.Current().pop()
	if err == ErrStackUnderflow {
		e.State.warn("ret_popped on empty evaluation stack, returning 0")
		v, err = 0, nil
	}
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.doReturn(v)
}

func opJump(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	e.State.PC = uint32(int64(inst.NextAddr) + int64(s16(vals[0])) - 2)
	return StepResult{}, nil
}

func opPush(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	e.State.Stack.Current().push(vals[0])
	return StepResult{}, nil
}

func opPull(e *Engine, inst Instruction) (StepResult, error) {
	variable, err := e.State.ResolveOperand(inst.Operands[0])
	if err != nil {
		return StepResult{}, err
	}
	v, err := e.State.Stack.Current().pop()
	if err == ErrStackUnderflow {
		e.State.warn("pull from empty evaluation stack, returning 0")
		v, err = 0, nil
	}
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.WriteVariableIndirect(uint8(variable), v)
}

// opNotOrCall1n handles the 1OP-bucket opcode 15, which the Standard
// repurposes from "not" (v1-4, stores the bitwise complement) to
// "call_1n" (v5+, a discard-result call).
func opNotOrCall1n(e *Engine, inst Instruction) (StepResult, error) {
	if e.State.Mem.Version() <= 4 {
		vals, err := e.State.ResolveOperands(inst.Operands)
		if err != nil {
			return StepResult{}, err
		}
		return StepResult{}, e.State.WriteVariable(inst.StoreVar, ^vals[0])
	}
	return callImpl(e, inst, false)
}

// opNotOrCall1n2OPForm handles VAR-bucket opcode 24: "not" when
// encountered in its v5+ VAR-form encoding (1 operand, stores).
func opNotOrCall1n2OPForm(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.WriteVariable(inst.StoreVar, ^vals[0])
}

func opThrow(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	value, target := vals[0], vals[1]
	for e.State.Stack.Depth() > int(target) {
		if _, err := e.State.Stack.Pop(); err != nil {
			return StepResult{}, err
		}
	}
	return StepResult{}, e.State.doReturn(value)
}

func opCheckArgCount(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.Branch(inst, int(vals[0]) <= e.State.Stack.Current().ArgCount)
}

func opNop(e *Engine, inst Instruction) (StepResult, error) {
	return StepResult{}, nil
}
