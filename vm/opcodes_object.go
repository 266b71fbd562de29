package vm

func opTestAttr(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	set, err := e.State.Tree.Get(vals[0]).TestAttribute(int(vals[1]))
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.Branch(inst, set)
}

func opSetAttr(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.Tree.Get(vals[0]).SetAttribute(int(vals[1]))
}

func opClearAttr(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.Tree.Get(vals[0]).ClearAttribute(int(vals[1]))
}

func opInsertObj(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.Tree.MoveObject(e.State.Tree.Get(vals[0]), vals[1])
}

func opRemoveObj(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.Tree.RemoveObj(e.State.Tree.Get(vals[0]))
}

func opGetProp(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	v, err := e.State.Tree.Get(vals[0]).GetProperty(vals[1])
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.WriteVariable(inst.StoreVar, v)
}

func opGetPropAddr(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	addr, err := e.State.Tree.Get(vals[0]).GetPropertyAddr(vals[1])
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.WriteVariable(inst.StoreVar, uint16(addr))
}

func opGetNextProp(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	next, err := e.State.Tree.Get(vals[0]).GetNextProperty(vals[1])
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.WriteVariable(inst.StoreVar, next)
}

func opGetPropLen(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	// GET_PROP_LEN's object handle is unused by the Standard (any object
	// works, since length only depends on the data address), so a zero
	// handle is fine here.
	length, err := e.State.Tree.Get(0).GetPropertyLenAt(uint32(vals[0]))
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.WriteVariable(inst.StoreVar, length)
}

func opJz(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.Branch(inst, vals[0] == 0)
}

func opGetSibling(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	sibling, err := e.State.Tree.Get(vals[0]).Sibling()
	if err != nil {
		return StepResult{}, err
	}
	if err := e.State.WriteVariable(inst.StoreVar, sibling); err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.Branch(inst, sibling != 0)
}

func opGetChild(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	child, err := e.State.Tree.Get(vals[0]).Child()
	if err != nil {
		return StepResult{}, err
	}
	if err := e.State.WriteVariable(inst.StoreVar, child); err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.Branch(inst, child != 0)
}

func opGetParent(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	parent, err := e.State.Tree.Get(vals[0]).Parent()
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{}, e.State.WriteVariable(inst.StoreVar, parent)
}

func opPrintObj(e *Engine, inst Instruction) (StepResult, error) {
	vals, err := e.State.ResolveOperands(inst.Operands)
	if err != nil {
		return StepResult{}, err
	}
	name, err := e.State.Tree.Get(vals[0]).ShortName()
	if err != nil {
		return StepResult{}, err
	}
	e.writeText(name)
	return StepResult{}, nil
}
