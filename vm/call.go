package vm

import "github.com/rezrov-go/zmachine/zcore"

// buildCallFrame reads a routine header at routineAddr (a locals count
// byte, followed by that many default-value words in v1-4, none in
// v5+) and builds the Frame for invoking it with the given arguments,
// per spec.md section 5.4.
func buildCallFrame(mem *zcore.Memory, routineAddr uint32, args []uint16, storeVar uint8, hasResult bool) (*Frame, uint32, error) {
	numLocals, err := mem.ReadByte(routineAddr)
	if err != nil {
		return nil, 0, err
	}

	f := &Frame{NumLocals: int(numLocals), ResultVar: storeVar, HasResult: hasResult, ArgCount: len(args)}
	cursor := routineAddr + 1

	if mem.Version() <= 4 {
		for i := 0; i < int(numLocals); i++ {
			def, err := mem.ReadWord(cursor)
			if err != nil {
				return nil, 0, err
			}
			cursor += 2
			f.Locals[i] = def
		}
	}

	for i := 0; i < len(args) && i < int(numLocals); i++ {
		f.Locals[i] = args[i]
	}

	return f, cursor, nil
}
