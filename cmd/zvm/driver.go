package main

import (
	"fmt"
	"time"

	"github.com/rezrov-go/zmachine/port"
	"github.com/rezrov-go/zmachine/quetzal"
	"github.com/rezrov-go/zmachine/vm"
	"github.com/rezrov-go/zmachine/zcore"
)

// inputResponseMsg carries the player's answer to a pending sread/
// read_char back to the driver goroutine.
type inputResponseMsg struct {
	line string
	char rune
}

type quitMsg struct{}
type restartedMsg struct{}
type runtimeErrorMsg struct{ err error }
type inputRequestMsg struct{ req port.InputRequest }

// saveFilename is fixed rather than prompted, matching the teacher's
// defaultSaveFilename fallback path (main.go) without the interactive
// filename prompt, which cmd/zvm's single-window terminal has no room
// to render alongside the story text.
const saveFilename = "game.sav"

// runDriver runs the engine to completion on its own goroutine,
// translating each suspend point into the teacher's channel-message
// protocol (main.go's zMachineOutputChannel/zMachineInputChannel/
// zMachineSaveRestoreChannel) adapted to vm.Engine's explicit
// suspend/resume calls instead of a blocking internal channel receive
// (REDESIGN FLAGS #2).
func runDriver(e *vm.Engine, mem *zcore.Memory, store port.BlobStore, inputCh <-chan inputResponseMsg, out chan<- any) {
	result, err := e.Step()
	for {
		if err != nil {
			out <- runtimeErrorMsg{err: err}
			return
		}

		switch result.Suspend {
		case vm.SuspendQuit:
			out <- quitMsg{}
			return

		case vm.SuspendRestart:
			if rerr := e.Restart(); rerr != nil {
				out <- runtimeErrorMsg{err: rerr}
				return
			}
			out <- restartedMsg{}
			result, err = e.Step()

		case vm.SuspendInput:
			result, err = waitForInput(e, result.InputReq, out, inputCh)

		case vm.SuspendSaveGame:
			snap := e.Snapshot()
			success := false
			if data, encErr := quetzal.Encode(mem, e.OriginalDynamicMemory(), snap, ""); encErr == nil {
				success = store.Save(saveFilename, data) == nil
			}
			result, err = e.ResumeAfterSave(success)

		case vm.SuspendRestoreGame:
			success := false
			if data, loadErr := store.Load(saveFilename); loadErr == nil {
				if snap, decErr := quetzal.Decode(data, mem, e.OriginalDynamicMemory()); decErr == nil {
					success = e.Restore(snap) == nil
				}
			}
			result, err = e.ResumeAfterRestore(success)

		default:
			out <- runtimeErrorMsg{err: fmt.Errorf("zvm: unexpected suspend reason %v", result.Suspend)}
			return
		}
	}
}

// waitForInput prompts the UI once for req and then waits for either the
// player's answer or, if req.TimeTenths is nonzero, the timed-input
// deadline (spec.md section 5's "internal timer callback for timed
// input"). On timeout it calls vm.Engine.FireTimeout, which runs the
// story's interrupt routine; if that routine didn't abort the read, the
// same prompt keeps waiting under a fresh timer for whatever TimeTenths
// the engine reports next (ordinarily unchanged).
func waitForInput(e *vm.Engine, req port.InputRequest, out chan<- any, inputCh <-chan inputResponseMsg) (vm.StepResult, error) {
	out <- inputRequestMsg{req: req}
	for {
		var timerC <-chan time.Time
		if req.TimeTenths > 0 {
			timer := time.NewTimer(time.Duration(req.TimeTenths) * 100 * time.Millisecond)
			defer timer.Stop()
			timerC = timer.C
		}

		select {
		case resp := <-inputCh:
			if req.Kind == port.InputChar {
				return e.ResumeWithChar(resp.char)
			}
			return e.ResumeWithLine(resp.line)

		case <-timerC:
			next, err := e.FireTimeout()
			if err != nil || next.Suspend != vm.SuspendInput {
				return next, err
			}
			req = next.InputReq
		}
	}
}
