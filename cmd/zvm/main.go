// Command zvm plays a Z-machine story file in a terminal, grounded on
// the teacher's main.go (flag parsing, Bubble Tea program setup) with
// the channel-pump goroutine (main.go's z.Run()) replaced by driver.go,
// which drives the new explicit Step/Resume suspend protocol
// (REDESIGN FLAGS #2) instead of blocking on an internal channel.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rezrov-go/zmachine/port"
	"github.com/rezrov-go/zmachine/vm"
	"github.com/rezrov-go/zmachine/zcore"
)

func main() {
	romPath := flag.String("rom", "", "path to a Z-machine story file")
	savesDir := flag.String("saves", "saves", "directory to store save games in")
	flag.Parse()

	if *romPath == "" {
		fmt.Fprintln(os.Stderr, "usage: zvm -rom <story file> [-saves <dir>]")
		os.Exit(1)
	}

	romBytes, err := os.ReadFile(*romPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read rom: %v\n", err)
		os.Exit(1)
	}

	mem, err := zcore.Load(romBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load story: %v\n", err)
		os.Exit(1)
	}

	outCh := make(chan any)
	screen := newChannelScreen(outCh)

	engine, err := vm.New(mem, screen, time.Now().UnixNano())
	if err != nil {
		fmt.Fprintf(os.Stderr, "start engine: %v\n", err)
		os.Exit(1)
	}

	store := port.NewFSBlobStore(filepath.Join(*savesDir, filepath.Base(*romPath)))
	inputCh := make(chan inputResponseMsg)

	go runDriver(engine, mem, store, inputCh, outCh)

	m := newModel(engine, screen, outCh, inputCh)

	final, err := tea.NewProgram(m).Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "run program: %v\n", err)
		os.Exit(1)
	}
	// Exit codes per spec.md section 6: 0 on clean quit, 1 on an
	// unrecoverable error the engine itself reported.
	if fm, ok := final.(*model); ok && fm.runtimeErr != "" {
		os.Exit(1)
	}
}
