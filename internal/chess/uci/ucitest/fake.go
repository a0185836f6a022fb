// Package ucitest turns a test binary into a scripted UCI engine.
//
// A test package calls MaybeRun from TestMain; when the process was
// launched with EnvMode set it behaves as an engine and exits instead of
// running tests. Engine sessions can then use os.Args[0] as the engine path.
package ucitest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	EnvMode = "UCITEST_ENGINE_MODE"
	// EnvLog names a file that receives every command line the engine reads.
	EnvLog = "UCITEST_ENGINE_LOG"
)

// Modes understood by the fake engine.
const (
	ModeScenarioA = "scenario_a"
	ModeChunked   = "chunked"
	ModeNoMove    = "no_move"
	ModeGarbage   = "garbage"
	ModeExitEarly = "exit_early"
	ModeHang      = "hang"
	ModeBound     = "upperbound"
	ModeIllegal   = "illegal"
)

// Transcripts replayed after the go command, keyed by mode.
var Transcripts = map[string]string{
	ModeScenarioA: "info depth 1 score cp 35 pv e2e4 e7e5\nbestmove e2e4\n",
	ModeChunked: "id name FakeFish\nid author test\noption name Skill Level type spin default 20 min 0 max 20\nuciok\nreadyok\n" +
		"info depth 1 seldepth 1 score cp 10 nodes 20 pv d2d4\n" +
		"info depth 2 score cp 24 lowerbound pv e2e4 e7e5 g1f3\n" +
		"info string NNUE evaluation enabled\n" +
		"info depth 3 score cp 31 nodes 900 pv e2e4 c7c5\n" +
		"bestmove e2e4 ponder c7c5\n",
	ModeNoMove:  "bestmove (none)\n",
	ModeGarbage: "info depth 1 score cp 5 pv zz99\nbestmove zz99\n",
	ModeBound:   "info score cp -120 upperbound pv d2d4\nbestmove d2d4\n",
	ModeIllegal: "info depth 1 score cp 0 pv a1a8\nbestmove a1a8\n",
}

// MaybeRun runs the fake engine and exits if EnvMode is set.
func MaybeRun() {
	mode := os.Getenv(EnvMode)
	if mode == "" {
		return
	}
	os.Exit(run(mode, os.Stdin, os.Stdout))
}

func run(mode string, in io.Reader, out io.Writer) int {
	var logFile *os.File
	if path := os.Getenv(EnvLog); path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			logFile = f
			defer f.Close()
		}
	}

	if mode == ModeExitEarly {
		// exit before answering anything
		return 0
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if logFile != nil {
			fmt.Fprintln(logFile, line)
		}
		switch {
		case line == "quit":
			return 0
		case strings.HasPrefix(line, "go"):
			if mode == ModeHang {
				time.Sleep(time.Hour)
				return 0
			}
			writeSlowly(out, Transcripts[mode])
		}
	}
	return 0
}

// writeSlowly splits output mid-line so readers see partial lines.
func writeSlowly(out io.Writer, transcript string) {
	const piece = 7
	for len(transcript) > 0 {
		n := piece
		if n > len(transcript) {
			n = len(transcript)
		}
		_, _ = io.WriteString(out, transcript[:n])
		transcript = transcript[n:]
		time.Sleep(time.Millisecond)
	}
}
