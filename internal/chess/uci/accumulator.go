package uci

import (
	"bytes"
	"errors"
	"strings"
)

type AccumulatorState uint8

const (
	StateCollecting AccumulatorState = iota
	StateTerminated
	StateAborted
)

func (s AccumulatorState) String() string {
	switch s {
	case StateTerminated:
		return "terminated"
	case StateAborted:
		return "aborted"
	default:
		return "collecting"
	}
}

// Decision is the outcome of one search.
type Decision struct {
	Move       Move
	Ponder     *Move
	Evaluation *Evaluation
	PV         []Move
	Depth      int
}

var errNotDone = errors.New("search still in progress")

// Accumulator reassembles engine output chunks into lines and keeps the
// latest score and principal variation until the bestmove line arrives.
// It is not safe for concurrent use.
type Accumulator struct {
	buf   []byte
	state AccumulatorState
	err   *Error

	eval  *Evaluation
	pv    []Move
	depth int
	best  Move
	pond  *Move

	// OnLine, when set, sees every complete line before it is interpreted.
	OnLine func(line string)
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Feed appends p and interprets every complete line it now holds. A
// trailing partial line stays buffered for the next call.
func (a *Accumulator) Feed(p []byte) {
	if a.Done() {
		return
	}
	a.buf = append(a.buf, p...)
	for !a.Done() {
		idx := bytes.IndexByte(a.buf, '\n')
		if idx < 0 {
			return
		}
		raw := a.buf[:idx]
		a.buf = a.buf[idx+1:]
		a.handleLine(decodeLine(raw))
	}
	a.buf = nil
}

func decodeLine(raw []byte) string {
	raw = bytes.TrimSuffix(raw, []byte{'\r'})
	return strings.ToValidUTF8(string(raw), "�")
}

func (a *Accumulator) handleLine(line string) {
	if a.OnLine != nil {
		a.OnLine(line)
	}
	switch ev := ParseLine(line).(type) {
	case InfoEvent:
		if ev.Score != nil {
			score := *ev.Score
			a.eval = &score
		}
		if len(ev.PV) > 0 {
			a.pv = ev.PV
		}
		if ev.Depth > 0 {
			a.depth = ev.Depth
		}
	case BestMoveEvent:
		a.resolve(ev)
	}
}

func (a *Accumulator) resolve(ev BestMoveEvent) {
	if ev.NoMove {
		a.abort(&Error{Kind: KindNoLegalMove})
		return
	}
	mv, err := DecodeMove(ev.Token)
	if err != nil {
		a.abort(&Error{Kind: KindUnparsableBestMove, Token: ev.Token, Err: err})
		return
	}
	a.best = mv
	if ev.Ponder != "" {
		if p, err := DecodeMove(ev.Ponder); err == nil {
			a.pond = &p
		}
	}
	a.state = StateTerminated
}

func (a *Accumulator) abort(err *Error) {
	a.err = err
	a.state = StateAborted
}

func (a *Accumulator) State() AccumulatorState { return a.state }

func (a *Accumulator) Done() bool { return a.state != StateCollecting }

// Evaluation returns the most recent score, or nil.
func (a *Accumulator) Evaluation() *Evaluation { return a.eval }

// PV returns the most recent principal variation.
func (a *Accumulator) PV() []Move { return a.pv }

// Decision returns the final result once the accumulator is done.
func (a *Accumulator) Decision() (Decision, error) {
	switch a.state {
	case StateTerminated:
		d := Decision{
			Move:   a.best,
			Ponder: a.pond,
			PV:     append([]Move(nil), a.pv...),
			Depth:  a.depth,
		}
		if a.eval != nil {
			e := *a.eval
			d.Evaluation = &e
		}
		if len(d.PV) == 0 {
			d.PV = nil
		}
		return d, nil
	case StateAborted:
		return Decision{}, a.err
	default:
		return Decision{}, errNotDone
	}
}
