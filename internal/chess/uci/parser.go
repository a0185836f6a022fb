package uci

import (
	"strconv"
	"strings"
)

// MateScore is the centipawn magnitude reported for forced mates.
const MateScore = 30000

type Bound uint8

const (
	BoundExact Bound = iota
	BoundLower
	BoundUpper
)

func (b Bound) String() string {
	switch b {
	case BoundLower:
		return "lowerbound"
	case BoundUpper:
		return "upperbound"
	default:
		return "exact"
	}
}

// Evaluation is one engine score. ForcedMate is set for "score mate N"; then
// Mate holds N and Centipawns is +MateScore for N > 0, -MateScore otherwise.
// Mate 0 means the side to move is already mated.
type Evaluation struct {
	Centipawns int
	Bound      Bound
	Mate       int
	ForcedMate bool
}

func (e Evaluation) IsMate() bool { return e.ForcedMate }

// Display renders the score with a bound prefix, e.g. "Evaluation: ≥35".
func (e Evaluation) Display() string {
	prefix := ""
	switch e.Bound {
	case BoundLower:
		prefix = "≥"
	case BoundUpper:
		prefix = "≤"
	}
	if e.IsMate() {
		return "Evaluation: " + prefix + "mate " + strconv.Itoa(e.Mate)
	}
	return "Evaluation: " + prefix + strconv.Itoa(e.Centipawns)
}

// LineEvent is the classification of one protocol line. The set of
// implementations is closed: InfoEvent, BestMoveEvent and IgnorableEvent.
type LineEvent interface {
	lineEvent()
}

type InfoEvent struct {
	Depth int
	Score *Evaluation
	// HasPV is set when the pv keyword is present, even if no token decoded.
	HasPV bool
	PV    []Move
}

type BestMoveEvent struct {
	Token  string
	Ponder string
	// NoMove is set for "bestmove (none)" or a bestmove line with no token.
	NoMove bool
}

type IgnorableEvent struct{}

func (InfoEvent) lineEvent()      {}
func (BestMoveEvent) lineEvent()  {}
func (IgnorableEvent) lineEvent() {}

// ParseLine classifies one complete line (without its newline).
func ParseLine(line string) LineEvent {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return IgnorableEvent{}
	}
	switch fields[0] {
	case "info":
		return parseInfo(fields[1:])
	case "bestmove":
		return parseBestMove(fields[1:])
	default:
		return IgnorableEvent{}
	}
}

func parseBestMove(fields []string) BestMoveEvent {
	ev := BestMoveEvent{}
	if len(fields) == 0 || fields[0] == "(none)" {
		ev.NoMove = true
		return ev
	}
	ev.Token = fields[0]
	for i := 1; i+1 < len(fields); i++ {
		if fields[i] == "ponder" {
			ev.Ponder = fields[i+1]
			break
		}
	}
	return ev
}

func parseInfo(fields []string) InfoEvent {
	var ev InfoEvent
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			if i+1 < len(fields) {
				if v, err := strconv.Atoi(fields[i+1]); err == nil {
					ev.Depth = v
				}
				i++
			}
		case "score":
			score, consumed := parseScore(fields[i+1:])
			if score != nil {
				ev.Score = score
			}
			i += consumed
		case "lowerbound":
			if ev.Score != nil {
				ev.Score.Bound = BoundLower
			}
		case "upperbound":
			if ev.Score != nil {
				ev.Score.Bound = BoundUpper
			}
		case "pv":
			ev.HasPV = true
			ev.PV = decodeVariation(fields[i+1:])
			return ev
		case "string":
			// free text until end of line
			return ev
		}
	}
	return ev
}

// parseScore reads "cp N" or "mate N" and reports how many fields it
// consumed.
func parseScore(fields []string) (*Evaluation, int) {
	if len(fields) < 2 {
		return nil, len(fields)
	}
	v, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, 2
	}
	var eval Evaluation
	switch fields[0] {
	case "cp":
		eval.Centipawns = v
	case "mate":
		eval.Mate = v
		eval.ForcedMate = true
		eval.Centipawns = -MateScore
		if v > 0 {
			eval.Centipawns = MateScore
		}
	default:
		return nil, 1
	}
	return &eval, 2
}

func decodeVariation(tokens []string) []Move {
	if len(tokens) == 0 {
		return nil
	}
	out := make([]Move, 0, len(tokens))
	for _, tok := range tokens {
		mv, err := DecodeMove(tok)
		if err != nil {
			continue
		}
		out = append(out, mv)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
