package uci

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	defaultSkillLevel = 20
	defaultContempt   = 100
	defaultMoveTime   = 5 * time.Second
	defaultGrace      = 5 * time.Second
)

// Policy is the search budget and strength configuration sent with every session.
type Policy struct {
	SkillLevel    int
	Contempt      int
	LimitStrength bool
	MoveTime      time.Duration
	// Grace is added to MoveTime before a silent engine is killed.
	Grace time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		SkillLevel:    defaultSkillLevel,
		Contempt:      defaultContempt,
		LimitStrength: false,
		MoveTime:      defaultMoveTime,
		Grace:         defaultGrace,
	}
}

func (p Policy) Validate() error {
	if p.SkillLevel < 0 || p.SkillLevel > 20 {
		return fmt.Errorf("skill level %d out of range 0-20", p.SkillLevel)
	}
	if p.MoveTime <= 0 {
		return fmt.Errorf("movetime must be > 0: %s", p.MoveTime)
	}
	if p.Grace < 0 {
		return fmt.Errorf("grace must be >= 0: %s", p.Grace)
	}
	return nil
}

// Deadline is the supervisory limit for one session.
func (p Policy) Deadline() time.Duration {
	return p.MoveTime + p.Grace
}

func (p Policy) goCommand() string {
	return "go movetime " + strconv.FormatInt(p.MoveTime.Milliseconds(), 10)
}

func buildPositionCommand(fen string) string {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return "position startpos"
	}
	return "position fen " + fen
}

// StartupScript is the full command sequence written to the engine before
// any of its output is read.
func StartupScript(fen string, p Policy) string {
	lines := []string{
		"uci",
		"isready",
		"ucinewgame",
		buildPositionCommand(fen),
		fmt.Sprintf("setoption name Skill Level value %d", p.SkillLevel),
		fmt.Sprintf("setoption name Contempt value %d", p.Contempt),
		fmt.Sprintf("setoption name UCI_LimitStrength value %t", p.LimitStrength),
		p.goCommand(),
	}
	return strings.Join(lines, "\n") + "\n"
}
