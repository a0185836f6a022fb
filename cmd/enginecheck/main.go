package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	corechess "github.com/park285/cheese-versus/internal/chess"
	"github.com/park285/cheese-versus/internal/chess/uci"
	"github.com/park285/cheese-versus/internal/httpapi"
	"go.uber.org/zap"
)

func main() {
	var (
		enginePath = flag.String("engine", os.Getenv("STOCKFISH_PATH"), "path to the UCI engine")
		fen        = flag.String("fen", "startpos", "position to search")
		movetime   = flag.Duration("movetime", time.Second, "search time")
		skill      = flag.Int("skill", 20, "skill level 0-20")
		serverURL  = flag.String("server", os.Getenv("CHESSD_URL"), "optional chessd base URL to probe")
		verbose    = flag.Bool("v", false, "log engine traffic")
	)
	flag.Parse()

	if *enginePath == "" {
		log.Fatal("STOCKFISH_PATH or -engine is required")
	}

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			log.Fatalf("logger: %v", err)
		}
		logger = l
	}

	policy := uci.DefaultPolicy()
	policy.MoveTime = *movetime
	policy.SkillLevel = *skill
	engine, err := corechess.NewEngine(*enginePath, policy, logger)
	if err != nil {
		log.Fatalf("engine init error: %v", err)
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), policy.Deadline()+2*time.Second)
	defer cancel()
	start := time.Now()
	d, err := engine.Evaluate(ctx, *fen)
	if err != nil {
		log.Fatalf("engine error (%s): %v", uci.KindOf(err), err)
	}
	fmt.Printf("bestmove %s (%s)\n", d.Move, time.Since(start).Round(time.Millisecond))
	if d.Ponder != nil {
		fmt.Printf("ponder   %s\n", d.Ponder)
	}
	if d.Evaluation != nil {
		fmt.Println(d.Evaluation.Display())
	}
	if len(d.PV) > 0 {
		fmt.Printf("pv       %s\n", uci.FormatMoves(d.PV))
	}

	if *serverURL == "" {
		return
	}
	probeServer(*serverURL)
}

func probeServer(baseURL string) {
	client := httpapi.NewClient(baseURL, httpapi.WithTimeout(8*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.Health(ctx); err != nil {
		log.Fatalf("/healthz error: %v", err)
	}
	log.Printf("/healthz ok")

	g, err := client.NewGame(ctx, "white")
	if err != nil {
		log.Fatalf("new game error: %v", err)
	}
	if _, err := client.Play(ctx, g.ID, "e2e4"); err != nil {
		log.Fatalf("move error: %v", err)
	}
	g, err = client.WaitIdle(ctx, g.ID, 200*time.Millisecond)
	if err != nil {
		log.Fatalf("wait error: %v", err)
	}
	log.Printf("game %s: moves=%s status=%q %s", g.ID, strings.Join(g.MovesSAN, " "), g.Status, g.EvalText)
	if g.LastError != "" {
		log.Printf("engine error: %s", g.LastError)
	}
}
