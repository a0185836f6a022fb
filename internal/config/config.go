package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/park285/cheese-versus/internal/chess/uci"
	yaml "gopkg.in/yaml.v3"
)

type AppConfig struct {
	HTTPAddr string

	RedisURL    string
	DatabaseURL string

	StockfishPath string
	EnginePolicy  uci.Policy
	GameTTLSec    int
	HistoryLimit  int
	MessagesDir   string
}

// policyFile mirrors the ENGINE_* variables for ENGINE_POLICY_FILE.
type policyFile struct {
	SkillLevel    *int  `yaml:"skill_level"`
	Contempt      *int  `yaml:"contempt"`
	LimitStrength *bool `yaml:"limit_strength"`
	MoveTimeMS    *int  `yaml:"movetime_ms"`
	GraceMS       *int  `yaml:"grace_ms"`
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:     ":8080",
		EnginePolicy: uci.DefaultPolicy(),
		GameTTLSec:   3600,
		HistoryLimit: 10,
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	if v := strings.TrimSpace(os.Getenv("GAME_TTL")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.GameTTLSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("HISTORY_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryLimit = n
		}
	}

	// Engine
	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))
	if path := strings.TrimSpace(os.Getenv("ENGINE_POLICY_FILE")); path != "" {
		if err := applyPolicyFile(&cfg.EnginePolicy, path); err != nil {
			return nil, err
		}
	}
	applyPolicyEnv(&cfg.EnginePolicy)

	if cfg.StockfishPath == "" {
		return nil, errors.New("STOCKFISH_PATH is required")
	}
	if err := cfg.EnginePolicy.Validate(); err != nil {
		return nil, fmt.Errorf("engine policy: %w", err)
	}
	return cfg, nil
}

func (c *AppConfig) GameTTL() time.Duration {
	return time.Duration(c.GameTTLSec) * time.Second
}

func applyPolicyFile(p *uci.Policy, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read engine policy file: %w", err)
	}
	var f policyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse engine policy file: %w", err)
	}
	if f.SkillLevel != nil {
		p.SkillLevel = *f.SkillLevel
	}
	if f.Contempt != nil {
		p.Contempt = *f.Contempt
	}
	if f.LimitStrength != nil {
		p.LimitStrength = *f.LimitStrength
	}
	if f.MoveTimeMS != nil {
		p.MoveTime = time.Duration(*f.MoveTimeMS) * time.Millisecond
	}
	if f.GraceMS != nil {
		p.Grace = time.Duration(*f.GraceMS) * time.Millisecond
	}
	return nil
}

func applyPolicyEnv(p *uci.Policy) {
	if v := strings.TrimSpace(os.Getenv("ENGINE_SKILL_LEVEL")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.SkillLevel = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_CONTEMPT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.Contempt = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_LIMIT_STRENGTH")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			p.LimitStrength = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_MOVETIME_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.MoveTime = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_GRACE_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.Grace = time.Duration(n) * time.Millisecond
		}
	}
}
