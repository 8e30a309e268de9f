package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/derekprior/petanque/internal/config"
	"github.com/derekprior/petanque/internal/results"
)

func TestConfigTemplateIsValid(t *testing.T) {
	cfg, err := config.LoadFromBytes([]byte(configTemplate))
	if err != nil {
		t.Fatalf("template does not load: %v", err)
	}
	if cfg.Tournament.WinningScore != 13 {
		t.Errorf("winning score = %d, want 13", cfg.Tournament.WinningScore)
	}
}

func TestRunInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petanque.yaml")

	if err := runInit(path); err != nil {
		t.Fatalf("runInit() error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if err := runInit(path); err == nil {
		t.Error("expected error when config already exists")
	}
}

func TestRunGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tournament.xlsx")
	err := runGenerate(config.Default(), generateOptions{
		teamType: "triplette",
		players:  12,
		rounds:   4,
		strategy: "full",
		seed:     5,
		seedSet:  true,
		output:   path,
	})
	if err != nil {
		t.Fatalf("runGenerate() error: %v", err)
	}

	report, err := results.ReadFile(path, 13)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if report.Rounds != 4 {
		t.Errorf("rounds = %d, want 4", report.Rounds)
	}
	if len(report.Standings) != 12 {
		t.Errorf("standings = %d, want 12", len(report.Standings))
	}
}

func TestRunGenerateRejectsBadParams(t *testing.T) {
	err := runGenerate(config.Default(), generateOptions{
		teamType: "triples",
		players:  7,
		rounds:   2,
		output:   filepath.Join(t.TempDir(), "x.xlsx"),
	})
	if err == nil {
		t.Error("expected error for 7 players in triples")
	}
}

func TestFormatTeam(t *testing.T) {
	if got := formatTeam([]int{4, 11, 2}); got != "4+11+2" {
		t.Errorf("formatTeam = %q, want 4+11+2", got)
	}
}
