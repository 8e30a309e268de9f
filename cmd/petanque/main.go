package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/derekprior/petanque/internal/config"
	"github.com/derekprior/petanque/internal/draw"
	"github.com/derekprior/petanque/internal/excel"
	"github.com/derekprior/petanque/internal/results"
	"github.com/derekprior/petanque/internal/server"
)

const defaultConfigFile = "petanque.yaml"

// loadConfig reads the config file if one is given or present in the
// current directory, falls back to defaults, then applies the environment.
func loadConfig(configFlag string) (*config.Config, error) {
	path := configFlag
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}

	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		log.Debug().Str("path", path).Msg("Loaded config file")
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}
	return cfg, nil
}

func main() {
	config.SetupEnvironment()

	rootCmd := &cobra.Command{
		Use:   "petanque",
		Short: "Pétanque tournament draw and score sheet generator",
	}

	var configFile string
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: petanque.yaml in current directory if present)")

	var initOutputPath string
	initCmd := &cobra.Command{
		Use:          "init",
		Short:        "Create a starter petanque.yaml in the current directory",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(initOutputPath)
		},
	}
	initCmd.Flags().StringVarP(&initOutputPath, "output", "o", defaultConfigFile, "Output path for the config file")

	var gen generateOptions
	generateCmd := &cobra.Command{
		Use:          "generate",
		Short:        "Draw teams and write the tournament workbook",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			gen.seedSet = cmd.Flags().Changed("seed")
			return runGenerate(cfg, gen)
		},
	}
	generateCmd.Flags().StringVarP(&gen.teamType, "team-type", "t", "pairs", "Team type: pairs (doublette) or triples (triplette)")
	generateCmd.Flags().IntVarP(&gen.players, "players", "p", 0, "Number of players")
	generateCmd.Flags().IntVarP(&gen.rounds, "rounds", "r", 0, "Number of rounds")
	generateCmd.Flags().StringVar(&gen.strategy, "strategy", "", "Draw strategy: reshuffle or full (default from config)")
	generateCmd.Flags().Int64Var(&gen.seed, "seed", 0, "Random seed for a reproducible draw")
	generateCmd.Flags().StringVarP(&gen.output, "output", "o", "", "Output Excel file path (default: petanque_<team type>.xlsx)")
	generateCmd.MarkFlagRequired("players")
	generateCmd.MarkFlagRequired("rounds")

	serveCmd := &cobra.Command{
		Use:          "serve",
		Short:        "Serve workbook generation over HTTP",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	resultsCmd := &cobra.Command{
		Use:          "results <tournament.xlsx>",
		Short:        "Compute standings from a scored workbook",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			return runResults(cfg, args[0])
		},
	}

	rootCmd.AddCommand(initCmd, generateCmd, serveCmd, resultsCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runInit(outputPath string) error {
	if _, err := os.Stat(outputPath); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use -o to write elsewhere", outputPath)
	}

	if err := os.WriteFile(outputPath, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("✓ Created %s\n", outputPath)
	return nil
}

const configTemplate = `# Pétanque tournament configuration
# ==================================

# HTTP server settings, used by "petanque serve".
# PORT and ALLOWED_ORIGINS environment variables override these.
server:
  address: ":5000"

  # Browser origins allowed to call the API (CORS).
  allowed_origins:
    - "https://sougil.github.io"

tournament:
  # How teams are drawn each round. The player pool is reshuffled every round.
  #   reshuffle: one game per round, players beyond the two teams sit out
  #   full:      every player plays, one game per court
  strategy: reshuffle

  # Score that wins a game. Used by the win count formulas and when reading
  # results back. WINNING_SCORE overrides it.
  winning_score: 13

  # Upper bounds on requests served over HTTP.
  max_players: 200
  max_rounds: 50

workbook:
  font: Arial
`

type generateOptions struct {
	teamType string
	players  int
	rounds   int
	strategy string
	seed     int64
	seedSet  bool
	output   string
}

func runGenerate(cfg *config.Config, opts generateOptions) error {
	teamType, err := draw.ParseTeamType(opts.teamType)
	if err != nil {
		return err
	}
	params := draw.Params{TeamType: teamType, Players: opts.players, Rounds: opts.rounds}

	strategyName := opts.strategy
	if strategyName == "" {
		strategyName = cfg.Tournament.Strategy
	}
	strat, err := draw.Get(strategyName)
	if err != nil {
		return err
	}

	seed := time.Now().UnixNano()
	if opts.seedSet {
		seed = opts.seed
	}

	rounds, err := draw.Generate(params, strat, rand.New(rand.NewSource(seed)))
	if err != nil {
		return err
	}

	fmt.Printf("Drew %d rounds of %s for %d players (strategy %s, seed %d)\n",
		len(rounds), teamType, params.Players, strategyName, seed)
	for _, r := range rounds {
		fmt.Printf("\n%s:\n", excel.RoundSheetName(r.Number))
		for i, g := range r.Games {
			fmt.Printf("  Court %-3d %-12s vs %s\n", i+1, formatTeam(g.TeamA), formatTeam(g.TeamB))
		}
	}

	f, err := excel.Generate(params, rounds, excel.Options{
		WinningScore: cfg.Tournament.WinningScore,
		Font:         cfg.Workbook.Font,
	})
	if err != nil {
		return fmt.Errorf("generating Excel: %w", err)
	}
	defer f.Close()

	outputPath := opts.output
	if outputPath == "" {
		outputPath = excel.Filename(teamType)
	}
	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("saving file: %w", err)
	}

	fmt.Printf("\n✓ Tournament saved to %s\n", outputPath)
	return nil
}

func formatTeam(t draw.Team) string {
	parts := make([]string, len(t))
	for i, p := range t {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, "+")
}

func runServe(cfg *config.Config) error {
	srv := server.New(cfg, log.Logger)
	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srv.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info().
			Str("address", httpServer.Addr).
			Strs("allowed_origins", cfg.Server.AllowedOrigins).
			Msg("Starting server")
		serverErrors <- httpServer.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			httpServer.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	log.Info().Msg("Server stopped")
	return nil
}

func runResults(cfg *config.Config, path string) error {
	report, err := results.ReadFile(path, cfg.Tournament.WinningScore)
	if err != nil {
		return fmt.Errorf("reading results: %w", err)
	}

	fmt.Printf("%d rounds, %d games scored\n\n", report.Rounds, report.GamesScored)
	fmt.Printf("  %4s %-8s %6s %4s %6s\n", "Rank", "Player", "Played", "Wins", "Points")
	for _, s := range report.Standings {
		rank := fmt.Sprintf("%d", s.Rank)
		if s.Tied {
			rank += "="
		}
		fmt.Printf("  %4s %-8d %6d %4d %+6d\n", rank, s.Player, s.Played, s.Wins, s.Points)
	}

	if len(report.Violations) > 0 {
		fmt.Println()
	}
	errCount := 0
	for _, v := range report.Violations {
		switch v.Type {
		case "error":
			errCount++
			fmt.Printf("✗ %s\n", v.Message)
		case "warning":
			fmt.Printf("⚠ %s\n", v.Message)
		}
	}
	if len(report.Violations) == 0 {
		fmt.Println("\n✓ No score problems found")
	}

	if errCount > 0 {
		return fmt.Errorf("%d invalid scores found", errCount)
	}
	return nil
}
