package server

import (
	"fmt"
	"math/rand"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/derekprior/petanque/internal/config"
	"github.com/derekprior/petanque/internal/draw"
	"github.com/derekprior/petanque/internal/excel"
)

// Server serves tournament workbooks over HTTP.
type Server struct {
	cfg    *config.Config
	logger zerolog.Logger

	// newRand builds the random source for one request.
	newRand func() *rand.Rand
}

func New(cfg *config.Config, logger zerolog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// Routes returns the HTTP handler with middleware applied.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Post("/generate_tournament", s.handleGenerate)
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, envelope{"status": "ok"}); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

type generateRequest struct {
	TeamType   string `json:"team_type"`
	NumPlayers int    `json:"num_players"`
	NumMatches int    `json:"num_matches"`
	Strategy   string `json:"strategy,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequestResponse(w, r, err)
		return
	}

	teamType, err := draw.ParseTeamType(req.TeamType)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	params := draw.Params{TeamType: teamType, Players: req.NumPlayers, Rounds: req.NumMatches}
	if err := s.checkLimits(params); err != nil {
		s.mapError(w, r, err)
		return
	}

	strategyName := req.Strategy
	if strategyName == "" {
		strategyName = s.cfg.Tournament.Strategy
	}
	strat, err := draw.Get(strategyName)
	if err != nil {
		s.mapError(w, r, err)
		return
	}

	rounds, err := draw.Generate(params, strat, s.newRand())
	if err != nil {
		s.mapError(w, r, err)
		return
	}

	f, err := excel.Generate(params, rounds, excel.Options{
		WinningScore: s.cfg.Tournament.WinningScore,
		Font:         s.cfg.Workbook.Font,
	})
	if err != nil {
		s.mapError(w, r, fmt.Errorf("generating workbook: %w", err))
		return
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.serverErrorResponse(w, r, fmt.Errorf("writing workbook: %w", err))
		return
	}

	s.logger.Debug().
		Str("team_type", teamType.String()).
		Int("players", params.Players).
		Int("rounds", params.Rounds).
		Str("strategy", strategyName).
		Msg("generated tournament")

	w.Header().Set("Content-Type", excel.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": excel.Filename(teamType),
	}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Error().Err(err).Msg("streaming workbook")
	}
}

func (s *Server) checkLimits(params draw.Params) error {
	if params.Players > s.cfg.Tournament.MaxPlayers {
		return fmt.Errorf("%w: at most %d players are supported, got %d",
			draw.ErrConfiguration, s.cfg.Tournament.MaxPlayers, params.Players)
	}
	if params.Rounds > s.cfg.Tournament.MaxRounds {
		return fmt.Errorf("%w: at most %d rounds are supported, got %d",
			draw.ErrConfiguration, s.cfg.Tournament.MaxRounds, params.Rounds)
	}
	return nil
}
