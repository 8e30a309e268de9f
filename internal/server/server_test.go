package server

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/derekprior/petanque/internal/config"
	"github.com/derekprior/petanque/internal/excel"
)

func testServer() *Server {
	cfg := config.Default()
	cfg.Server.AllowedOrigins = []string{"https://sougil.github.io"}
	cfg.Tournament.MaxPlayers = 40
	cfg.Tournament.MaxRounds = 10

	s := New(cfg, zerolog.Nop())
	s.newRand = func() *rand.Rand { return rand.New(rand.NewSource(42)) }
	return s
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/generate_tournament", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body %q: %v", rec.Body.String(), err)
	}
	return body["error"]
}

func TestGenerateTournament(t *testing.T) {
	h := testServer().Routes()
	rec := post(t, h, `{"team_type": "doublette", "num_players": 8, "num_matches": 3}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	t.Run("spreadsheet headers", func(t *testing.T) {
		if ct := rec.Header().Get("Content-Type"); ct != excel.ContentType {
			t.Errorf("Content-Type = %q", ct)
		}
		cd := rec.Header().Get("Content-Disposition")
		if !strings.HasPrefix(cd, "attachment") || !strings.Contains(cd, "petanque_pairs.xlsx") {
			t.Errorf("Content-Disposition = %q", cd)
		}
	})

	t.Run("body is a workbook with rounds plus overall", func(t *testing.T) {
		f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
		if err != nil {
			t.Fatalf("OpenReader error: %v", err)
		}
		defer f.Close()
		if n := len(f.GetSheetList()); n != 4 {
			t.Errorf("sheets = %d, want 4", n)
		}
	})
}

func TestGenerateTournamentFullStrategy(t *testing.T) {
	h := testServer().Routes()
	rec := post(t, h, `{"team_type": "triples", "num_players": 12, "num_matches": 2, "strategy": "full"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader error: %v", err)
	}
	defer f.Close()

	rows, _ := f.GetRows("Round 1")
	if len(rows) != 3 {
		t.Errorf("Round 1 rows = %d, want header + 2 games", len(rows))
	}
}

func TestGenerateTournamentErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"seven players in triples", `{"team_type": "triplette", "num_players": 7, "num_matches": 2}`, http.StatusBadRequest, "multiple of 6"},
		{"unknown team type", `{"team_type": "quadrette", "num_players": 8, "num_matches": 2}`, http.StatusBadRequest, "unknown team type"},
		{"zero rounds", `{"team_type": "pairs", "num_players": 8, "num_matches": 0}`, http.StatusBadRequest, "rounds must be positive"},
		{"too many players", `{"team_type": "pairs", "num_players": 400, "num_matches": 2}`, http.StatusBadRequest, "at most 40 players"},
		{"too many rounds", `{"team_type": "pairs", "num_players": 8, "num_matches": 11}`, http.StatusBadRequest, "at most 10 rounds"},
		{"unknown strategy", `{"team_type": "pairs", "num_players": 8, "num_matches": 1, "strategy": "swiss"}`, http.StatusBadRequest, "unknown strategy"},
		{"unknown field", `{"team_type": "pairs", "num_players": 8, "num_matches": 1, "courts": 2}`, http.StatusBadRequest, "unknown key"},
		{"wrong type", `{"team_type": "pairs", "num_players": "eight", "num_matches": 1}`, http.StatusBadRequest, "num_players"},
		{"bad json", `{"team_type": `, http.StatusBadRequest, "badly-formed JSON"},
		{"empty body", ``, http.StatusBadRequest, "must not be empty"},
		{"two values", `{"team_type": "pairs", "num_players": 8, "num_matches": 1}{}`, http.StatusBadRequest, "single JSON value"},
	}

	h := testServer().Routes()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			if msg := errorMessage(t, rec); !strings.Contains(msg, tt.message) {
				t.Errorf("error = %q, want it to mention %q", msg, tt.message)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	h := testServer().Routes()

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/generate_tournament", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("allowed origin", func(t *testing.T) {
		rec := preflight("https://sougil.github.io")
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://sougil.github.io" {
			t.Errorf("Access-Control-Allow-Origin = %q", got)
		}
	})

	t.Run("other origin", func(t *testing.T) {
		rec := preflight("https://evil.example")
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
		}
	})

	t.Run("simple request exposes filename", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/generate_tournament",
			strings.NewReader(`{"team_type": "pairs", "num_players": 4, "num_matches": 1}`))
		req.Header.Set("Origin", "https://sougil.github.io")
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "Content-Disposition") {
			t.Errorf("Access-Control-Expose-Headers = %q", got)
		}
	})
}

func TestHealth(t *testing.T) {
	h := testServer().Routes()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}
