package draw

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

var (
	// ErrConfiguration is returned for tournament parameters that cannot
	// produce complete teams.
	ErrConfiguration = errors.New("invalid tournament configuration")
	// ErrValidation is returned for a draw that is structurally invalid.
	ErrValidation = errors.New("invalid draw")
)

// TeamType is the kind of team players are grouped into.
type TeamType int

const (
	Pair TeamType = iota + 1
	Triple
)

// ParseTeamType maps user input to a TeamType. The French names used on
// the pétanque terrain are accepted as well.
func ParseTeamType(s string) (TeamType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pair", "pairs", "doublette", "2":
		return Pair, nil
	case "triple", "triples", "triplette", "3":
		return Triple, nil
	default:
		return 0, fmt.Errorf("%w: unknown team type %q (want pairs or triples)", ErrConfiguration, s)
	}
}

// Size returns the number of players per team.
func (t TeamType) Size() int {
	switch t {
	case Pair:
		return 2
	case Triple:
		return 3
	default:
		return 0
	}
}

func (t TeamType) String() string {
	switch t {
	case Pair:
		return "pairs"
	case Triple:
		return "triples"
	default:
		return fmt.Sprintf("TeamType(%d)", int(t))
	}
}

// Team is an ordered list of player numbers.
type Team []int

// Game is a single matchup between two teams on one court.
type Game struct {
	TeamA Team
	TeamB Team
}

// Round is one round of play. Under the reshuffle strategy it holds a
// single game.
type Round struct {
	Number int
	Games  []Game
}

// Players returns every player taking part in the round.
func (r Round) Players() []int {
	var players []int
	for _, g := range r.Games {
		players = append(players, g.TeamA...)
		players = append(players, g.TeamB...)
	}
	return players
}

// Params are the tournament parameters a draw is generated from.
type Params struct {
	TeamType TeamType
	Players  int
	Rounds   int
}

// Validate checks that the players can be split into complete teams.
func (p Params) Validate() error {
	size := p.TeamType.Size()
	if size == 0 {
		return fmt.Errorf("%w: team type is required", ErrConfiguration)
	}
	if p.Players <= 0 {
		return fmt.Errorf("%w: number of players must be positive, got %d", ErrConfiguration, p.Players)
	}
	if p.Rounds <= 0 {
		return fmt.Errorf("%w: number of rounds must be positive, got %d", ErrConfiguration, p.Rounds)
	}
	if p.Players < 2*size {
		return fmt.Errorf("%w: %s need at least %d players, got %d", ErrConfiguration, p.TeamType, 2*size, p.Players)
	}
	if p.Players%(2*size) != 0 {
		return fmt.Errorf("%w: number of players must be a multiple of %d for %s, got %d", ErrConfiguration, 2*size, p.TeamType, p.Players)
	}
	return nil
}

// Generate draws params.Rounds rounds using the given strategy. The pool is
// reshuffled before every round. A nil rng is replaced by a time-seeded
// source owned by this call.
func Generate(params Params, strat Strategy, rng *rand.Rand) ([]Round, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if strat == nil {
		strat = &Reshuffle{}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	players := make([]int, params.Players)
	for i := range players {
		players[i] = i + 1
	}

	size := params.TeamType.Size()
	rounds := make([]Round, 0, params.Rounds)
	for n := 1; n <= params.Rounds; n++ {
		rng.Shuffle(len(players), func(i, j int) {
			players[i], players[j] = players[j], players[i]
		})
		rounds = append(rounds, Round{
			Number: n,
			Games:  strat.DrawGames(players, size),
		})
	}
	return rounds, nil
}

// ValidateRounds checks that rounds form a well-shaped draw for params.
func ValidateRounds(params Params, rounds []Round) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if len(rounds) != params.Rounds {
		return fmt.Errorf("%w: got %d rounds, want %d", ErrValidation, len(rounds), params.Rounds)
	}

	size := params.TeamType.Size()
	for i, r := range rounds {
		if r.Number != i+1 {
			return fmt.Errorf("%w: round at position %d is numbered %d", ErrValidation, i+1, r.Number)
		}
		if len(r.Games) == 0 {
			return fmt.Errorf("%w: round %d has no games", ErrValidation, r.Number)
		}
		seen := make(map[int]bool)
		for gi, g := range r.Games {
			if len(g.TeamA) != size || len(g.TeamB) != size {
				return fmt.Errorf("%w: round %d game %d has teams of %d and %d players, want %d",
					ErrValidation, r.Number, gi+1, len(g.TeamA), len(g.TeamB), size)
			}
		}
		for _, p := range r.Players() {
			if p < 1 || p > params.Players {
				return fmt.Errorf("%w: round %d has player %d outside 1..%d", ErrValidation, r.Number, p, params.Players)
			}
			if seen[p] {
				return fmt.Errorf("%w: player %d appears twice in round %d", ErrValidation, p, r.Number)
			}
			seen[p] = true
		}
	}
	return nil
}
