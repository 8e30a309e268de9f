package draw

import "fmt"

// DefaultStrategy is used when no strategy is configured.
const DefaultStrategy = "reshuffle"

// Strategy turns a shuffled player list into the games of one round.
type Strategy interface {
	DrawGames(shuffled []int, teamSize int) []Game
}

// Get returns a Strategy by name.
func Get(name string) (Strategy, error) {
	switch name {
	case "", DefaultStrategy:
		return &Reshuffle{}, nil
	case "full":
		return &FullRound{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrConfiguration, name)
	}
}

// Reshuffle takes the first two teams off the shuffled pool. Players past
// them sit the round out.
type Reshuffle struct{}

func (s *Reshuffle) DrawGames(shuffled []int, teamSize int) []Game {
	return []Game{{
		TeamA: copyTeam(shuffled[:teamSize]),
		TeamB: copyTeam(shuffled[teamSize : 2*teamSize]),
	}}
}

// FullRound splits the whole shuffled pool into consecutive team pairs so
// that everyone plays every round.
type FullRound struct{}

func (s *FullRound) DrawGames(shuffled []int, teamSize int) []Game {
	var games []Game
	for start := 0; start+2*teamSize <= len(shuffled); start += 2 * teamSize {
		games = append(games, Game{
			TeamA: copyTeam(shuffled[start : start+teamSize]),
			TeamB: copyTeam(shuffled[start+teamSize : start+2*teamSize]),
		})
	}
	return games
}

// The shuffled slice is reused between rounds.
func copyTeam(players []int) Team {
	t := make(Team, len(players))
	copy(t, players)
	return t
}
