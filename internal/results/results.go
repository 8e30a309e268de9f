package results

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/derekprior/petanque/internal/excel"
	"github.com/xuri/excelize/v2"
)

// Violation is a problem found in the entered scores.
type Violation struct {
	Sheet   string
	Row     int
	Type    string // "error" or "warning"
	Message string
}

// Standing is one player's line in the final ranking.
type Standing struct {
	Player int
	Played int
	Wins   int
	Points int
	Rank   int
	Tied   bool
}

// Report is the outcome of reading a scored workbook.
type Report struct {
	Rounds      int
	GamesScored int
	Standings   []Standing
	Violations  []Violation
}

// Errors returns the number of error violations.
func (r *Report) Errors() int {
	n := 0
	for _, v := range r.Violations {
		if v.Type == "error" {
			n++
		}
	}
	return n
}

// ReadFile opens a workbook on disk and computes standings from it.
func ReadFile(path string, winningScore int) (*Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()
	return Read(file, winningScore)
}

// Read computes standings from the scores entered on the round sheets of a
// generated workbook.
func Read(r io.Reader, winningScore int) (*Report, error) {
	if winningScore <= 0 {
		winningScore = excel.DefaultWinningScore
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	report := &Report{}
	table := make(map[int]*Standing)
	for _, p := range readRoster(f) {
		table[p] = &Standing{Player: p}
	}

	for _, sheet := range f.GetSheetList() {
		if !isRoundSheet(sheet) {
			continue
		}
		report.Rounds++

		games, violations, err := readRoundSheet(f, sheet, winningScore)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", sheet, err)
		}
		report.Violations = append(report.Violations, violations...)

		for _, g := range games {
			report.GamesScored++
			tally(table, g.teamA, g.scoreA, g.scoreB, winningScore)
			tally(table, g.teamB, g.scoreB, g.scoreA, winningScore)
		}
	}

	if report.Rounds == 0 {
		return nil, fmt.Errorf("no round sheets found")
	}

	report.Standings = rank(table)
	return report, nil
}

type scoredGame struct {
	teamA, teamB   []int
	scoreA, scoreB int
}

func isRoundSheet(name string) bool {
	rest, ok := strings.CutPrefix(name, "Round ")
	if !ok {
		return false
	}
	n, err := strconv.Atoi(rest)
	return err == nil && n > 0
}

// readRoster returns the players listed on the overall sheet, if present.
func readRoster(f *excelize.File) []int {
	rows, err := f.GetRows(excel.OverallSheet)
	if err != nil {
		return nil
	}
	var players []int
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if p, err := strconv.Atoi(strings.TrimSpace(row[0])); err == nil {
			players = append(players, p)
		}
	}
	return players
}

func readRoundSheet(f *excelize.File, sheet string, winningScore int) ([]scoredGame, []Violation, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("sheet is empty")
	}

	// Header row determines the team size.
	teamSize := 0
	for _, h := range rows[0] {
		if strings.HasPrefix(h, "Team A ") {
			teamSize++
		}
	}
	if teamSize == 0 {
		return nil, nil, fmt.Errorf("no team columns in header")
	}
	layout := excel.Layout{TeamSize: teamSize}

	var games []scoredGame
	var violations []Violation
	for i, row := range rows {
		if i == 0 {
			continue
		}
		rowNum := i + 1
		violation := func(typ, format string, args ...any) {
			violations = append(violations, Violation{
				Sheet:   sheet,
				Row:     rowNum,
				Type:    typ,
				Message: fmt.Sprintf(format, args...),
			})
		}

		teamA, okA := readTeam(row, layout.TeamACol, teamSize)
		teamB, okB := readTeam(row, layout.TeamBCol, teamSize)
		if !okA || !okB {
			violation("error", "%s row %d: player cells are missing or not numbers", sheet, rowNum)
			continue
		}

		rawA := cell(row, layout.ScoreACol())
		rawB := cell(row, layout.ScoreBCol())
		if rawA == "" && rawB == "" {
			continue // not played yet
		}
		if rawA == "" || rawB == "" {
			violation("warning", "%s row %d: only one score entered", sheet, rowNum)
			continue
		}

		scoreA, errA := parseScore(rawA, winningScore)
		scoreB, errB := parseScore(rawB, winningScore)
		if errA != nil || errB != nil {
			bad := rawA
			if errA == nil {
				bad = rawB
			}
			violation("error", "%s row %d: invalid score %q (want a whole number 0-%d)", sheet, rowNum, bad, winningScore)
			continue
		}

		switch {
		case scoreA == winningScore && scoreB == winningScore:
			violation("warning", "%s row %d: both teams scored %d", sheet, rowNum, winningScore)
		case scoreA != winningScore && scoreB != winningScore:
			violation("warning", "%s row %d: no team reached %d (%d-%d)", sheet, rowNum, winningScore, scoreA, scoreB)
		}

		games = append(games, scoredGame{teamA: teamA, teamB: teamB, scoreA: scoreA, scoreB: scoreB})
	}
	return games, violations, nil
}

// cell returns the value in 1-indexed column col, or "" past the row end.
func cell(row []string, col int) string {
	if col-1 >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col-1])
}

func readTeam(row []string, colFor func(int) int, size int) ([]int, bool) {
	team := make([]int, 0, size)
	for i := 0; i < size; i++ {
		p, err := strconv.Atoi(cell(row, colFor(i)))
		if err != nil {
			return nil, false
		}
		team = append(team, p)
	}
	return team, true
}

func parseScore(s string, winningScore int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > winningScore {
		return 0, fmt.Errorf("score %d out of range", n)
	}
	return n, nil
}

func tally(table map[int]*Standing, team []int, own, other, winningScore int) {
	for _, p := range team {
		s, ok := table[p]
		if !ok {
			s = &Standing{Player: p}
			table[p] = s
		}
		s.Played++
		s.Points += own - other
		if own == winningScore {
			s.Wins++
		}
	}
}

// rank orders players by wins, then points. Equal records share a rank.
func rank(table map[int]*Standing) []Standing {
	standings := make([]Standing, 0, len(table))
	for _, s := range table {
		standings = append(standings, *s)
	}
	sort.Slice(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		return a.Player < b.Player
	})

	for i := range standings {
		standings[i].Rank = i + 1
		if i == 0 {
			continue
		}
		prev := &standings[i-1]
		if prev.Wins == standings[i].Wins && prev.Points == standings[i].Points {
			standings[i].Rank = prev.Rank
			standings[i].Tied = true
			prev.Tied = true
		}
	}
	return standings
}
