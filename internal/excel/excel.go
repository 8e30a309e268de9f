package excel

import (
	"fmt"
	"io"
	"strings"

	"github.com/derekprior/petanque/internal/draw"
	"github.com/xuri/excelize/v2"
)

const (
	// OverallSheet is the name of the aggregate sheet.
	OverallSheet = "Overall"

	// ContentType identifies an xlsx document.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	DefaultWinningScore = 13
	DefaultFont         = "Arial"
)

// Options controls workbook presentation and scoring.
type Options struct {
	WinningScore int
	Font         string
}

func (o Options) withDefaults() Options {
	if o.WinningScore <= 0 {
		o.WinningScore = DefaultWinningScore
	}
	if o.Font == "" {
		o.Font = DefaultFont
	}
	return o
}

// RoundSheetName returns the sheet name for round n.
func RoundSheetName(n int) string {
	return fmt.Sprintf("Round %d", n)
}

// Filename returns the download name for a tournament workbook.
func Filename(t draw.TeamType) string {
	return fmt.Sprintf("petanque_%s.xlsx", t)
}

// Layout locates the columns of a round sheet for a given team size.
// Columns are 1-indexed.
type Layout struct {
	TeamSize int
}

func (l Layout) CourtCol() int         { return 1 }
func (l Layout) TeamACol(slot int) int { return 2 + slot }
func (l Layout) TeamBCol(slot int) int { return 2 + l.TeamSize + slot }
func (l Layout) ScoreACol() int        { return 2 + 2*l.TeamSize }
func (l Layout) ScoreBCol() int        { return 3 + 2*l.TeamSize }
func (l Layout) PointsACol() int       { return 4 + 2*l.TeamSize }
func (l Layout) PointsBCol() int       { return 5 + 2*l.TeamSize }

// Headers returns the header row of a round sheet.
func (l Layout) Headers() []string {
	headers := []string{"Court"}
	for i := 1; i <= l.TeamSize; i++ {
		headers = append(headers, fmt.Sprintf("Team A %d", i))
	}
	for i := 1; i <= l.TeamSize; i++ {
		headers = append(headers, fmt.Sprintf("Team B %d", i))
	}
	return append(headers, "Score A", "Score B", "Points A", "Points B")
}

// Generate creates a workbook with one sheet per round and an Overall
// sheet whose totals are formulas over the round sheets.
func Generate(params draw.Params, rounds []draw.Round, opts Options) (*excelize.File, error) {
	if err := draw.ValidateRounds(params, rounds); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	f := excelize.NewFile()
	if err := f.SetDefaultFont(opts.Font); err != nil {
		return nil, fmt.Errorf("setting default font: %w", err)
	}

	st, err := newStyles(f, opts)
	if err != nil {
		return nil, fmt.Errorf("creating styles: %w", err)
	}

	layout := Layout{TeamSize: params.TeamType.Size()}
	for _, r := range rounds {
		if err := writeRoundSheet(f, st, layout, r, opts); err != nil {
			return nil, fmt.Errorf("writing %s: %w", RoundSheetName(r.Number), err)
		}
	}

	if err := writeOverallSheet(f, st, layout, params, rounds, opts); err != nil {
		return nil, fmt.Errorf("writing overall sheet: %w", err)
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("removing default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(RoundSheetName(1)); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}
	return f, nil
}

// Write generates the workbook and writes it to w.
func Write(w io.Writer, params draw.Params, rounds []draw.Round, opts Options) error {
	f, err := Generate(params, rounds, opts)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

type styles struct {
	header  int
	teamA   int
	teamB   int
	court   int
	entry   int
	points  int
	body    int
	winning int
}

func newStyles(f *excelize.File, opts Options) (*styles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "#000000", Style: 1},
		{Type: "right", Color: "#000000", Style: 1},
		{Type: "top", Color: "#000000", Style: 1},
		{Type: "bottom", Color: "#000000", Style: 1},
	}
	center := &excelize.Alignment{Horizontal: "center"}
	font := &excelize.Font{Size: 12, Family: opts.Font}
	fill := func(color string) excelize.Fill {
		return excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
	}

	var st styles
	var err error
	newStyle := func(dst *int, s *excelize.Style) {
		if err != nil {
			return
		}
		*dst, err = f.NewStyle(s)
	}

	newStyle(&st.header, &excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Family: opts.Font},
		Fill:      fill("#E0E0E0"),
		Alignment: center,
		Border:    border,
	})
	newStyle(&st.teamA, &excelize.Style{Font: font, Fill: fill("#FFFF00"), Alignment: center, Border: border})
	newStyle(&st.teamB, &excelize.Style{Font: font, Fill: fill("#ADD8E6"), Alignment: center, Border: border})
	newStyle(&st.court, &excelize.Style{Font: font, Fill: fill("#F0F0F0"), Alignment: center, Border: border})
	newStyle(&st.entry, &excelize.Style{
		Font:       font,
		Alignment:  center,
		Border:     border,
		Protection: &excelize.Protection{Locked: false},
	})
	newStyle(&st.points, &excelize.Style{
		Font:      &excelize.Font{Italic: true, Size: 12, Family: opts.Font},
		Alignment: center,
		Border:    border,
	})
	newStyle(&st.body, &excelize.Style{Font: font, Alignment: center, Border: border})
	if err != nil {
		return nil, err
	}

	st.winning, err = f.NewConditionalStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#006100"},
		Fill: fill("#C6EFCE"),
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func writeHeaderRow(f *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		if err := f.SetCellValue(sheet, cellRef(i+1, 1), h); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheet, cellRef(1, 1), cellRef(len(headers), 1), style); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeRoundSheet(f *excelize.File, st *styles, layout Layout, r draw.Round, opts Options) error {
	sheet := RoundSheetName(r.Number)
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := layout.Headers()
	if err := writeHeaderRow(f, sheet, headers, st.header); err != nil {
		return err
	}

	for gi, g := range r.Games {
		row := gi + 2

		if err := f.SetCellStyle(sheet, cellRef(layout.CourtCol(), row), cellRef(layout.CourtCol(), row), st.court); err != nil {
			return err
		}
		for i, p := range g.TeamA {
			if err := f.SetCellValue(sheet, cellRef(layout.TeamACol(i), row), p); err != nil {
				return err
			}
		}
		for i, p := range g.TeamB {
			if err := f.SetCellValue(sheet, cellRef(layout.TeamBCol(i), row), p); err != nil {
				return err
			}
		}
		if err := f.SetCellStyle(sheet, cellRef(layout.TeamACol(0), row), cellRef(layout.TeamACol(layout.TeamSize-1), row), st.teamA); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cellRef(layout.TeamBCol(0), row), cellRef(layout.TeamBCol(layout.TeamSize-1), row), st.teamB); err != nil {
			return err
		}

		scoreA := cellRef(layout.ScoreACol(), row)
		scoreB := cellRef(layout.ScoreBCol(), row)
		if err := f.SetCellStyle(sheet, scoreA, scoreB, st.entry); err != nil {
			return err
		}

		pointsA := cellRef(layout.PointsACol(), row)
		pointsB := cellRef(layout.PointsBCol(), row)
		if err := f.SetCellFormula(sheet, pointsA, fmt.Sprintf("%s-%s", scoreA, scoreB)); err != nil {
			return err
		}
		if err := f.SetCellFormula(sheet, pointsB, fmt.Sprintf("%s-%s", scoreB, scoreA)); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, pointsA, pointsB, st.points); err != nil {
			return err
		}
	}

	lastRow := len(r.Games) + 1
	scoreRange := fmt.Sprintf("%s2:%s%d", colLetter(layout.ScoreACol()), colLetter(layout.ScoreBCol()), lastRow)

	// Scores are whole points up to the winning score.
	dv := excelize.NewDataValidation(true)
	dv.Sqref = scoreRange
	if err := dv.SetRange(0, opts.WinningScore, excelize.DataValidationTypeWhole, excelize.DataValidationOperatorBetween); err != nil {
		return err
	}
	dv.SetError(excelize.DataValidationErrorStyleStop, "Invalid score",
		fmt.Sprintf("Enter a whole number between 0 and %d", opts.WinningScore))
	if err := f.AddDataValidation(sheet, dv); err != nil {
		return err
	}

	if err := f.SetConditionalFormat(sheet, scoreRange, []excelize.ConditionalFormatOptions{
		{
			Type:     "cell",
			Criteria: "==",
			Value:    fmt.Sprintf("%d", opts.WinningScore),
			Format:   &st.winning,
		},
	}); err != nil {
		return err
	}

	if err := f.SetColWidth(sheet, "A", "A", 10); err != nil {
		return err
	}
	teamEnd := colLetter(layout.TeamBCol(layout.TeamSize - 1))
	if err := f.SetColWidth(sheet, "B", teamEnd, 11); err != nil {
		return err
	}
	return f.SetColWidth(sheet, colLetter(layout.ScoreACol()), colLetter(layout.PointsBCol()), 12)
}

// slot is where a player sat in one game.
type slot struct {
	sheet   string
	row     int
	inTeamA bool
}

func playerSlots(rounds []draw.Round) map[int][]slot {
	slots := make(map[int][]slot)
	for _, r := range rounds {
		sheet := RoundSheetName(r.Number)
		for gi, g := range r.Games {
			row := gi + 2
			for _, p := range g.TeamA {
				slots[p] = append(slots[p], slot{sheet: sheet, row: row, inTeamA: true})
			}
			for _, p := range g.TeamB {
				slots[p] = append(slots[p], slot{sheet: sheet, row: row, inTeamA: false})
			}
		}
	}
	return slots
}

// sheetRef returns an absolute cross-sheet reference like 'Round 1'!$F$2.
func sheetRef(sheet string, col, row int) string {
	return fmt.Sprintf("'%s'!$%s$%d", sheet, colLetter(col), row)
}

// winsFormula counts games where the player's team reached the winning
// score.
func winsFormula(layout Layout, slots []slot, winningScore int) string {
	if len(slots) == 0 {
		return "0"
	}
	terms := make([]string, len(slots))
	for i, s := range slots {
		col := layout.ScoreBCol()
		if s.inTeamA {
			col = layout.ScoreACol()
		}
		terms[i] = fmt.Sprintf("IF(%s=%d,1,0)", sheetRef(s.sheet, col, s.row), winningScore)
	}
	return strings.Join(terms, "+")
}

// pointsFormula sums the player's own point difference cells.
func pointsFormula(layout Layout, slots []slot) string {
	if len(slots) == 0 {
		return "0"
	}
	terms := make([]string, len(slots))
	for i, s := range slots {
		col := layout.PointsBCol()
		if s.inTeamA {
			col = layout.PointsACol()
		}
		terms[i] = sheetRef(s.sheet, col, s.row)
	}
	return strings.Join(terms, "+")
}

func writeOverallSheet(f *excelize.File, st *styles, layout Layout, params draw.Params, rounds []draw.Round, opts Options) error {
	sheet := OverallSheet
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{"Player", "Wins", "Points", "Rank", "Tied"}
	if err := writeHeaderRow(f, sheet, headers, st.header); err != nil {
		return err
	}

	slots := playerSlots(rounds)
	lastRow := params.Players + 1
	winsRange := fmt.Sprintf("$B$2:$B$%d", lastRow)
	pointsRange := fmt.Sprintf("$C$2:$C$%d", lastRow)

	for p := 1; p <= params.Players; p++ {
		row := p + 1
		if err := f.SetCellValue(sheet, cellRef(1, row), p); err != nil {
			return err
		}
		if err := f.SetCellFormula(sheet, cellRef(2, row), winsFormula(layout, slots[p], opts.WinningScore)); err != nil {
			return err
		}
		if err := f.SetCellFormula(sheet, cellRef(3, row), pointsFormula(layout, slots[p])); err != nil {
			return err
		}

		// Wins rank first, points break ties.
		rank := fmt.Sprintf("1+SUMPRODUCT((%s>B%d)+(%s=B%d)*(%s>C%d))",
			winsRange, row, winsRange, row, pointsRange, row)
		if err := f.SetCellFormula(sheet, cellRef(4, row), rank); err != nil {
			return err
		}
		tied := fmt.Sprintf(`IF(COUNTIFS(%s,B%d,%s,C%d)>1,"yes","")`,
			winsRange, row, pointsRange, row)
		if err := f.SetCellFormula(sheet, cellRef(5, row), tied); err != nil {
			return err
		}
	}

	if err := f.SetCellStyle(sheet, "A2", cellRef(len(headers), lastRow), st.body); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", "A", 10); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "B", "E", 12)
}

func cellRef(col, row int) string {
	return fmt.Sprintf("%s%d", colLetter(col), row)
}

func colLetter(col int) string {
	result := ""
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}
