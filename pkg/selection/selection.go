package selection

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/empbudget/budgetgrid/pkg/budget"
)

// Range is a rectangular block of cells, zero based and inclusive on both ends.
type Range struct {
	TopRow    int `json:"topRow"`
	LeftCol   int `json:"leftCol"`
	BottomRow int `json:"bottomRow"`
	RightCol  int `json:"rightCol"`
}

// SheetAccessor reads raw cell values of the sheet a selection was made on.
type SheetAccessor interface {
	CellValue(row, col int) any
	RowCount() int
}

var refPattern = regexp.MustCompile(`^([A-Z]+)?(\d+)?$`)

// ParseRef parses an A1-style reference as emitted by the grid widget: "B3",
// "A1:C4", "A:A" (whole columns) or "2:5" (whole rows). An optional "Sheet!" prefix
// is ignored.
func ParseRef(ref string) (Range, error) {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if idx := strings.LastIndex(ref, "!"); idx >= 0 {
		ref = ref[idx+1:]
	}
	if ref == "" {
		return Range{}, fmt.Errorf("empty cell reference")
	}
	start, end, found := strings.Cut(ref, ":")
	if !found {
		end = start
	}
	topRow, leftCol, err := parseCorner(start, 0, 0)
	if err != nil {
		return Range{}, err
	}
	bottomRow, rightCol, err := parseCorner(end, math.MaxInt, math.MaxInt)
	if err != nil {
		return Range{}, err
	}
	if bottomRow < topRow {
		topRow, bottomRow = bottomRow, topRow
	}
	if rightCol < leftCol {
		leftCol, rightCol = rightCol, leftCol
	}
	return Range{TopRow: topRow, LeftCol: leftCol, BottomRow: bottomRow, RightCol: rightCol}, nil
}

// parseCorner reads one corner of a reference; a missing row or column part takes
// the given default so "A:A" spans every row.
func parseCorner(corner string, defaultRow, defaultCol int) (int, int, error) {
	m := refPattern.FindStringSubmatch(corner)
	if m == nil || (m[1] == "" && m[2] == "") {
		return 0, 0, fmt.Errorf("invalid cell reference %q", corner)
	}
	row, col := defaultRow, defaultCol
	if m[1] != "" {
		col = 0
		for _, ch := range m[1] {
			col = col*26 + int(ch-'A'+1)
		}
		col--
	}
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil || n < 1 {
			return 0, 0, fmt.Errorf("invalid row in cell reference %q", corner)
		}
		row = n - 1
	}
	return row, col, nil
}

// IdsFromSelection collects the budget plan ids of every row touched by the ranges.
// The header row is skipped and blank or non-numeric id cells are ignored; the
// result is de-duplicated and sorted. An empty result means nothing deletable was
// selected.
func IdsFromSelection(ranges []Range, sheet SheetAccessor) []int {
	seen := make(map[int]struct{})
	lastRow := sheet.RowCount() - 1
	for _, r := range ranges {
		top := max(r.TopRow, 1)
		bottom := min(r.BottomRow, lastRow)
		for row := top; row <= bottom; row++ {
			if id, ok := idFromCell(sheet.CellValue(row, budget.ColumnId)); ok {
				seen[id] = struct{}{}
			}
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// idFromCell accepts whole numbers in 1..budget.MaxPlanId whatever type the widget
// sent them as.
func idFromCell(v any) (int, bool) {
	var n int64
	switch value := v.(type) {
	case int:
		n = int64(value)
	case int64:
		n = value
	case float64:
		if value != math.Trunc(value) || value < 1 || value > float64(budget.MaxPlanId) {
			return 0, false
		}
		n = int64(value)
	case json.Number:
		return idFromCell(value.String())
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	if n <= 0 || n > int64(budget.MaxPlanId) {
		return 0, false
	}
	return int(n), true
}
