package budget_sheet

import (
	"github.com/empbudget/budgetgrid/pkg/grid"
	"github.com/empbudget/budgetgrid/pkg/reconcile"
	"github.com/empbudget/budgetgrid/pkg/selection"
)

type SheetDTO struct {
	Editable bool          `json:"editable"`
	Workbook grid.Workbook `json:"workbook"`
}

type EditModeDTO struct {
	Editable bool `json:"editable"`
}

type ChangeDTO struct {
	Cells [][]any `json:"cells"`
}

// SelectionDTO carries a widget selection either as numeric ranges or as A1-style
// references ("A2:C5"). Both may be given.
type SelectionDTO struct {
	Ranges []selection.Range `json:"ranges"`
	Refs   []string          `json:"refs"`
}

type IdsDTO struct {
	Ids []int `json:"ids"`
}

type GoogleImportDTO struct {
	SpreadsheetId string `json:"spreadsheetId"`
	Range         string `json:"range"`
}

type UnresolvedDTO struct {
	Row  int    `json:"row"`
	Kind string `json:"kind"`
	Name string `json:"name"`
}

type SaveResultDTO struct {
	OperationId string          `json:"operationId,omitempty"`
	Status      string          `json:"status"`
	Created     int             `json:"created"`
	Updated     int             `json:"updated"`
	Unchanged   int             `json:"unchanged"`
	Skipped     int             `json:"skipped"`
	Unresolved  []UnresolvedDTO `json:"unresolved,omitempty"`
}

func saveResultToDTO(result SaveResult) SaveResultDTO {
	dto := SaveResultDTO{
		OperationId: result.OperationId,
		Status:      string(result.Status),
		Created:     result.Created,
		Updated:     result.Updated,
		Unchanged:   result.Unchanged,
		Skipped:     result.Skipped,
	}
	for _, u := range result.Unresolved {
		dto.Unresolved = append(dto.Unresolved, unresolvedToDTO(u))
	}
	return dto
}

// unresolvedToDTO reports rows the way a spreadsheet numbers them.
func unresolvedToDTO(u reconcile.UnresolvedReference) UnresolvedDTO {
	return UnresolvedDTO{Row: u.RowIndex + 1, Kind: string(u.Kind), Name: u.Name}
}

func (s SelectionDTO) toRanges() ([]selection.Range, error) {
	ranges := append([]selection.Range(nil), s.Ranges...)
	for _, ref := range s.Refs {
		r, err := selection.ParseRef(ref)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}
