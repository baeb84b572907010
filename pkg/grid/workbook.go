package grid

// Workbook is the declarative description handed to the spreadsheet widget. It is
// always rebuilt from domain state, never patched.
type Workbook struct {
	Sheets []Sheet `json:"sheets"`
}

type Sheet struct {
	Name          string   `json:"name"`
	Rows          []Row    `json:"rows"`
	Columns       []Column `json:"columns"`
	FrozenRows    int      `json:"frozenRows"`
	FrozenColumns int      `json:"frozenColumns"`
}

type Column struct {
	Index int     `json:"index"`
	Width float64 `json:"width"`
}

type Row struct {
	Index int    `json:"index"`
	Cells []Cell `json:"cells"`
}

type Cell struct {
	Index      int         `json:"index"`
	Value      any         `json:"value"`
	Bold       bool        `json:"bold,omitempty"`
	Background string      `json:"background,omitempty"`
	Color      string      `json:"color,omitempty"`
	Locked     bool        `json:"locked"`
	Validation *Validation `json:"validation,omitempty"`
}

// Validation is a per-cell input rule enforced by the widget.
type Validation struct {
	DataType        string `json:"dataType"`
	ComparerType    string `json:"comparerType,omitempty"`
	From            string `json:"from,omitempty"`
	To              string `json:"to,omitempty"`
	AllowNulls      bool   `json:"allowNulls"`
	ShowButton      bool   `json:"showButton,omitempty"`
	Type            string `json:"type"`
	MessageTemplate string `json:"messageTemplate,omitempty"`
}

// Values extracts the raw cell values of the first sheet, row by row, in the shape
// the widget reports on a change event.
func (w Workbook) Values() [][]any {
	if len(w.Sheets) == 0 {
		return nil
	}
	rows := w.Sheets[0].Rows
	values := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.Value
		}
		values[i] = cells
	}
	return values
}
