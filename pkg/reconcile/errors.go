package reconcile

import (
	"fmt"
	"strings"
)

const (
	MsgMissingDropdowns   = "Missing required dropdown values."
	MsgInvalidId          = "BudgetPlanId must be a positive whole number."
	MsgBudgetNotNumeric   = "Budget Allocated must be numeric."
	MsgHoursNotNumeric    = "Hours Planned must be numeric."
	MsgBudgetNegative     = "Budget Allocated must not be negative."
	MsgBudgetNotPositive  = "Budget Allocated must be greater than zero."
	MsgHoursNegative      = "Hours Planned must not be negative."
	MsgCommentsTooLong    = "Comments must not exceed 200 characters."
	msgUnresolvedTemplate = "%s %q does not match any known value."
)

// ValidationError is a field-level problem found on one sheet row.
type ValidationError struct {
	RowIndex int    `json:"rowIndex"`
	Message  string `json:"message"`
}

// Error renders the row the way a spreadsheet numbers it (header is row 1).
func (e ValidationError) Error() string {
	return fmt.Sprintf("row %d: %s", e.RowIndex+1, e.Message)
}

// ValidationErrors is every problem found in one reconciliation pass. A non-empty
// value blocks the whole save.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	messages := make([]string, 0, len(e))
	for _, ve := range e {
		messages = append(messages, ve.Error())
	}
	return fmt.Sprintf("%d validation error(s): %s", len(e), strings.Join(messages, "; "))
}
